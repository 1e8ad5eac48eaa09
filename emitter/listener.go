package emitter

import (
	"errors"
	"fmt"
)

// ErrInvalidListener is matched by every InvalidListenerError.
var ErrInvalidListener = errors.New("emitter: invalid listener")

// InvalidListenerError is returned (or raised by the chainable methods) when a
// value passed as a listener cannot be invoked.
type InvalidListenerError struct {
	Value any
}

func (e *InvalidListenerError) Error() string {
	return fmt.Sprintf("emitter: invalid listener %T: must be a non-nil *Listener or a Wrapped listener", e.Value)
}

// Unwrap lets errors.Is match ErrInvalidListener.
func (e *InvalidListenerError) Unwrap() error {
	return ErrInvalidListener
}

// Callback is the function a Listener invokes. Its return value is compared
// against the emitter's once-return value after every invocation.
type Callback func(args ...any) any

// Listener is a registrable callback. Its identity is the pointer: the same
// *Listener is registered at most once per key, and removal finds it by
// pointer.
type Listener struct {
	fn Callback
}

// NewListener wraps fn into a Listener.
func NewListener(fn Callback) *Listener {
	return &Listener{fn: fn}
}

// NewHandler wraps a callback that has no return value.
func NewHandler(fn func(args ...any)) *Listener {
	if fn == nil {
		return &Listener{}
	}
	return &Listener{fn: func(args ...any) any {
		fn(args...)
		return nil
	}}
}

// Call invokes the listener directly, outside of any dispatch.
func (l *Listener) Call(args ...any) any {
	return l.fn(args...)
}

func (*Listener) registrant() {}

// Registrant is anything AddListener accepts: a *Listener or a Wrapped form.
type Registrant interface {
	registrant()
}

// Wrapped carries a listener together with its once flag. Wrapped values
// may nest; the innermost *Listener is registered and the outermost Once
// flag applies.
type Wrapped struct {
	Listener Registrant
	Once     bool
}

func (Wrapped) registrant() {}

// ValidateListener reports whether r can be registered.
func ValidateListener(r Registrant) error {
	_, _, err := unwrap(r)
	return err
}

func unwrap(r Registrant) (*Listener, bool, error) {
	switch v := r.(type) {
	case *Listener:
		if v == nil || v.fn == nil {
			return nil, false, &InvalidListenerError{Value: r}
		}
		return v, false, nil
	case Wrapped:
		l, _, err := unwrap(v.Listener)
		if err != nil {
			return nil, false, &InvalidListenerError{Value: r}
		}
		return l, v.Once, nil
	case *Wrapped:
		if v == nil {
			return nil, false, &InvalidListenerError{Value: r}
		}
		return unwrap(*v)
	default:
		return nil, false, &InvalidListenerError{Value: r}
	}
}
