package emitter

import "log/slog"

// Interface is the event surface a host gains by embedding Emitter.
type Interface interface {
	AddListener(sel Selector, l Registrant) *Emitter
	On(sel Selector, l Registrant) *Emitter
	AddOnceListener(sel Selector, l Registrant) *Emitter
	Once(sel Selector, l Registrant) *Emitter
	RemoveListener(sel Selector, l Registrant) *Emitter
	Off(sel Selector, l Registrant) *Emitter
	Subscribe(sel Selector, l Registrant) error

	AddListeners(sel Selector, listeners ...Registrant) *Emitter
	RemoveListeners(sel Selector, listeners ...Registrant) *Emitter
	ManipulateListeners(remove bool, sel Selector, listeners ...Registrant) *Emitter
	AddListenerMap(m ListenerMap) *Emitter
	RemoveListenerMap(m ListenerMap) *Emitter
	ManipulateListenerMap(remove bool, m ListenerMap) *Emitter

	DefineEvent(key Key) *Emitter
	DefineEvents(keys ...Key) *Emitter
	RemoveEvent(sel Selector) *Emitter
	RemoveAllListeners(sels ...Selector) *Emitter

	GetListeners(key Key) []Subscription
	GetListenersAsObject(sel Selector) map[string][]Subscription
	FlattenListeners(subs []Subscription) []*Listener
	Events() []string
	HasEvent(key Key) bool

	EmitEvent(sel Selector, args []any) *Emitter
	Trigger(sel Selector, args []any) *Emitter
	Emit(sel Selector, args ...any) *Emitter

	SetOnceReturnValue(v any) *Emitter
	OnceReturnValue() any
	SetLogger(logger *slog.Logger) *Emitter
}

var _ Interface = (*Emitter)(nil)
