package scenario

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"

	"github.com/shaharia-lab/emitter/emitter"
	"github.com/shaharia-lab/emitter/internal/build"
	"github.com/shaharia-lab/emitter/internal/service"
)

// maxDepth bounds nested re-emits started from listeners.
const maxDepth = 16

// ErrReemitDepth is returned when re-emitting listeners nest deeper than maxDepth.
var ErrReemitDepth = errors.New("re-emit depth limit exceeded")

// VersionError is returned when the running build does not satisfy requires.
type VersionError struct {
	Constraint string
	Version    string
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("scenario requires %s, running %s", e.Constraint, e.Version)
}

// ExpectationError is returned when an emit step invokes a different
// sequence of listeners than it declared.
type ExpectationError struct {
	Step int
	Want []string
	Got  []string
}

func (e *ExpectationError) Error() string {
	return fmt.Sprintf("step %d: expected listeners %v, got %v", e.Step, e.Want, e.Got)
}

// Call is one listener invocation.
type Call struct {
	Step     int    `json:"step"`
	Listener string `json:"listener"`
	Args     []any  `json:"args"`
	Depth    int    `json:"depth"`
}

// Attachment is a listener registered under a key.
type Attachment struct {
	Listener string `json:"listener"`
	Once     bool   `json:"once"`
}

// EventState is a key and its listeners at the end of a run.
type EventState struct {
	Key       string       `json:"key"`
	Listeners []Attachment `json:"listeners"`
}

// Trace is the outcome of a run.
type Trace struct {
	Calls  []Call       `json:"calls"`
	Events []EventState `json:"events"`
}

// CallsAt returns the listener names invoked during step, in order.
func (t *Trace) CallsAt(step int) []string {
	var out []string
	for _, c := range t.Calls {
		if c.Step == step {
			out = append(out, c.Listener)
		}
	}
	return out
}

// RunOptions configures Run.
type RunOptions struct {
	// Version is checked against requires. Nil uses the build version;
	// unstamped development builds skip the check.
	Version *semver.Version
	Logger  *slog.Logger
}

// retain is returned by listeners without a declared return value. It never
// equals a decoded once-return value.
type retain struct{}

type run struct {
	e         *emitter.Emitter
	listeners map[string]*emitter.Listener
	names     map[*emitter.Listener]string
	trace     *Trace
	step      int
	depth     int
	err       error
}

// Run executes the scenario against a fresh emitter. The returned trace is
// populated up to the failing step when an error is returned.
func (sc *Scenario) Run(ctx context.Context, opts RunOptions) (*Trace, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if err := sc.checkVersion(opts.Version, logger); err != nil {
		return nil, err
	}

	r := &run{
		e:         emitter.New().SetLogger(logger),
		listeners: make(map[string]*emitter.Listener, len(sc.Listeners)),
		names:     make(map[*emitter.Listener]string, len(sc.Listeners)),
		trace:     &Trace{Calls: []Call{}},
	}
	if v, ok, err := decodeOptional(sc.OnceReturnValue); err != nil {
		return nil, fmt.Errorf("once_return_value: %w", err)
	} else if ok {
		r.e.SetOnceReturnValue(v)
	}
	for name, spec := range sc.Listeners {
		ret, hasRet, err := decodeOptional(spec.Returns)
		if err != nil {
			return nil, fmt.Errorf("listener %q returns: %w", name, err)
		}
		l := emitter.NewListener(r.callback(name, spec.Reemit, ret, hasRet))
		r.listeners[name] = l
		r.names[l] = name
	}

	for i, step := range sc.Steps {
		if err := ctx.Err(); err != nil {
			return r.finish(), err
		}
		r.step = i + 1
		if err := r.apply(step); err != nil {
			return r.finish(), fmt.Errorf("step %d (%s): %w", r.step, step.Op(), err)
		}
		logger.Debug("scenario step applied", "step", r.step, "op", step.Op())
	}
	return r.finish(), nil
}

func (sc *Scenario) checkVersion(v *semver.Version, logger *slog.Logger) error {
	if sc.constraint == nil {
		return nil
	}
	if v == nil {
		current, err := build.SemVer()
		if err != nil {
			return err
		}
		if current.Prerelease() == "dev" {
			logger.Warn("development build, skipping scenario version check", "requires", sc.Requires)
			return nil
		}
		v = current
	}
	if !sc.constraint.Check(v) {
		return &VersionError{Constraint: sc.Requires, Version: v.String()}
	}
	return nil
}

func (r *run) callback(name, reemit string, ret any, hasRet bool) emitter.Callback {
	return func(args ...any) any {
		r.trace.Calls = append(r.trace.Calls, Call{
			Step:     r.step,
			Listener: name,
			Args:     append([]any{}, args...),
			Depth:    r.depth,
		})
		if reemit != "" && r.err == nil {
			if r.depth >= maxDepth {
				r.err = fmt.Errorf("listener %q: %w", name, ErrReemitDepth)
			} else {
				r.depth++
				r.e.EmitEvent(emitter.Key(reemit), args)
				r.depth--
			}
		}
		if hasRet {
			return ret
		}
		return retain{}
	}
}

func (r *run) apply(step Step) error {
	switch {
	case step.Define != nil:
		r.e.DefineEvents(emitter.Keys(step.Define...)...)

	case step.On != nil:
		return r.bind(step.On, false, false)

	case step.Once != nil:
		return r.bind(step.Once, true, false)

	case step.Off != nil:
		return r.bind(step.Off, false, true)

	case step.Emit != nil:
		sel, err := service.ParseSelector(step.Emit.SelectorSpec)
		if err != nil {
			return err
		}
		r.err = nil
		r.e.EmitEvent(sel, step.Emit.Args)
		if r.err != nil {
			return r.err
		}
		if step.Emit.Expect != nil {
			got := r.trace.CallsAt(r.step)
			if !slices.Equal(got, step.Emit.Expect) {
				return &ExpectationError{Step: r.step, Want: step.Emit.Expect, Got: got}
			}
		}

	case step.RemoveEvent != nil:
		if step.RemoveEvent.Selector == "" {
			r.e.RemoveEvent(nil)
			return nil
		}
		sel, err := service.ParseSelector(*step.RemoveEvent)
		if err != nil {
			return err
		}
		r.e.RemoveEvent(sel)
	}
	return nil
}

// bind registers or removes the named listeners. Several names go through
// the bulk form, which applies them last to first.
func (r *run) bind(b *Binding, once, remove bool) error {
	sel, err := service.ParseSelector(b.SelectorSpec)
	if err != nil {
		return err
	}
	names := b.names()
	regs := make([]emitter.Registrant, 0, len(names))
	for _, n := range names {
		l, ok := r.listeners[n]
		if !ok {
			return fmt.Errorf("unknown listener %q", n)
		}
		regs = append(regs, emitter.Wrapped{Listener: l, Once: once})
	}
	if len(regs) == 1 {
		if remove {
			r.e.RemoveListener(sel, regs[0])
		} else {
			r.e.AddListener(sel, regs[0])
		}
		return nil
	}
	r.e.ManipulateListeners(remove, sel, regs...)
	return nil
}

func (r *run) finish() *Trace {
	r.trace.Events = []EventState{}
	for _, k := range r.e.Events() {
		state := EventState{Key: k, Listeners: []Attachment{}}
		for _, sub := range r.e.GetListeners(emitter.Key(k)) {
			state.Listeners = append(state.Listeners, Attachment{Listener: r.names[sub.Listener], Once: sub.Once})
		}
		r.trace.Events = append(r.trace.Events, state)
	}
	return r.trace
}

// decodeOptional decodes n when the key was present. An explicit null
// decodes to nil with ok set.
func decodeOptional(n yaml.Node) (any, bool, error) {
	if n.Kind == 0 {
		return nil, false, nil
	}
	var v any
	if err := n.Decode(&v); err != nil {
		return nil, false, err
	}
	return v, true, nil
}
