package emitter

import "reflect"

// EmitEvent invokes every listener on every key sel resolves to, passing
// args positionally. No key is created. Each key is dispatched from a copy
// of its listener list taken when the key's pass starts.
//
// A once listener is removed before it runs, so re-emitting the same event
// from inside it cannot fire it again. A listener returning the once-return
// value is removed after it runs. Removal is per key: a once listener on
// several keys, for example one added through a pattern, fires once on each
// of them, including when a single pattern emit reaches them all.
//
// A panic in a listener propagates to the caller and skips the rest of the
// pass.
func (e *Emitter) EmitEvent(sel Selector, args []any) *Emitter {
	keys := e.resolveKeys(sel, false)
	e.log().Debug("emitting event", "selector", describe(sel), "keys", len(keys), "args", len(args))

	for _, key := range keys {
		snapshot := append([]*Subscription(nil), e.events[key]...)
		for _, sub := range snapshot {
			if sub.Once {
				e.removeSubscription(key, sub)
			}
			ret := sub.Listener.fn(args...)
			if e.isOnceReturn(ret) && e.removeSubscription(key, sub) {
				e.log().Debug("listener auto-removed", "key", key)
			}
		}
	}
	return e
}

// Trigger is an alias for EmitEvent.
func (e *Emitter) Trigger(sel Selector, args []any) *Emitter {
	return e.EmitEvent(sel, args)
}

// Emit is EmitEvent with variadic arguments.
func (e *Emitter) Emit(sel Selector, args ...any) *Emitter {
	return e.EmitEvent(sel, args)
}

// SetOnceReturnValue sets the value that makes a listener remove itself by
// returning it.
func (e *Emitter) SetOnceReturnValue(v any) *Emitter {
	e.onceReturn = v
	e.hasOnceReturn = true
	return e
}

// OnceReturnValue returns the auto-remove value. It is true until changed.
func (e *Emitter) OnceReturnValue() any {
	if !e.hasOnceReturn {
		return true
	}
	return e.onceReturn
}

// isOnceReturn compares with ==. Values of different or uncomparable types
// never match.
func (e *Emitter) isOnceReturn(v any) bool {
	want := e.OnceReturnValue()
	if v == nil || want == nil {
		return v == want
	}
	if reflect.TypeOf(v) != reflect.TypeOf(want) || !reflect.ValueOf(v).Comparable() {
		return false
	}
	return v == want
}
