package emitter

import (
	"slices"
	"sort"
)

// AddListener registers l on every key sel resolves to. A literal key is
// created if needed; a pattern reaches only keys that already exist. Adding
// a listener that is already registered on a key is a no-op for that key.
//
// It panics with an *InvalidListenerError if l cannot be invoked. Use
// Subscribe for an error return instead.
func (e *Emitter) AddListener(sel Selector, l Registrant) *Emitter {
	if err := e.Subscribe(sel, l); err != nil {
		panic(err)
	}
	return e
}

// On is an alias for AddListener.
func (e *Emitter) On(sel Selector, l Registrant) *Emitter {
	return e.AddListener(sel, l)
}

// Subscribe is AddListener with an error return.
func (e *Emitter) Subscribe(sel Selector, l Registrant) error {
	listener, once, err := unwrap(l)
	if err != nil {
		return err
	}
	for _, key := range e.resolveKeys(sel, true) {
		subs := e.events[key]
		if indexOfListener(subs, listener) != -1 {
			continue
		}
		e.events[key] = append(subs, &Subscription{Listener: listener, Once: once})
	}
	e.log().Debug("listener added", "selector", describe(sel), "once", once)
	return nil
}

// AddOnceListener registers l so that it is removed before its first
// invocation.
func (e *Emitter) AddOnceListener(sel Selector, l Registrant) *Emitter {
	return e.AddListener(sel, Wrapped{Listener: l, Once: true})
}

// Once is an alias for AddOnceListener.
func (e *Emitter) Once(sel Selector, l Registrant) *Emitter {
	return e.AddOnceListener(sel, l)
}

// RemoveListener unregisters l from every key sel resolves to. Unknown keys
// are not created and an unregistered or invalid listener is ignored.
func (e *Emitter) RemoveListener(sel Selector, l Registrant) *Emitter {
	listener, _, err := unwrap(l)
	if err != nil {
		return e
	}
	for _, key := range e.resolveKeys(sel, false) {
		subs := e.events[key]
		if i := indexOfListener(subs, listener); i != -1 {
			e.events[key] = slices.Delete(subs, i, i+1)
		}
	}
	e.log().Debug("listener removed", "selector", describe(sel))
	return e
}

// Off is an alias for RemoveListener.
func (e *Emitter) Off(sel Selector, l Registrant) *Emitter {
	return e.RemoveListener(sel, l)
}

// AddListeners registers each listener on sel.
func (e *Emitter) AddListeners(sel Selector, listeners ...Registrant) *Emitter {
	return e.ManipulateListeners(false, sel, listeners...)
}

// RemoveListeners unregisters each listener from sel.
func (e *Emitter) RemoveListeners(sel Selector, listeners ...Registrant) *Emitter {
	return e.ManipulateListeners(true, sel, listeners...)
}

// ManipulateListeners adds or removes each listener through the singular
// operation. Listeners are applied from last to first, so a bulk add leaves
// them registered in reverse argument order.
func (e *Emitter) ManipulateListeners(remove bool, sel Selector, listeners ...Registrant) *Emitter {
	for i := len(listeners) - 1; i >= 0; i-- {
		if remove {
			e.RemoveListener(sel, listeners[i])
		} else {
			e.AddListener(sel, listeners[i])
		}
	}
	return e
}

// ListenerMap maps literal keys to either a single Registrant or a
// []Registrant / []*Listener. Nil values are skipped.
type ListenerMap map[string]any

// AddListenerMap registers every entry of m.
func (e *Emitter) AddListenerMap(m ListenerMap) *Emitter {
	return e.ManipulateListenerMap(false, m)
}

// RemoveListenerMap unregisters every entry of m.
func (e *Emitter) RemoveListenerMap(m ListenerMap) *Emitter {
	return e.ManipulateListenerMap(true, m)
}

// ManipulateListenerMap applies each entry of m to the singular or bulk
// operation depending on its value. Keys are processed in sorted order.
// A value of any other type panics with an *InvalidListenerError.
func (e *Emitter) ManipulateListenerMap(remove bool, m ListenerMap) *Emitter {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		switch v := m[k].(type) {
		case nil:
		case []Registrant:
			e.ManipulateListeners(remove, Key(k), v...)
		case []*Listener:
			list := make([]Registrant, len(v))
			for i, l := range v {
				list[i] = l
			}
			e.ManipulateListeners(remove, Key(k), list...)
		case Registrant:
			if remove {
				e.RemoveListener(Key(k), v)
			} else {
				e.AddListener(Key(k), v)
			}
		default:
			panic(&InvalidListenerError{Value: v})
		}
	}
	return e
}
