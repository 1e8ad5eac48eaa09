package emitter

import (
	"log/slog"
	"slices"
)

// Subscription is one registration of a listener on one key.
type Subscription struct {
	Listener *Listener
	Once     bool
}

// Emitter owns a listener registry. The zero value is ready to use.
type Emitter struct {
	events map[string][]*Subscription
	// keys holds registry keys in creation order.
	keys []string

	onceReturn    any
	hasOnceReturn bool

	logger *slog.Logger
}

var discardLogger = slog.New(slog.DiscardHandler)

// New returns an empty emitter. Embedding a zero Emitter is equivalent.
func New() *Emitter {
	return &Emitter{}
}

// SetLogger sets the logger used for debug output. A nil logger discards.
func (e *Emitter) SetLogger(logger *slog.Logger) *Emitter {
	e.logger = logger
	return e
}

func (e *Emitter) log() *slog.Logger {
	if e.logger == nil {
		return discardLogger
	}
	return e.logger
}

func (e *Emitter) registry() map[string][]*Subscription {
	if e.events == nil {
		e.events = make(map[string][]*Subscription)
	}
	return e.events
}

// resolve returns the live sequence for a literal key, creating it if absent.
func (e *Emitter) resolve(key string) []*Subscription {
	events := e.registry()
	subs, ok := events[key]
	if !ok {
		subs = []*Subscription{}
		events[key] = subs
		e.keys = append(e.keys, key)
	}
	return subs
}

// resolveKeys turns a selector into concrete keys. A literal key is created
// when create is set; a pattern only ever selects existing keys. The result
// is a fresh slice, safe to range over while the registry changes.
func (e *Emitter) resolveKeys(sel Selector, create bool) []string {
	switch s := sel.(type) {
	case Key:
		key := string(s)
		if create {
			e.resolve(key)
			return []string{key}
		}
		if _, ok := e.events[key]; ok {
			return []string{key}
		}
		return nil
	case *Pattern:
		var matched []string
		for _, key := range e.keys {
			if s.Match(key) {
				matched = append(matched, key)
			}
		}
		return matched
	default:
		return nil
	}
}

// resolveAsMap maps each resolved key to a copy of its sequence.
func (e *Emitter) resolveAsMap(sel Selector, create bool) map[string][]Subscription {
	out := make(map[string][]Subscription)
	for _, key := range e.resolveKeys(sel, create) {
		out[key] = snapshotValues(e.events[key])
	}
	return out
}

func snapshotValues(subs []*Subscription) []Subscription {
	out := make([]Subscription, len(subs))
	for i, s := range subs {
		out[i] = *s
	}
	return out
}

func indexOfListener(subs []*Subscription, l *Listener) int {
	for i, s := range subs {
		if s.Listener == l {
			return i
		}
	}
	return -1
}

// removeSubscription drops exactly sub from key's live sequence. It is a
// no-op if sub was already removed or the key no longer exists.
func (e *Emitter) removeSubscription(key string, sub *Subscription) bool {
	subs, ok := e.events[key]
	if !ok {
		return false
	}
	i := slices.Index(subs, sub)
	if i < 0 {
		return false
	}
	e.events[key] = slices.Delete(subs, i, i+1)
	return true
}

func (e *Emitter) deleteKey(key string) {
	delete(e.events, key)
	if i := slices.Index(e.keys, key); i >= 0 {
		e.keys = slices.Delete(e.keys, i, i+1)
	}
}

// DefineEvent creates an empty entry for key if it does not exist yet.
// Pattern subscriptions only reach keys that exist, so define keys first.
func (e *Emitter) DefineEvent(key Key) *Emitter {
	e.resolve(string(key))
	e.log().Debug("event defined", "key", string(key))
	return e
}

// DefineEvents defines each key in order.
func (e *Emitter) DefineEvents(keys ...Key) *Emitter {
	for _, k := range keys {
		e.DefineEvent(k)
	}
	return e
}

// RemoveEvent deletes the key, or every key the pattern matches, together
// with their listeners. A nil selector clears the whole registry.
func (e *Emitter) RemoveEvent(sel Selector) *Emitter {
	if sel == nil {
		e.events = nil
		e.keys = nil
		e.log().Debug("registry cleared")
		return e
	}
	for _, key := range e.resolveKeys(sel, false) {
		e.deleteKey(key)
	}
	e.log().Debug("event removed", "selector", describe(sel))
	return e
}

// RemoveAllListeners removes the keys each selector resolves to, or every
// key when called without arguments.
func (e *Emitter) RemoveAllListeners(sels ...Selector) *Emitter {
	if len(sels) == 0 {
		return e.RemoveEvent(nil)
	}
	for _, sel := range sels {
		e.RemoveEvent(sel)
	}
	return e
}

// GetListeners returns a copy of the subscriptions on key, creating the key
// if it does not exist.
func (e *Emitter) GetListeners(key Key) []Subscription {
	return snapshotValues(e.resolve(string(key)))
}

// GetListenersAsObject returns the subscriptions of every key the selector
// resolves to. A literal key is created if absent; a pattern with no match
// returns an empty map.
func (e *Emitter) GetListenersAsObject(sel Selector) map[string][]Subscription {
	return e.resolveAsMap(sel, true)
}

// FlattenListeners extracts the listeners from a list of subscriptions.
func FlattenListeners(subs []Subscription) []*Listener {
	out := make([]*Listener, len(subs))
	for i, s := range subs {
		out[i] = s.Listener
	}
	return out
}

// FlattenListeners is the method form of the package function.
func (e *Emitter) FlattenListeners(subs []Subscription) []*Listener {
	return FlattenListeners(subs)
}

// Events returns the defined keys in creation order.
func (e *Emitter) Events() []string {
	return slices.Clone(e.keys)
}

// HasEvent reports whether key exists, without creating it.
func (e *Emitter) HasEvent(key Key) bool {
	_, ok := e.events[string(key)]
	return ok
}
