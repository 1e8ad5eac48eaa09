package service

import "time"

// Subscriber describes a remote listener and the state of its inbox.
type Subscriber struct {
	ID            string    `json:"id"`
	Selector      string    `json:"selector"`
	Pattern       string    `json:"pattern,omitempty"`
	Once          bool      `json:"once"`
	MaxDeliveries int       `json:"max_deliveries,omitempty"`
	Keys          []string  `json:"keys"`
	Delivered     int       `json:"delivered"`
	Pending       int       `json:"pending"`
	Dropped       int       `json:"dropped"`
	CreatedAt     time.Time `json:"created_at"`
}

// Active reports whether the subscriber is still attached to at least one key.
func (s *Subscriber) Active() bool {
	return len(s.Keys) > 0
}

// SubscriberRequest is the input for CreateSubscriber. ID is optional.
type SubscriberRequest struct {
	ID string `json:"id,omitempty"`
	SelectorSpec
	Once bool `json:"once,omitempty"`
	// MaxDeliveries makes the listener return the once-return value after
	// this many deliveries, which detaches it. Zero means unlimited.
	MaxDeliveries int `json:"max_deliveries,omitempty"`
}

// Delivery is one invocation of a subscriber's listener.
type Delivery struct {
	EmissionID  string    `json:"emission_id"`
	Selector    string    `json:"selector"`
	Args        []any     `json:"args"`
	DeliveredAt time.Time `json:"delivered_at"`
}

// EmitRequest is the input for Emit.
type EmitRequest struct {
	SelectorSpec
	Args   []any  `json:"args"`
	Source string `json:"source,omitempty"`
}

// EmitResult summarises one emission.
type EmitResult struct {
	ID          string    `json:"id"`
	Selector    string    `json:"selector"`
	Kind        string    `json:"kind"`
	MatchedKeys []string  `json:"matched_keys"`
	Invocations int       `json:"invocations"`
	EmittedAt   time.Time `json:"emitted_at"`
}

// EventInfo is a registry key and the number of listeners attached to it.
type EventInfo struct {
	Key       string `json:"key"`
	Listeners int    `json:"listeners"`
}
