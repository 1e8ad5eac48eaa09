package eventbus

import (
	"time"

	"github.com/shaharia-lab/emitter/internal/storage"
)

// Event types published by the service.
const (
	TypeEmission = "emission"
)

// Event is a unit of work handed to the bus workers.
type Event struct {
	Type      string            `json:"type"`
	Timestamp time.Time         `json:"timestamp"`
	Emission  *storage.Emission `json:"emission,omitempty"`
}

// Listener is a function that handles an event.
type Listener func(Event)

// DropFunc is called when an event cannot be enqueued.
type DropFunc func(Event)
