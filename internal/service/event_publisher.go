package service

import "github.com/shaharia-lab/emitter/internal/storage"

// EventPublisher is the interface for handing emission records to the journal
// pipeline. The service never writes to storage on the dispatch path.
type EventPublisher interface {
	Publish(eventType string, e *storage.Emission)
}
