package storage

import (
	"context"
	"time"
)

// Selector kinds recorded with each emission.
const (
	SelectorKey    = "key"
	SelectorRegexp = "regexp"
	SelectorGlob   = "glob"
)

// Emission records one dispatch performed by the service.
type Emission struct {
	ID           string    `json:"id"`
	Selector     string    `json:"selector"`
	SelectorKind string    `json:"selector_kind"`
	Args         []any     `json:"args"`
	MatchedKeys  []string  `json:"matched_keys"`
	Invocations  int       `json:"invocations"`
	Source       string    `json:"source"`
	EmittedAt    time.Time `json:"emitted_at"`
}

// EmissionFilter narrows List results. Zero fields do not filter.
type EmissionFilter struct {
	Selector string
	Source   string
	Since    time.Time
	Limit    int
}

// EmissionStore defines the interface for the emission journal.
type EmissionStore interface {
	// Record appends an emission to the journal.
	Record(ctx context.Context, e *Emission) error
	// List returns emissions newest first.
	List(ctx context.Context, filter EmissionFilter) ([]*Emission, error)
	// Get returns a single emission, or nil if it does not exist.
	Get(ctx context.Context, id string) (*Emission, error)
	// Purge deletes emissions recorded before the given time and reports how many were removed.
	Purge(ctx context.Context, before time.Time) (int64, error)
}
