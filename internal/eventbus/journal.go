package eventbus

import (
	"context"
	"log/slog"
	"time"

	"github.com/shaharia-lab/emitter/internal/storage"
)

const recordTimeout = 5 * time.Second

// JournalWriter returns a listener that records emission events in store.
// Failures are logged; the emission itself has already been dispatched.
func JournalWriter(store storage.EmissionStore, logger *slog.Logger) Listener {
	return func(e Event) {
		if e.Type != TypeEmission || e.Emission == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()
		if err := store.Record(ctx, e.Emission); err != nil {
			logger.Error("failed to record emission",
				"emission_id", e.Emission.ID,
				"selector", e.Emission.Selector,
				"error", err,
			)
		}
	}
}
