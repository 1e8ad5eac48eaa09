package scheduler

import (
	"context"
	"time"

	"github.com/shaharia-lab/emitter/internal/config"
	"github.com/shaharia-lab/emitter/internal/service"
)

// fire runs a single scheduled emit with concurrency limiting.
func (s *Scheduler) fire(name string) {
	s.semaphore <- struct{}{}
	defer func() { <-s.semaphore }()

	s.mu.Lock()
	j, ok := s.jobs[name]
	var def config.ScheduleDefinition
	if ok {
		def = j.def
	}
	s.mu.Unlock()
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Timeout)
	defer cancel()

	res, err := s.cfg.Emitter.Emit(ctx, emitRequest(def))

	s.mu.Lock()
	if cur, ok := s.jobs[name]; ok && cur == j {
		cur.runs++
		cur.last = time.Now().UTC()
		cur.err = ""
		if err != nil {
			cur.err = err.Error()
		}
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("scheduled emit failed", "schedule", name, "error", err)
		return
	}
	s.logger.Info("scheduled emit fired", "schedule", name,
		"emission_id", res.ID, "matched", res.MatchedKeys, "invocations", res.Invocations)
}

// emitRequest maps a schedule onto the service request. A literal event
// wins over a pattern.
func emitRequest(def config.ScheduleDefinition) service.EmitRequest {
	spec := service.SelectorSpec{Selector: def.Event}
	if def.Event == "" {
		spec = service.SelectorSpec{Selector: def.Pattern, Pattern: def.PatternType}
	}
	return service.EmitRequest{
		SelectorSpec: spec,
		Args:         def.Args,
		Source:       SourcePrefix + def.Name,
	}
}
