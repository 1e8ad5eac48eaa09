package scheduler_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaharia-lab/emitter/internal/config"
	"github.com/shaharia-lab/emitter/internal/scheduler"
	"github.com/shaharia-lab/emitter/internal/service"
)

// --- helpers ---

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type stubEmitter struct {
	mu   sync.Mutex
	reqs []service.EmitRequest
	err  error
}

func (s *stubEmitter) Emit(_ context.Context, req service.EmitRequest) (*service.EmitResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reqs = append(s.reqs, req)
	if s.err != nil {
		return nil, s.err
	}
	return &service.EmitResult{ID: "em-1", Selector: req.Selector}, nil
}

func (s *stubEmitter) waitForRequests(n int, timeout time.Duration) []service.EmitRequest {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		s.mu.Lock()
		if len(s.reqs) >= n {
			out := append([]service.EmitRequest(nil), s.reqs...)
			s.mu.Unlock()
			return out
		}
		s.mu.Unlock()
		time.Sleep(5 * time.Millisecond)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]service.EmitRequest(nil), s.reqs...)
}

func newScheduler(t *testing.T, em scheduler.Emitter) *scheduler.Scheduler {
	t.Helper()
	s, err := scheduler.New(scheduler.Config{Emitter: em, Logger: newTestLogger(), MaxConcurrency: 1})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Stop() })
	return s
}

// --- tests ---

func TestNew_RequiresEmitter(t *testing.T) {
	_, err := scheduler.New(scheduler.Config{})
	assert.Error(t, err)
}

func TestFire_LiteralEvent(t *testing.T) {
	em := &stubEmitter{}
	s := newScheduler(t, em)
	require.NoError(t, s.Schedule(config.ScheduleDefinition{
		Name:  "heartbeat",
		Event: "tick",
		Args:  []any{"x", 1},
		Type:  config.ScheduleInterval,
		Every: time.Hour,
	}))

	s.ExportedFire("heartbeat")

	reqs := em.waitForRequests(1, 500*time.Millisecond)
	require.Len(t, reqs, 1)
	assert.Equal(t, "tick", reqs[0].Selector)
	assert.Empty(t, reqs[0].Pattern)
	assert.Equal(t, []any{"x", 1}, reqs[0].Args)
	assert.Equal(t, "scheduler:heartbeat", reqs[0].Source)

	jobs := s.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, 1, jobs[0].Runs)
	assert.Empty(t, jobs[0].LastError)
	assert.False(t, jobs[0].LastRun.IsZero())
}

func TestFire_Pattern(t *testing.T) {
	em := &stubEmitter{}
	s := newScheduler(t, em)
	require.NoError(t, s.Schedule(config.ScheduleDefinition{
		Name:        "sweep",
		Pattern:     "job.*",
		PatternType: "glob",
		Type:        config.ScheduleCron,
		Expression:  "0 * * * *",
	}))

	s.ExportedFire("sweep")

	reqs := em.waitForRequests(1, 500*time.Millisecond)
	require.Len(t, reqs, 1)
	assert.Equal(t, service.SelectorSpec{Selector: "job.*", Pattern: "glob"}, reqs[0].SelectorSpec)
}

func TestFire_RecordsError(t *testing.T) {
	em := &stubEmitter{err: errors.New("boom")}
	s := newScheduler(t, em)
	require.NoError(t, s.Schedule(config.ScheduleDefinition{Name: "bad", Event: "x", Type: config.ScheduleInterval, Every: time.Hour}))

	s.ExportedFire("bad")

	jobs := s.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, "boom", jobs[0].LastError)
}

func TestFire_UnknownScheduleIsNoop(t *testing.T) {
	em := &stubEmitter{}
	s := newScheduler(t, em)

	assert.NotPanics(t, func() { s.ExportedFire("missing") })
	assert.Empty(t, em.waitForRequests(1, 20*time.Millisecond))
}

func TestSchedule_InvalidDefinitions(t *testing.T) {
	s := newScheduler(t, &stubEmitter{})

	tests := []struct {
		name string
		def  config.ScheduleDefinition
	}{
		{"unknown type", config.ScheduleDefinition{Name: "a", Event: "x", Type: "weekly"}},
		{"zero interval", config.ScheduleDefinition{Name: "b", Event: "x", Type: config.ScheduleInterval}},
		{"one-off without time", config.ScheduleDefinition{Name: "c", Event: "x", Type: config.ScheduleOneOff}},
		{"bad cron", config.ScheduleDefinition{Name: "d", Event: "x", Type: config.ScheduleCron, Expression: "not a cron"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, s.Schedule(tt.def))
		})
	}
	assert.Empty(t, s.Jobs())
}

func TestSchedule_ReplaceAndUnschedule(t *testing.T) {
	s := newScheduler(t, &stubEmitter{})
	def := config.ScheduleDefinition{Name: "hb", Event: "tick", Type: config.ScheduleInterval, Every: time.Hour}

	require.NoError(t, s.Schedule(def))
	def.Every = 2 * time.Hour
	require.NoError(t, s.Schedule(def))
	assert.Len(t, s.Jobs(), 1)

	assert.True(t, s.Unschedule("hb"))
	assert.Empty(t, s.Jobs())
	assert.False(t, s.Unschedule("hb"))
}

func TestStart_FiresOneOff(t *testing.T) {
	em := &stubEmitter{}
	s := newScheduler(t, em)

	defs := []config.ScheduleDefinition{
		{Name: "soon", Event: "boot", Type: config.ScheduleOneOff, RunAt: time.Now().Add(50 * time.Millisecond)},
		{Name: "broken", Event: "x", Type: "nope"},
	}
	require.NoError(t, s.Start(context.Background(), defs))

	reqs := em.waitForRequests(1, 2*time.Second)
	require.Len(t, reqs, 1)
	assert.Equal(t, "boot", reqs[0].Selector)
	assert.Equal(t, []string{"soon"}, []string{s.Jobs()[0].Name}, "invalid definitions are skipped")
}

func TestMaintain(t *testing.T) {
	s := newScheduler(t, &stubEmitter{})

	assert.Error(t, s.Maintain("purge", 0, func(context.Context) error { return nil }))

	var runs atomic.Int32
	require.NoError(t, s.Maintain("purge", 20*time.Millisecond, func(ctx context.Context) error {
		runs.Add(1)
		return ctx.Err()
	}))
	require.NoError(t, s.Start(context.Background(), nil))

	assert.Eventually(t, func() bool { return runs.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Empty(t, s.Jobs(), "maintenance jobs are not listed")
}
