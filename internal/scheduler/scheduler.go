package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"

	"github.com/shaharia-lab/emitter/internal/config"
	"github.com/shaharia-lab/emitter/internal/service"
)

// SourcePrefix prefixes the journal source of every scheduled emission.
const SourcePrefix = "scheduler:"

// Emitter is the part of the event service the scheduler drives.
type Emitter interface {
	Emit(ctx context.Context, req service.EmitRequest) (*service.EmitResult, error)
}

// Config holds the scheduler configuration.
type Config struct {
	Emitter        Emitter
	Logger         *slog.Logger
	MaxConcurrency int
	// Timeout bounds a single scheduled emit. Defaults to 30s.
	Timeout time.Duration
}

// JobStatus reports the state of one scheduled emit.
type JobStatus struct {
	Name      string    `json:"name"`
	Runs      int       `json:"runs"`
	LastRun   time.Time `json:"last_run,omitempty"`
	LastError string    `json:"last_error,omitempty"`
	NextRun   time.Time `json:"next_run,omitempty"`
}

type job struct {
	id   uuid.UUID
	def  config.ScheduleDefinition
	runs int
	last time.Time
	err  string
}

// Scheduler fires configured emits using gocron.
type Scheduler struct {
	cron      gocron.Scheduler
	cfg       Config
	jobs      map[string]*job // schedule name → job
	mu        sync.Mutex
	semaphore chan struct{}
	logger    *slog.Logger
}

// New creates a new Scheduler.
func New(cfg Config) (*Scheduler, error) {
	if cfg.Emitter == nil {
		return nil, fmt.Errorf("scheduler requires an emitter")
	}
	cron, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("creating gocron scheduler: %w", err)
	}

	maxConc := cfg.MaxConcurrency
	if maxConc <= 0 {
		maxConc = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		cron:      cron,
		cfg:       cfg,
		jobs:      make(map[string]*job),
		semaphore: make(chan struct{}, maxConc),
		logger:    logger,
	}, nil
}

// Start schedules every definition and starts the gocron scheduler. A
// definition that cannot be scheduled is logged and skipped.
func (s *Scheduler) Start(_ context.Context, defs []config.ScheduleDefinition) error {
	for _, def := range defs {
		if err := s.Schedule(def); err != nil {
			s.logger.Warn("failed to schedule emit on startup", "schedule", def.Name, "error", err)
		}
	}

	s.cron.Start()
	s.logger.Info("emit scheduler started", "schedules", len(s.Jobs()))
	return nil
}

// Stop shuts down the gocron scheduler.
func (s *Scheduler) Stop() error {
	return s.cron.Shutdown()
}

// Schedule adds or replaces a schedule in gocron.
func (s *Scheduler) Schedule(def config.ScheduleDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.jobs[def.Name]; ok {
		if err := s.cron.RemoveJob(existing.id); err != nil {
			s.logger.Warn("failed to remove existing job", "schedule", def.Name, "error", err)
		}
		delete(s.jobs, def.Name)
	}

	jobDef, err := buildJobDefinition(def)
	if err != nil {
		return fmt.Errorf("building job definition for schedule %q: %w", def.Name, err)
	}

	name := def.Name
	j, err := s.cron.NewJob(jobDef, gocron.NewTask(func() {
		s.fire(name)
	}), gocron.WithName(name))
	if err != nil {
		return fmt.Errorf("scheduling %q: %w", def.Name, err)
	}

	s.jobs[def.Name] = &job{id: j.ID(), def: def}
	s.logger.Info("emit scheduled", "schedule", def.Name, "type", def.Type, "event", def.Event, "pattern", def.Pattern)
	return nil
}

// Maintain runs task every interval alongside the scheduled emits. Maintenance
// jobs are not reported by Jobs.
func (s *Scheduler) Maintain(name string, every time.Duration, task func(ctx context.Context) error) error {
	if every <= 0 {
		return fmt.Errorf("maintenance %q: interval must be positive, got %s", name, every)
	}
	_, err := s.cron.NewJob(gocron.DurationJob(every), gocron.NewTask(func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Timeout)
		defer cancel()
		if err := task(ctx); err != nil {
			s.logger.Error("maintenance failed", "task", name, "error", err)
		}
	}), gocron.WithName(name), gocron.WithSingletonMode(gocron.LimitModeReschedule))
	if err != nil {
		return fmt.Errorf("scheduling maintenance %q: %w", name, err)
	}
	return nil
}

// Unschedule removes a schedule from the gocron scheduler. It reports
// whether the schedule existed.
func (s *Scheduler) Unschedule(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[name]
	if !ok {
		return false
	}
	if err := s.cron.RemoveJob(j.id); err != nil {
		s.logger.Warn("failed to remove job", "schedule", name, "error", err)
	}
	delete(s.jobs, name)
	s.logger.Info("emit unscheduled", "schedule", name)
	return true
}

// Jobs returns the status of every schedule, sorted by name.
func (s *Scheduler) Jobs() []JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(map[uuid.UUID]time.Time)
	for _, cj := range s.cron.Jobs() {
		if t, err := cj.NextRun(); err == nil {
			next[cj.ID()] = t
		}
	}

	out := make([]JobStatus, 0, len(s.jobs))
	for name, j := range s.jobs {
		out = append(out, JobStatus{
			Name:      name,
			Runs:      j.runs,
			LastRun:   j.last,
			LastError: j.err,
			NextRun:   next[j.id],
		})
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Name < out[k].Name })
	return out
}

// buildJobDefinition converts a schedule definition into a gocron JobDefinition.
func buildJobDefinition(def config.ScheduleDefinition) (gocron.JobDefinition, error) {
	switch def.Type {
	case config.ScheduleOneOff:
		if def.RunAt.IsZero() {
			return nil, fmt.Errorf("one-off schedule needs a run time")
		}
		return gocron.OneTimeJob(gocron.OneTimeJobStartDateTime(def.RunAt)), nil

	case config.ScheduleInterval:
		if def.Every <= 0 {
			return nil, fmt.Errorf("interval must be positive, got %s", def.Every)
		}
		return gocron.DurationJob(def.Every), nil

	case config.ScheduleCron:
		return gocron.CronJob(def.Expression, false), nil

	default:
		return nil, fmt.Errorf("unknown schedule type: %s", def.Type)
	}
}
