package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"github.com/shaharia-lab/emitter/internal/api"
	"github.com/shaharia-lab/emitter/internal/build"
	"github.com/shaharia-lab/emitter/internal/config"
	"github.com/shaharia-lab/emitter/internal/eventbus"
	"github.com/shaharia-lab/emitter/internal/logger"
	"github.com/shaharia-lab/emitter/internal/metrics"
	"github.com/shaharia-lab/emitter/internal/scheduler"
	"github.com/shaharia-lab/emitter/internal/server"
	"github.com/shaharia-lab/emitter/internal/service"
	"github.com/shaharia-lab/emitter/internal/storage"
)

// NewServeCmd returns the "serve" subcommand that starts the HTTP server.
func NewServeCmd(cfg *config.AppConfig) *cobra.Command {
	var (
		port      int
		schedules string
		noJournal bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the emitter HTTP API",
		Long: `Start the HTTP server exposing the listener registry under /api,
Prometheus metrics under /metrics and a health check under /health.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// CLI flags override env config.
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}
			if cmd.Flags().Changed("schedules") {
				cfg.SchedulesPath = schedules
			}
			if noJournal {
				cfg.JournalEnabled = false
			}

			serverURL := fmt.Sprintf("http://localhost:%d", cfg.Port)
			logFile := filepath.Join(cfg.LogDir(), "system.log")
			printBanner(cmd.OutOrStdout(), build.Version, serverURL, logFile)

			if err := runServe(cmd.Context(), cfg); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "An error occurred. Please check the logs at: %s\n", logFile)
				return err
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&port, "port", cfg.Port, "HTTP server port (overrides PORT env var)")
	cmd.Flags().StringVar(&schedules, "schedules", "", "Schedules YAML file (overrides EMITTER_SCHEDULES_FILE)")
	cmd.Flags().BoolVar(&noJournal, "no-journal", false, "Do not record emissions in the SQLite journal")

	return cmd
}

func runServe(parent context.Context, cfg *config.AppConfig) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := os.MkdirAll(cfg.DataDir, 0750); err != nil {
		return fmt.Errorf("creating data directory %s: %w", cfg.DataDir, err)
	}

	sysLogger, logCloser, err := logger.NewSystemLogger(cfg.LogDir(), cfg.SlogLevel())
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() { _ = logCloser.Close() }()

	sysLogger.Info("emitter starting",
		slog.Int("port", cfg.Port),
		slog.String("data_dir", cfg.DataDir),
		slog.Bool("journal", cfg.JournalEnabled),
		slog.String("version", build.Version),
		slog.String("commit", build.CommitSHA),
		slog.String("build_date", build.BuildDate),
	)

	m := metrics.New()
	opts := service.Options{
		Metrics:   m,
		Tracer:    otel.Tracer("github.com/shaharia-lab/emitter"),
		InboxSize: cfg.InboxSize,
	}

	var store storage.EmissionStore
	if cfg.JournalEnabled {
		db, fresh, err := storage.NewSQLiteDB(cfg.DatabasePath())
		if err != nil {
			return fmt.Errorf("opening journal: %w", err)
		}
		defer func() { _ = db.Close() }()
		if fresh {
			sysLogger.Info("created emission journal", "path", cfg.DatabasePath())
		}
		store = storage.NewSQLiteEmissionStore(db)

		bus := eventbus.New(cfg.JournalWorkers,
			eventbus.WithLogger(sysLogger),
			eventbus.WithDropHandler(func(eventbus.Event) { m.JournalDropped() }),
		)
		// Closed before the database so pending records are written.
		defer bus.Close()
		bus.Subscribe(eventbus.JournalWriter(store, sysLogger))

		opts.Journal = store
		opts.Publisher = bus
	}

	eventSvc := service.NewEventService(opts, sysLogger)
	if v, ok := cfg.InitialOnceReturnValue(); ok {
		if _, err := eventSvc.SetOnceReturnValue(ctx, v); err != nil {
			return fmt.Errorf("EMITTER_ONCE_RETURN_VALUE: %w", err)
		}
	}

	sched, err := startScheduler(ctx, cfg, eventSvc, store, sysLogger)
	if err != nil {
		return err
	}
	defer func() {
		if err := sched.Stop(); err != nil {
			sysLogger.Warn("stopping scheduler", "error", err)
		}
	}()

	apiSrv := api.New(eventSvc, sched, sysLogger)
	srv := server.New(apiSrv, server.Config{
		Port:        cfg.Port,
		CORSOrigins: cfg.CORSOrigins,
		Metrics:     m.Handler(),
	}, sysLogger)

	sysLogger.Info("server ready", "url", fmt.Sprintf("http://localhost:%d", cfg.Port))
	return srv.Run(ctx)
}

// startScheduler loads the schedules file and starts the emit scheduler.
// With a journal, it also purges emissions older than the retention window.
func startScheduler(ctx context.Context, cfg *config.AppConfig, svc service.EventService,
	store storage.EmissionStore, logger *slog.Logger) (*scheduler.Scheduler, error) {
	defs, err := config.LoadSchedules(cfg.SchedulesFile())
	if err != nil {
		return nil, fmt.Errorf("loading schedules: %w", err)
	}

	sched, err := scheduler.New(scheduler.Config{Emitter: svc, Logger: logger})
	if err != nil {
		return nil, err
	}

	if store != nil && cfg.JournalRetention > 0 {
		retention := cfg.JournalRetention
		err := sched.Maintain("journal-retention", min(retention, time.Hour), func(ctx context.Context) error {
			n, err := store.Purge(ctx, time.Now().Add(-retention))
			if err != nil {
				return err
			}
			if n > 0 {
				logger.Info("purged journal", "removed", n, "retention", retention)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	if err := sched.Start(ctx, defs); err != nil {
		return nil, fmt.Errorf("starting scheduler: %w", err)
	}
	return sched, nil
}

// printBanner writes the startup banner. It is the only output visible in
// the terminal during normal operation; structured logs go to the log file.
func printBanner(w io.Writer, version, serverURL, logFile string) {
	fmt.Fprint(w, `
                _ _   _
  ___ _ __ ___ (_) |_| |_ ___ _ __
 / _ \ '_ `+"`"+` _ \| | __| __/ _ \ '__|
|  __/ | | | | | | |_| ||  __/ |
 \___|_| |_| |_|_|\__|\__\___|_|

`)
	fmt.Fprintf(w, "emitter %s running.\n", version)
	fmt.Fprintf(w, "API:  %s/api\n", serverURL)
	fmt.Fprintf(w, "Logs: %s\n\n", logFile)
}
