package server

import (
	"context"
	"fmt"

	"github.com/HendryAvila/storymap/internal/apperr"
	"github.com/HendryAvila/storymap/internal/bpmn"
	"github.com/HendryAvila/storymap/internal/config"
	"github.com/HendryAvila/storymap/internal/linkage"
	"github.com/HendryAvila/storymap/internal/metrics"
	"github.com/HendryAvila/storymap/internal/persist"
	"github.com/HendryAvila/storymap/internal/session"
	"github.com/HendryAvila/storymap/internal/stories"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// App is a started storymap session with everything wired.
type App struct {
	Config  config.Config
	Store   *linkage.Store
	Engine  *bpmn.Engine
	Stories *stories.Manager
	Session *session.Controller
	// Backend is the storage actually in use. It differs from
	// Config.Storage when the configured backend was unreachable.
	Backend string
	// Registry is non-nil when metrics are enabled.
	Registry *prometheus.Registry
	// Start reports how the session came up.
	Start session.StartReport
}

// Bootstrap opens storage, loads the session and starts it.
//
// Storage that cannot be opened is not fatal: the session falls back to
// memory and the failure is logged. The returned cleanup function is
// always non-nil and closes whatever storage was opened.
func Bootstrap(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, func(), error) {
	if log == nil {
		log = zap.NewNop()
	}

	app := &App{Config: cfg}
	var rec metrics.Recorder = metrics.Nop{}
	if cfg.MetricsAddr != "" {
		app.Registry = prometheus.NewRegistry()
		rec = metrics.NewPrometheusRecorder(app.Registry)
	}

	port, backend, cleanup := openPersister(cfg, log)
	app.Backend = backend

	store, report := linkage.Load(ctx, port, linkage.Options{
		Backend:      backend,
		WriteTimeout: cfg.WriteTimeout,
		Logger:       log.Named("linkage"),
		Metrics:      rec,
	})
	if report.Recovered {
		log.Warn("starting with an empty session", zap.Error(report.Err))
	}
	app.Store = store

	app.Engine = bpmn.NewEngine()
	app.Stories = stories.NewManager(store, app.Engine, stories.Options{
		Logger:  log.Named("stories"),
		Metrics: rec,
	})
	app.Session = session.NewController(store, app.Engine, session.Options{
		DefaultDiagram:  bpmn.DefaultDiagram,
		ReconcileOnLoad: cfg.ReconcileOnLoad,
		Logger:          log.Named("session"),
		Metrics:         rec,
	})

	start, err := app.Session.Start(ctx)
	if err != nil {
		cleanup()
		return nil, noop, fmt.Errorf("starting session: %w", err)
	}
	if start.ImportError != nil {
		log.Warn("saved diagram is corrupt; loaded the default diagram", zap.Error(start.ImportError))
	}
	app.Start = start

	return app, cleanup, nil
}

// openPersister opens the configured backend, falling back to memory.
func openPersister(cfg config.Config, log *zap.Logger) (linkage.Persister, string, func()) {
	port, cleanup, err := openBackend(cfg, log)
	if err != nil {
		log.Warn(cfg.Storage+" storage disabled; session is memory-only", zap.Error(err))
		return persist.NewMemoryStore(), config.StorageMemory, noop
	}
	return port, backendName(cfg.Storage), cleanup
}

// openBackend opens exactly the configured backend.
func openBackend(cfg config.Config, log *zap.Logger) (linkage.Persister, func(), error) {
	switch cfg.Storage {
	case config.StorageSQLite:
		s, err := persist.NewSQLiteStore(cfg.SQLitePath, cfg.SQLiteKey)
		if err != nil {
			return nil, noop, err
		}
		return s, closer(log, config.StorageSQLite, s.Close), nil

	case config.StorageRedis:
		s, err := persist.NewRedisStore(cfg.RedisURL, cfg.RedisKey)
		if err != nil {
			return nil, noop, err
		}
		return s, closer(log, config.StorageRedis, s.Close), nil

	case config.StorageMemory:
		return persist.NewMemoryStore(), noop, nil

	default:
		return persist.NewFileStore(cfg.SessionFile), noop, nil
	}
}

func backendName(storage string) string {
	switch storage {
	case config.StorageSQLite, config.StorageRedis, config.StorageMemory:
		return storage
	default:
		return config.StorageFile
	}
}

// ExportStored reads the session held by the configured backend and
// returns it as an indented backup document. It never falls back to
// memory and never writes. An unreachable backend, an unreadable blob
// and an empty store are errors.
func ExportStored(ctx context.Context, cfg config.Config, log *zap.Logger) ([]byte, error) {
	const op = "export stored session"

	if log == nil {
		log = zap.NewNop()
	}
	port, cleanup, err := openBackend(cfg, log)
	if err != nil {
		return nil, apperr.Persistence(op, err)
	}
	defer cleanup()

	st, err := port.Read(ctx)
	if err != nil {
		return nil, apperr.Persistence(op, err)
	}
	if st == nil {
		return nil, apperr.NotFound(op, "stored session in "+backendName(cfg.Storage)+" storage")
	}
	if n := linkage.Repair(st); n > 0 {
		log.Warn("repaired stored session for export", zap.Int("repairs", n))
	}

	data, err := persist.EncodeIndent(st)
	if err != nil {
		return nil, apperr.New(apperr.KindPersistence, op, "encoding backup", err)
	}
	return data, nil
}

func closer(log *zap.Logger, backend string, close func() error) func() {
	return func() {
		if err := close(); err != nil {
			log.Warn("closing storage", zap.String("backend", backend), zap.Error(err))
		}
	}
}

// noop is the cleanup function used when nothing needs closing.
func noop() {}
