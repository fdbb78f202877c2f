package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/skobkin/rcp2bridge/internal/actions"
	"github.com/skobkin/rcp2bridge/internal/bus"
	"github.com/skobkin/rcp2bridge/internal/camera"
	"github.com/skobkin/rcp2bridge/internal/config"
	"github.com/skobkin/rcp2bridge/internal/connectors"
	"github.com/skobkin/rcp2bridge/internal/domain"
	"github.com/skobkin/rcp2bridge/internal/feedback"
	"github.com/skobkin/rcp2bridge/internal/logging"
	"github.com/skobkin/rcp2bridge/internal/notifications"
	"github.com/skobkin/rcp2bridge/internal/persistence"
)

const shutdownTimeout = 3 * time.Second

// Dependencies overrides the runtime's outward-facing collaborators. Zero values select
// the WebSocket transport and desktop notifications.
type Dependencies struct {
	NewTransport camera.TransportFactory
	Sender       notifications.Sender
}

type Runtime struct {
	mu sync.RWMutex

	Ctx    context.Context
	cancel context.CancelFunc

	Paths  Paths
	Config config.AppConfig
	env    map[string]string

	LogManager *logging.Manager
	Bus        *bus.PubSubBus
	DB         *sql.DB

	HistoryRepo *persistence.HistoryRepo
	WriterQueue *persistence.WriterQueue

	Variables     *domain.VariableStore
	Camera        *camera.Service
	Feedback      *feedback.Engine
	Actions       *actions.Registry
	Notifications *NotificationService

	connStatusMu sync.RWMutex
	connStatus   connectors.ConnectionStatus
}

func Initialize(parent context.Context, configFile string) (*Runtime, error) {
	paths, err := ResolvePaths(configFile)
	if err != nil {
		return nil, err
	}

	return InitializeWithPaths(parent, paths, Dependencies{})
}

func InitializeWithPaths(parent context.Context, paths Paths, deps Dependencies) (*Runtime, error) {
	cfg, err := config.Load(paths.ConfigFile)
	if err != nil {
		return nil, err
	}
	env, err := config.LoadEnv(paths.EnvFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(env); err != nil {
		return nil, fmt.Errorf("apply environment overrides: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	ctx, cancel := context.WithCancel(parent)
	rt := &Runtime{
		Ctx:    ctx,
		cancel: cancel,
		Paths:  paths,
		Config: cfg,
		env:    env,
	}

	logMgr := logging.NewManager()
	if err := logMgr.Configure(cfg.Logging, paths.LogFile); err != nil {
		_ = logMgr.Close()
		cancel()

		return nil, fmt.Errorf("configure logging: %w", err)
	}
	rt.LogManager = logMgr
	slog.Info("starting rcp2bridge runtime", "version", BuildVersion(), "build_date", BuildDateYMD(), "config", paths.ConfigFile)

	db, err := persistence.Open(ctx, paths.DBFile)
	if err != nil {
		_ = rt.Close()

		return nil, err
	}
	rt.DB = db
	rt.HistoryRepo = persistence.NewHistoryRepo(db)
	rt.purgeHistory(ctx, cfg.History.RetentionDays)

	writerQueue := persistence.NewWriterQueue(logMgr.Logger("persistence"), 512)
	writerQueue.Start(ctx)
	rt.WriterQueue = writerQueue

	b := bus.New(logMgr.Logger("bus"))
	rt.Bus = b
	rt.setConnStatus(ConnectionStatusFromConfig(cfg.Camera))
	connSub := b.Subscribe(connectors.TopicConnStatus)
	go rt.captureConnStatus(ctx, connSub)

	rt.Variables = domain.NewVariableStore()
	rt.Variables.Start(ctx, b)
	domain.StartHistoryProjection(ctx, b, writerQueue, rt.HistoryRepo, domain.HistorySource{
		Host:    func() string { return rt.CurrentConfig().Camera.Host },
		Enabled: func() bool { return rt.CurrentConfig().History.Enabled },
	})

	rt.Feedback = feedback.NewEngine(logMgr.Logger("feedback"), b)
	rt.Feedback.Start(ctx, b)

	sender := deps.Sender
	if sender == nil {
		sender = notifications.NewDesktopSender(Name, logMgr.Logger("notifications"))
	}
	rt.Notifications = NewNotificationService(b, rt.CurrentConfig, sender, logMgr.Logger("app.notifications"))
	rt.Notifications.Start(ctx)

	rt.Camera = camera.NewService(logMgr.Logger("camera"), b, camera.Options{
		Host:         cfg.Camera.Host,
		Port:         cfg.Camera.Port,
		Client:       ClientInfo(),
		NewTransport: deps.NewTransport,
	})
	rt.Actions = actions.NewRegistry(logMgr.Logger("actions"), rt.Camera, rt.Variables)
	rt.Camera.Start(ctx)

	return rt, nil
}

func (r *Runtime) captureConnStatus(ctx context.Context, sub bus.Subscription) {
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-sub:
			if !ok {
				return
			}
			status, ok := raw.(connectors.ConnectionStatus)
			if !ok {
				continue
			}
			r.setConnStatus(status)
		}
	}
}

func (r *Runtime) setConnStatus(status connectors.ConnectionStatus) {
	r.connStatusMu.Lock()
	r.connStatus = status
	r.connStatusMu.Unlock()
}

func (r *Runtime) CurrentConnStatus() connectors.ConnectionStatus {
	r.connStatusMu.RLock()
	defer r.connStatusMu.RUnlock()

	return r.connStatus
}

func (r *Runtime) CurrentConfig() config.AppConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.Config
}

// SaveAndApplyConfig persists cfg, re-applies environment overrides on top of it and
// reconnects the camera with the result.
func (r *Runtime) SaveAndApplyConfig(cfg config.AppConfig) error {
	cfg.FillMissingDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	if err := config.Save(r.Paths.ConfigFile, cfg); err != nil {
		r.mu.Unlock()

		return err
	}
	live := cfg
	if err := live.ApplyEnv(r.env); err != nil {
		r.mu.Unlock()

		return fmt.Errorf("apply environment overrides: %w", err)
	}
	r.Config = live
	r.mu.Unlock()

	if err := r.LogManager.Configure(live.Logging, r.Paths.LogFile); err != nil {
		return err
	}
	slog.Info("config applied, reconnecting", "host", live.Camera.Host, "port", live.Camera.Port)
	r.Camera.Reconfigure(live.Camera.Host, live.Camera.Port)

	return nil
}

// History lists the latest recorded values of one variable, newest first.
func (r *Runtime) History(ctx context.Context, variable string, limit int) ([]domain.VariableChange, error) {
	if r.HistoryRepo == nil {
		return nil, fmt.Errorf("database is not initialized")
	}
	if limit <= 0 {
		limit = HistoryLimit
	}

	return r.HistoryRepo.ListLatest(ctx, variable, limit)
}

// ClearHistory drops every recorded variable change.
func (r *Runtime) ClearHistory(ctx context.Context) error {
	return persistence.ClearDatabase(ctx, r.DB)
}

func (r *Runtime) purgeHistory(ctx context.Context, retentionDays int) {
	if retentionDays <= 0 {
		return
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	n, err := r.HistoryRepo.PurgeOlderThan(ctx, cutoff)
	if err != nil {
		slog.Warn("purge variable history", "error", err)

		return
	}
	if n > 0 {
		slog.Info("purged variable history", "rows", n, "older_than", cutoff)
	}
}

func (r *Runtime) Close() error {
	if r.cancel != nil {
		r.cancel()
	}
	if r.Camera != nil {
		select {
		case <-r.Camera.Done():
		case <-time.After(shutdownTimeout):
			slog.Warn("camera service did not stop in time")
		}
	}
	if r.WriterQueue != nil {
		r.WriterQueue.Wait()
	}
	if r.Bus != nil {
		r.Bus.Close()
	}
	if r.DB != nil {
		_ = r.DB.Close()
	}
	if r.LogManager != nil {
		_ = r.LogManager.Close()
	}

	return nil
}
