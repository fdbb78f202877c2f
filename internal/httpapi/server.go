package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/skobkin/rcp2bridge/internal/actions"
	"github.com/skobkin/rcp2bridge/internal/config"
	"github.com/skobkin/rcp2bridge/internal/connectors"
	"github.com/skobkin/rcp2bridge/internal/domain"
	"github.com/skobkin/rcp2bridge/internal/feedback"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 3 * time.Second
)

// Backend is the runtime state the HTTP surface reads and changes.
type Backend interface {
	CurrentConnStatus() connectors.ConnectionStatus
	CurrentConfig() config.AppConfig
	SaveAndApplyConfig(cfg config.AppConfig) error
	History(ctx context.Context, variable string, limit int) ([]domain.VariableChange, error)
	ClearHistory(ctx context.Context) error
}

type VariableSource interface {
	Snapshot() []domain.Variable
	Get(id string) (domain.Variable, bool)
}

type ActionRunner interface {
	Definitions() []actions.Definition
	Run(id string, options actions.Options) error
}

type FeedbackRegistry interface {
	Subscribe(sub feedback.Subscription) error
	Unsubscribe(id string) bool
	Subscriptions() []feedback.Subscription
}

type Deps struct {
	Backend   Backend
	Variables VariableSource
	Actions   ActionRunner
	Feedback  FeedbackRegistry
}

// Server exposes the bridge to a host application over local HTTP.
type Server struct {
	logger *slog.Logger
	engine *gin.Engine
}

func NewServer(logger *slog.Logger, deps Deps) *Server {
	if logger == nil {
		logger = slog.With("component", "httpapi")
	}

	return &Server{
		logger: logger,
		engine: newRouter(logger, newHandlers(logger, deps)),
	}
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.logger.Info("http api listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return fmt.Errorf("serve http api: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http api: %w", err)
	}
	s.logger.Info("http api stopped")

	return nil
}

// ListenAndServe binds addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen http api: %w", err)
	}

	return s.Serve(ctx, ln)
}
