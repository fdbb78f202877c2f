package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/skobkin/rcp2bridge/internal/app"
	"github.com/skobkin/rcp2bridge/internal/bus"
	"github.com/skobkin/rcp2bridge/internal/camera"
	"github.com/skobkin/rcp2bridge/internal/config"
	"github.com/skobkin/rcp2bridge/internal/connectors"
	"github.com/skobkin/rcp2bridge/internal/logging"
)

const (
	maxPreviewLen   = 160
	stopWaitTimeout = 3 * time.Second
)

func main() {
	if err := run(); err != nil {
		slog.Error("run debug tool", "error", err)
		os.Exit(1)
	}
}

func run() error {
	configFile := flag.String("config", "", "path to config.json (default: user config dir)")
	host := flag.String("host", "", "camera ip/hostname, overrides config")
	port := flag.Int("port", 0, "camera websocket port, overrides config")
	listenFor := flag.Duration("listen-for", 0, "listen duration, e.g. 30s")
	raw := flag.Bool("raw", true, "log raw frames in both directions")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	paths, err := app.ResolvePaths(*configFile)
	if err != nil {
		return fmt.Errorf("resolve paths: %w", err)
	}
	cfg, err := config.Load(paths.ConfigFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	env, err := config.LoadEnv(paths.EnvFile)
	if err != nil {
		return fmt.Errorf("load env: %w", err)
	}
	if err := cfg.ApplyEnv(env); err != nil {
		return fmt.Errorf("apply env: %w", err)
	}
	if strings.TrimSpace(*host) != "" {
		cfg.Camera.Host = strings.TrimSpace(*host)
	}
	if *port > 0 {
		cfg.Camera.Port = *port
	}
	if cfg.Camera.Host == "" {
		return fmt.Errorf("missing camera host: set -host or save camera host in config")
	}

	logMgr := logging.NewManager()
	cfg.Logging.LogToFile = false
	if err := logMgr.Configure(cfg.Logging, paths.LogFile); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer func() {
		if closeErr := logMgr.Close(); closeErr != nil {
			slog.Warn("close log manager", "error", closeErr)
		}
	}()
	logger := logMgr.Logger("cli")
	logger.Info("starting rcp2bridge debug", "version", app.BuildVersion(), "build_date", app.BuildDateYMD())

	b := bus.New(logMgr.Logger("bus"))
	defer b.Close()

	svcCtx, cancelSvc := context.WithCancel(ctx)
	defer cancelSvc()
	watch(svcCtx, b, logger, *raw)

	svc := camera.NewService(logMgr.Logger("camera"), b, camera.Options{
		Host:   cfg.Camera.Host,
		Port:   cfg.Camera.Port,
		Client: app.ClientInfo(),
	})
	svc.Start(svcCtx)
	logger.Info("connecting", "target", app.ConnectionTarget(cfg.Camera))

	if *listenFor > 0 {
		logger.Info("listen mode", "duration", *listenFor)
		select {
		case <-ctx.Done():
		case <-time.After(*listenFor):
		}
	} else {
		logger.Info("listening until interrupt")
		<-ctx.Done()
	}

	cancelSvc()
	select {
	case <-svc.Done():
	case <-time.After(stopWaitTimeout):
		logger.Warn("camera service did not stop in time")
	}
	logFinalValues(logger, svc.Variables())

	return nil
}

func watch(ctx context.Context, b bus.MessageBus, logger *slog.Logger, raw bool) {
	connSub := b.Subscribe(connectors.TopicConnStatus)
	varsSub := b.Subscribe(connectors.TopicVariables)
	rawInSub := b.Subscribe(connectors.TopicFrameIn)
	rawOutSub := b.Subscribe(connectors.TopicFrameOut)

	go func() {
		defer b.Unsubscribe(connSub, connectors.TopicConnStatus)
		defer b.Unsubscribe(varsSub, connectors.TopicVariables)
		defer b.Unsubscribe(rawInSub, connectors.TopicFrameIn)
		defer b.Unsubscribe(rawOutSub, connectors.TopicFrameOut)

		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-connSub:
				if status, ok := msg.(connectors.ConnectionStatus); ok {
					logger.Info("conn", "state", status.State, "target", status.Target, "error", status.Err)
				}
			case msg := <-varsSub:
				if changes, ok := msg.(connectors.VariableChanges); ok {
					logger.Info("variables", "full", changes.Full, "count", len(changes.Values), "values", formatChanges(changes.Values))
				}
			case msg := <-rawOutSub:
				if frame, ok := msg.(connectors.RawFrame); ok && raw {
					logger.Info("raw-out", "len", frame.Len(), "text", previewText(frame.Payload))
				}
			case msg := <-rawInSub:
				if frame, ok := msg.(connectors.RawFrame); ok && raw {
					logger.Info("raw-in", "len", frame.Len(), "text", previewText(frame.Payload))
				}
			}
		}
	}()
}

func logFinalValues(logger *slog.Logger, values map[string]string) {
	set := make(map[string]string, len(values))
	for k, v := range values {
		if v != "" {
			set[k] = v
		}
	}
	logger.Info("final variables", "non_empty", len(set), "values", formatChanges(set))
}

// formatChanges renders a change set as "k=v" pairs in key order.
func formatChanges(values map[string]string) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%q", k, values[k]))
	}

	return strings.Join(parts, " ")
}

func previewText(payload []byte) string {
	text := strings.TrimSpace(string(payload))
	if len(text) <= maxPreviewLen {
		return text
	}

	return text[:maxPreviewLen] + "..."
}
