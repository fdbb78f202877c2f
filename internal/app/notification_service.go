package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/skobkin/rcp2bridge/internal/bus"
	"github.com/skobkin/rcp2bridge/internal/config"
	"github.com/skobkin/rcp2bridge/internal/connectors"
	"github.com/skobkin/rcp2bridge/internal/notifications"
)

const notificationTitlePrefix = "RED camera"

// NotificationService turns camera connection transitions into desktop notifications.
type NotificationService struct {
	bus           bus.MessageBus
	currentConfig func() config.AppConfig
	sender        notifications.Sender
	logger        *slog.Logger

	connStatusMu     sync.Mutex
	lastConnState    connectors.ConnectionState
	lastConnStateSet bool
}

func NewNotificationService(
	messageBus bus.MessageBus,
	currentConfig func() config.AppConfig,
	sender notifications.Sender,
	logger *slog.Logger,
) *NotificationService {
	if logger == nil {
		logger = slog.Default().With("component", "app.notifications")
	}

	return &NotificationService{
		bus:           messageBus,
		currentConfig: currentConfig,
		sender:        sender,
		logger:        logger,
	}
}

func (s *NotificationService) Start(ctx context.Context) {
	if s == nil || s.bus == nil || s.sender == nil {
		return
	}

	connSub := s.bus.Subscribe(connectors.TopicConnStatus)

	go func() {
		defer s.bus.Unsubscribe(connSub, connectors.TopicConnStatus)

		for {
			select {
			case <-ctx.Done():
				return
			case raw, ok := <-connSub:
				if !ok {
					return
				}
				status, ok := raw.(connectors.ConnectionStatus)
				if !ok {
					continue
				}
				s.handleConnectionStatus(status)
			}
		}
	}()
}

func (s *NotificationService) handleConnectionStatus(status connectors.ConnectionStatus) {
	if status.State == "" {
		return
	}

	s.connStatusMu.Lock()
	if s.lastConnStateSet && s.lastConnState == status.State {
		s.connStatusMu.Unlock()

		return
	}
	s.lastConnState = status.State
	s.lastConnStateSet = true
	s.connStatusMu.Unlock()

	label := connectionStateLabel(status.State)
	if label == "" {
		return
	}
	if !s.enabled() {
		return
	}

	details := strings.TrimSpace(status.Target)
	if details == "" {
		details = "No camera address"
	}
	if status.State != connectors.ConnectionStateConnected {
		if errText := strings.TrimSpace(status.Err); errText != "" {
			details = fmt.Sprintf("%s (error: %s)", details, errText)
		}
	}

	s.send(notifications.Payload{
		Title:   fmt.Sprintf("%s - %s", notificationTitlePrefix, label),
		Content: details,
	})
}

func (s *NotificationService) enabled() bool {
	cfg := config.Default()
	if s.currentConfig != nil {
		cfg = s.currentConfig()
	}

	return cfg.Notifications.Enabled
}

func (s *NotificationService) send(notification notifications.Payload) {
	s.logger.Debug("sending notification", "title", notification.Title)
	s.sender.Send(notification)
}

// connectionStateLabel returns "" for states that do not produce a notification.
func connectionStateLabel(state connectors.ConnectionState) string {
	switch state {
	case connectors.ConnectionStateConnected:
		return "connected"
	case connectors.ConnectionStateDisconnected:
		return "disconnected"
	case connectors.ConnectionStateFailed:
		return "connection failed"
	default:
		return ""
	}
}
