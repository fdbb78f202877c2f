package notifications

import (
	"log/slog"
	"strings"

	"github.com/gen2brain/beeep"
)

// DesktopSender shows notifications through the operating system notification service.
type DesktopSender struct {
	logger *slog.Logger
	notify func(title, message string) error
}

func NewDesktopSender(appName string, logger *slog.Logger) *DesktopSender {
	if logger == nil {
		logger = slog.Default().With("component", "notifications")
	}
	if name := strings.TrimSpace(appName); name != "" {
		beeep.AppName = name
	}

	return &DesktopSender{
		logger: logger,
		notify: notifyDesktop,
	}
}

func (s *DesktopSender) Send(payload Payload) {
	if s == nil || s.notify == nil {
		return
	}

	title := strings.TrimSpace(payload.Title)
	content := strings.TrimSpace(payload.Content)
	if title == "" && content == "" {
		return
	}

	if err := s.notify(title, content); err != nil {
		s.logger.Warn("desktop notification failed", "title", title, "error", err)
	}
}

func notifyDesktop(title, message string) error {
	return beeep.Notify(title, message, "")
}
