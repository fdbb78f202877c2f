package transport

import "log/slog"

// logger tags transport records with the camera endpoint.
func (t *WebSocketTransport) logger() *slog.Logger {
	l := slog.With("component", "transport", "transport", t.Name())
	if target := t.URL(); target != "" {
		return l.With("target", target)
	}

	return l
}
