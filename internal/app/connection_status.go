package app

import (
	"strings"

	"github.com/skobkin/rcp2bridge/internal/config"
	"github.com/skobkin/rcp2bridge/internal/connectors"
	"github.com/skobkin/rcp2bridge/internal/transport"
)

const cameraTransportName = "websocket"

func ConnectionTarget(cfg config.CameraConfig) string {
	host := strings.TrimSpace(cfg.Host)
	if host == "" {
		return ""
	}

	return transport.NewWebSocketTransport(host, cfg.Port).URL()
}

// ConnectionStatusFromConfig is the status reported before the camera service has
// published anything.
func ConnectionStatusFromConfig(cfg config.CameraConfig) connectors.ConnectionStatus {
	status := connectors.ConnectionStatus{
		State:         connectors.ConnectionStateBadConfig,
		Err:           "camera host is not defined",
		TransportName: cameraTransportName,
		Target:        ConnectionTarget(cfg),
	}
	if status.Target != "" {
		status.State = connectors.ConnectionStateConnecting
		status.Err = ""
	}

	return status
}
