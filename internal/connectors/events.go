package connectors

import "time"

// ConnectionState describes the camera connection lifecycle state reported to the host.
type ConnectionState string

const (
	ConnectionStateDisconnected ConnectionState = "disconnected"
	ConnectionStateConnecting   ConnectionState = "connecting"
	ConnectionStateConnected    ConnectionState = "connected"
	ConnectionStateFailed       ConnectionState = "connection_failure"
	ConnectionStateBadConfig    ConnectionState = "bad_config"
)

// Connected reports whether telemetry shown for this state is live.
func (s ConnectionState) Connected() bool {
	return s == ConnectionStateConnected
}

// ConnectionStatus is a bus event snapshot of the current connection status.
type ConnectionStatus struct {
	State         ConnectionState
	Err           string
	TransportName string
	Target        string
	Timestamp     time.Time
}
