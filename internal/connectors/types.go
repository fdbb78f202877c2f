package connectors

import "time"

// VariableChanges carries only the variables whose value differs from the last publication.
// Full is set when the whole store was republished, e.g. after a reset.
type VariableChanges struct {
	Values map[string]string
	Full   bool
	At     time.Time
}

// RawFrame carries one WebSocket text frame for debug views and feedback extraction.
type RawFrame struct {
	Payload []byte
	At      time.Time
}

// Len returns the payload size in bytes.
func (f RawFrame) Len() int {
	return len(f.Payload)
}
