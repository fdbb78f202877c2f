package transport

import "context"

// Transport moves whole text frames between the bridge and a camera.
type Transport interface {
	Name() string
	Connect(ctx context.Context) error
	Close() error
	ReadFrame(ctx context.Context) ([]byte, error)
	WriteFrame(ctx context.Context, payload []byte) error
}

type StatusTargetResolver interface {
	StatusTarget() string
}
