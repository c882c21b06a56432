package ports

import (
	"context"

	"roomcast/internal/core/domain"
)

// ProducerHandle is a local producing endpoint owned by the transport
// manager. Close notifies nothing remotely; signaling the peer is the
// caller's responsibility.
type ProducerHandle interface {
	ID() string
	Kind() domain.MediaKind
	Pause() error
	Resume() error
	Close() error
}

// ConsumerHandle is a local consuming endpoint for one remote producer.
// Pause and Resume affect only the local engine state; server-side state is
// driven by the paired signaling round-trip.
type ConsumerHandle interface {
	ID() string
	ProducerID() domain.ProducerID
	Kind() domain.MediaKind
	Pause() error
	Resume() error
	Close() error
}

// MediaEngine is the opaque WebRTC capability boundary.
type MediaEngine interface {
	Produce(ctx context.Context, kind domain.MediaKind, params domain.SendParams) (ProducerHandle, error)
	Consume(ctx context.Context, req domain.ConsumeRequest) (ConsumerHandle, error)
	Close() error
}

// DeviceChecker probes device permissions before any media is attempted.
type DeviceChecker interface {
	HasPermission(ctx context.Context, kind domain.MediaKind) (bool, error)
}

// AlertSink receives transient user-visible alerts. Implementations must not
// block the caller.
type AlertSink interface {
	Alert(category domain.AlertCategory, message string)
}
