package ports

import (
	"context"

	"roomcast/internal/core/domain"
)

// Reconciler converges the consumer transport set toward the currently
// desired visible-stream set. Implementations must never propagate
// per-transport failures past this boundary.
type Reconciler interface {
	ProcessConsumerTransports(ctx context.Context) error
}

// TransportManager owns all local send transports and the fan-out that
// establishes receive transports for piped remote producers.
type TransportManager interface {
	CreateSendTransport(ctx context.Context, kind domain.MediaKind, params domain.SendParams) error
	ConnectSendTransportAudio(ctx context.Context, params domain.SendParams, target domain.TransportTarget) error
	ConnectSendTransportVideo(ctx context.Context, params domain.SendParams, target domain.TransportTarget) error
	ConnectSendTransportScreen(ctx context.Context, params domain.SendParams, target domain.TransportTarget) error
	DisconnectSendTransportVideo(ctx context.Context) error
	DisconnectSendTransportScreen(ctx context.Context) error
	ReceiveAllPipedTransports(ctx context.Context, roomName domain.RoomName, member string) error
	SignalNewConsumerTransport(ctx context.Context, producerID domain.ProducerID, kind domain.MediaKind, owner string, bus SignalBus) error
	ConnectIPs(ctx context.Context, remIPs []string) error

	// SetBusAttacher registers the hook run for every signaling connection
	// opened toward an additional media domain.
	SetBusAttacher(fn func(SignalBus))
}

// SignalDialer opens an additional signaling connection to a secondary
// domain, used when a room spans multiple media regions.
type SignalDialer func(ctx context.Context, endpoint string) (SignalBus, error)
