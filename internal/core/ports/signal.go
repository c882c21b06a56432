package ports

import (
	"context"
	"encoding/json"
)

// SignalBus is the bidirectional named-event channel to one SFU signaling
// endpoint. Emit is fire-and-forget; Request round-trips an acknowledgement
// payload into out. Handlers registered with On run on the bus read loop and
// must not block.
type SignalBus interface {
	Emit(ctx context.Context, event string, payload any) error
	Request(ctx context.Context, event string, payload any, out any) error
	On(event string, handler func(data json.RawMessage))
	Endpoint() string
	Close() error
}

// Ack is the minimal acknowledgement envelope returned by most signaling
// round-trips.
type Ack struct {
	Success bool   `json:"success"`
	Reason  string `json:"reason,omitempty"`
}

// ResumeAck acknowledges a consumer-resume request.
type ResumeAck struct {
	Resumed bool `json:"resumed"`
}

// PipedProducersAck answers getProducersPipedAlt.
type PipedProducersAck struct {
	ProducerIDs []string `json:"producerIds"`
}

// ProducersExistAck answers createReceiveAllTransportsPiped.
type ProducersExistAck struct {
	ProducersExist bool `json:"producersExist"`
}

// ConsumeAck answers a consume request with the parameters the media engine
// needs to build the receive side.
type ConsumeAck struct {
	Success       bool            `json:"success"`
	Reason        string          `json:"reason,omitempty"`
	Kind          string          `json:"kind"`
	RTPParameters json.RawMessage `json:"rtpParameters,omitempty"`
}
