package media

import (
	"context"
	"fmt"
	"sync"

	"roomcast/internal/core/domain"
	"roomcast/internal/core/ports"

	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
)

// Config carries the WebRTC engine configuration.
type Config struct {
	ICEServers []webrtc.ICEServer
	PortRange  struct {
		Min uint16
		Max uint16
	}
	MaxBitrate int
}

// StatsObserver receives RTCP quality readings from receive transports.
type StatsObserver interface {
	ObserveRTCP(kind domain.MediaKind, packetLoss float64, jitterMs float64)
}

type nopStats struct{}

func (nopStats) ObserveRTCP(domain.MediaKind, float64, float64) {}

// Engine is the pion-backed implementation of ports.MediaEngine. Each send
// kind gets its own peer connection; each consumed remote producer gets a
// dedicated receive connection.
type Engine struct {
	config Config
	api    *webrtc.API
	stats  StatsObserver

	mu        sync.Mutex
	sendPCs   map[domain.MediaKind]*webrtc.PeerConnection
	consumers map[domain.ProducerID]*Consumer
	closed    bool

	logger *zap.SugaredLogger
}

var _ ports.MediaEngine = (*Engine)(nil)

func NewEngine(config Config, stats StatsObserver, logger *zap.Logger) *Engine {
	settingEngine := webrtc.SettingEngine{}
	if config.PortRange.Min > 0 && config.PortRange.Max > 0 {
		settingEngine.SetEphemeralUDPPortRange(config.PortRange.Min, config.PortRange.Max)
	}
	if stats == nil {
		stats = nopStats{}
	}

	return &Engine{
		config:    config,
		api:       webrtc.NewAPI(webrtc.WithSettingEngine(settingEngine)),
		stats:     stats,
		sendPCs:   make(map[domain.MediaKind]*webrtc.PeerConnection),
		consumers: make(map[domain.ProducerID]*Consumer),
		logger:    logger.Sugar(),
	}
}

func (e *Engine) newPeerConnection() (*webrtc.PeerConnection, error) {
	return e.api.NewPeerConnection(webrtc.Configuration{
		ICEServers:   e.config.ICEServers,
		SDPSemantics: webrtc.SDPSemanticsUnifiedPlanWithFallback,
	})
}

// Produce builds the send side for one media kind and returns its handle.
func (e *Engine) Produce(ctx context.Context, kind domain.MediaKind, params domain.SendParams) (ports.ProducerHandle, error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, domain.ErrTransportClosed
	}
	if _, exists := e.sendPCs[kind]; exists {
		e.mu.Unlock()
		return nil, fmt.Errorf("%s: %w", kind, domain.ErrProducerExists)
	}
	e.mu.Unlock()

	pc, err := e.newPeerConnection()
	if err != nil {
		return nil, fmt.Errorf("failed to create peer connection: %w", err)
	}

	track, err := webrtc.NewTrackLocalStaticRTP(codecForKind(kind), trackID(kind, params), streamID(kind))
	if err != nil {
		pc.Close()
		return nil, fmt.Errorf("failed to create local track: %w", err)
	}
	if _, err := pc.AddTrack(track); err != nil {
		pc.Close()
		return nil, fmt.Errorf("failed to add track: %w", err)
	}

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		e.logger.Infow("send connection state changed", "kind", kind, "state", state)
	})

	e.mu.Lock()
	e.sendPCs[kind] = pc
	e.mu.Unlock()

	producer := newProducer(track.ID(), kind, track, pc, func() {
		e.mu.Lock()
		delete(e.sendPCs, kind)
		e.mu.Unlock()
	})

	e.logger.Infow("producer created", "kind", kind, "producer_id", producer.ID())
	return producer, nil
}

// Consume builds the receive side for one remote producer. The returned
// consumer reports its RTCP quality readings to the stats observer until it
// is closed.
func (e *Engine) Consume(ctx context.Context, req domain.ConsumeRequest) (ports.ConsumerHandle, error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, domain.ErrTransportClosed
	}
	if _, exists := e.consumers[req.ProducerID]; exists {
		e.mu.Unlock()
		return nil, fmt.Errorf("%s: %w", req.ProducerID, domain.ErrDuplicateProducer)
	}
	e.mu.Unlock()

	pc, err := e.newPeerConnection()
	if err != nil {
		return nil, fmt.Errorf("failed to create peer connection: %w", err)
	}

	if _, err := pc.AddTransceiverFromKind(rtpKind(req.Kind), webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	}); err != nil {
		pc.Close()
		return nil, fmt.Errorf("failed to add transceiver: %w", err)
	}

	consumer := newConsumer(req.ProducerID, req.Kind, pc, e.stats, e.logger)

	pc.OnTrack(consumer.handleTrack)
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		e.logger.Debugw("receive connection state changed",
			"producer_id", req.ProducerID,
			"state", state,
		)
	})

	e.mu.Lock()
	e.consumers[req.ProducerID] = consumer
	e.mu.Unlock()
	consumer.onClose = func() {
		e.mu.Lock()
		delete(e.consumers, req.ProducerID)
		e.mu.Unlock()
	}

	e.logger.Infow("consumer created", "producer_id", req.ProducerID, "kind", req.Kind)
	return consumer, nil
}

// Close tears down every peer connection owned by the engine.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	sendPCs := make([]*webrtc.PeerConnection, 0, len(e.sendPCs))
	for _, pc := range e.sendPCs {
		sendPCs = append(sendPCs, pc)
	}
	consumers := make([]*Consumer, 0, len(e.consumers))
	for _, c := range e.consumers {
		consumers = append(consumers, c)
	}
	e.mu.Unlock()

	for _, pc := range sendPCs {
		pc.Close()
	}
	for _, c := range consumers {
		c.Close()
	}
	return nil
}

func codecForKind(kind domain.MediaKind) webrtc.RTPCodecCapability {
	if kind.IsAudio() {
		return webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus}
	}
	return webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}
}

func rtpKind(kind domain.MediaKind) webrtc.RTPCodecType {
	if kind.IsAudio() {
		return webrtc.RTPCodecTypeAudio
	}
	return webrtc.RTPCodecTypeVideo
}

func trackID(kind domain.MediaKind, params domain.SendParams) string {
	if params.TrackID != "" {
		return params.TrackID
	}
	return fmt.Sprintf("%s-track", kind)
}

func streamID(kind domain.MediaKind) string {
	return fmt.Sprintf("roomcast-%s", kind)
}
