package services

import (
	"context"
	"fmt"
	"sync"

	"roomcast/internal/core/domain"
	"roomcast/internal/core/ports"
	"roomcast/internal/core/session"

	"go.uber.org/zap"
)

// producerSlot is the explicit per-kind send transport state. The boolean
// "created" flags of ad hoc implementations are replaced by one guarded
// state machine: Uncreated -> Created -> Connected -> Paused -> Closed.
type producerSlot struct {
	state  domain.ProducerSlotState
	handle ports.ProducerHandle
}

type createTransportPayload struct {
	Kind     domain.MediaKind `json:"kind"`
	RoomName domain.RoomName  `json:"roomName"`
	Member   string           `json:"member"`
}

type pauseProducerPayload struct {
	MediaTag string          `json:"mediaTag"`
	RoomName domain.RoomName `json:"roomName"`
	Member   string          `json:"member"`
}

type receiveAllPipedPayload struct {
	RoomName domain.RoomName `json:"roomName"`
	Member   string          `json:"member"`
}

type pipedProducersPayload struct {
	IsLevel domain.ParticipantLevel `json:"islevel"`
	Member  string                  `json:"member"`
}

type transportManager struct {
	engine      ports.MediaEngine
	localEngine ports.MediaEngine // community-edition egress, may be nil
	bus         ports.SignalBus
	dialer      ports.SignalDialer

	registry   *Registry
	state      *session.State
	reconciler ports.Reconciler
	gate       *CapabilityGate
	alerts     ports.AlertSink
	metrics    TransportMetrics
	logger     *zap.SugaredLogger

	mu         sync.Mutex
	slots      map[domain.MediaKind]*producerSlot
	localSlots map[domain.MediaKind]*producerSlot

	// onNewBus lets the event router attach its handlers to signaling
	// connections opened for additional media domains.
	onNewBus func(ports.SignalBus)
}

// NewTransportManager builds the transport lifecycle manager. localEngine
// and dialer may be nil when dual egress and multi-domain rooms are not in
// play.
func NewTransportManager(
	engine ports.MediaEngine,
	localEngine ports.MediaEngine,
	bus ports.SignalBus,
	dialer ports.SignalDialer,
	registry *Registry,
	state *session.State,
	reconciler ports.Reconciler,
	gate *CapabilityGate,
	alerts ports.AlertSink,
	metrics TransportMetrics,
	logger *zap.Logger,
) ports.TransportManager {
	return &transportManager{
		engine:      engine,
		localEngine: localEngine,
		bus:         bus,
		dialer:      dialer,
		registry:    registry,
		state:       state,
		reconciler:  reconciler,
		gate:        gate,
		alerts:      alerts,
		metrics:     metrics,
		logger:      logger.Sugar(),
		slots:       make(map[domain.MediaKind]*producerSlot),
		localSlots:  make(map[domain.MediaKind]*producerSlot),
	}
}

// SetBusAttacher registers the callback invoked for every additional
// signaling connection opened by ConnectIPs.
func (m *transportManager) SetBusAttacher(fn func(ports.SignalBus)) {
	m.onNewBus = fn
}

// CreateSendTransport asks the peer for a send transport of the given kind.
// Idempotent per kind: while a slot exists and is not closed, a second call
// creates nothing.
func (m *transportManager) CreateSendTransport(ctx context.Context, kind domain.MediaKind, params domain.SendParams) error {
	if err := m.gate.EnsureMedia(ctx, kind); err != nil {
		m.alerts.Alert(domain.AlertDanger, err.Error())
		return err
	}

	m.mu.Lock()
	slot, exists := m.slots[kind]
	if exists && slot.state != domain.SlotClosed {
		m.mu.Unlock()
		return fmt.Errorf("%s: %w", kind, domain.ErrProducerExists)
	}
	slot = &producerSlot{state: domain.SlotUncreated}
	m.slots[kind] = slot
	m.mu.Unlock()

	var ack ports.Ack
	payload := createTransportPayload{Kind: kind, RoomName: m.snapshotRoom(), Member: m.snapshotMember()}
	if err := m.bus.Request(ctx, "createWebRtcTransport", payload, &ack); err != nil {
		m.clearSlot(kind)
		m.alerts.Alert(domain.AlertDanger, fmt.Sprintf("could not create %s transport", kind))
		return fmt.Errorf("createWebRtcTransport %s: %w", kind, err)
	}
	if !ack.Success {
		m.clearSlot(kind)
		m.alerts.Alert(domain.AlertDanger, ackReason(ack, fmt.Sprintf("could not create %s transport", kind)))
		return fmt.Errorf("createWebRtcTransport %s: %w", kind, domain.ErrRoomRejected)
	}

	m.mu.Lock()
	slot.state = domain.SlotCreated
	m.mu.Unlock()

	m.logger.Infow("send transport created", "kind", kind)
	return nil
}

func (m *transportManager) ConnectSendTransportAudio(ctx context.Context, params domain.SendParams, target domain.TransportTarget) error {
	return m.connectKind(ctx, domain.KindAudio, params, target)
}

func (m *transportManager) ConnectSendTransportVideo(ctx context.Context, params domain.SendParams, target domain.TransportTarget) error {
	return m.connectKind(ctx, domain.KindVideo, params, target)
}

func (m *transportManager) ConnectSendTransportScreen(ctx context.Context, params domain.SendParams, target domain.TransportTarget) error {
	if err := m.connectKind(ctx, domain.KindScreen, params, target); err != nil {
		return err
	}
	if target.Remote() {
		m.state.SetShared(true)
		m.state.CacheAllStreams()
	}
	return nil
}

// connectKind produces on an already-created transport. One code path
// serves both egress destinations: the remote path propagates failures, the
// community-edition path only logs them.
func (m *transportManager) connectKind(ctx context.Context, kind domain.MediaKind, params domain.SendParams, target domain.TransportTarget) error {
	if target.Remote() {
		if err := m.produceRemote(ctx, kind, params); err != nil {
			m.alerts.Alert(domain.AlertDanger, fmt.Sprintf("could not start %s", kind))
			return err
		}
	}
	if target.Local() {
		if err := m.produceLocal(ctx, kind, params); err != nil {
			// Remote delivery is primary; the community-edition path failing
			// must not fail the operation.
			m.logger.Warnw("local egress produce failed", "kind", kind, "error", err)
		}
	}
	return nil
}

func (m *transportManager) produceRemote(ctx context.Context, kind domain.MediaKind, params domain.SendParams) error {
	m.mu.Lock()
	slot, exists := m.slots[kind]
	if !exists || slot.state == domain.SlotUncreated || slot.state == domain.SlotClosed {
		m.mu.Unlock()
		return fmt.Errorf("%s: %w", kind, domain.ErrTransportNotCreated)
	}
	if slot.state == domain.SlotConnected {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	handle, err := m.engine.Produce(ctx, kind, params)
	if err != nil {
		return fmt.Errorf("produce %s: %w", kind, err)
	}

	m.mu.Lock()
	slot.handle = handle
	slot.state = domain.SlotConnected
	m.mu.Unlock()

	m.metrics.ProducerCreated(kind)
	m.logger.Infow("producer connected", "kind", kind, "producer_id", handle.ID())
	return nil
}

func (m *transportManager) produceLocal(ctx context.Context, kind domain.MediaKind, params domain.SendParams) error {
	if m.localEngine == nil {
		return fmt.Errorf("local egress not configured")
	}

	m.mu.Lock()
	slot, exists := m.localSlots[kind]
	if exists && slot.state == domain.SlotConnected {
		m.mu.Unlock()
		return nil
	}
	slot = &producerSlot{state: domain.SlotCreated}
	m.localSlots[kind] = slot
	m.mu.Unlock()

	handle, err := m.localEngine.Produce(ctx, kind, params)
	if err != nil {
		m.mu.Lock()
		slot.state = domain.SlotClosed
		m.mu.Unlock()
		return fmt.Errorf("local produce %s: %w", kind, err)
	}

	m.mu.Lock()
	slot.handle = handle
	slot.state = domain.SlotConnected
	m.mu.Unlock()
	return nil
}

// DisconnectSendTransportVideo closes the local video producer, informs the
// peer, and recomputes the grid.
func (m *transportManager) DisconnectSendTransportVideo(ctx context.Context) error {
	if err := m.closeProducer(ctx, domain.KindVideo); err != nil {
		return err
	}

	payload := pauseProducerPayload{MediaTag: "video", RoomName: m.snapshotRoom(), Member: m.snapshotMember()}
	if err := m.bus.Emit(ctx, "pauseProducerMedia", payload); err != nil {
		m.logger.Warnw("pauseProducerMedia emit failed", "media_tag", "video", "error", err)
	}

	m.triggerReconcile(ctx)
	return nil
}

// DisconnectSendTransportScreen closes the screen producer, emits exactly
// one closeScreenProducer and one pauseProducerMedia for the screen tag, and
// recomputes the grid so another stream can take the main window.
func (m *transportManager) DisconnectSendTransportScreen(ctx context.Context) error {
	if err := m.closeProducer(ctx, domain.KindScreen); err != nil {
		return err
	}

	if err := m.bus.Emit(ctx, "closeScreenProducer", struct{}{}); err != nil {
		m.logger.Warnw("closeScreenProducer emit failed", "error", err)
	}
	payload := pauseProducerPayload{MediaTag: "screen", RoomName: m.snapshotRoom(), Member: m.snapshotMember()}
	if err := m.bus.Emit(ctx, "pauseProducerMedia", payload); err != nil {
		m.logger.Warnw("pauseProducerMedia emit failed", "media_tag", "screen", "error", err)
	}

	m.state.SetShared(false)
	m.state.ClearOldStreams()
	m.triggerReconcile(ctx)
	return nil
}

// closeProducer closes both egress paths for the kind. The peer is notified
// by the caller before local references are considered gone, so no orphaned
// server-side producer survives.
func (m *transportManager) closeProducer(ctx context.Context, kind domain.MediaKind) error {
	m.mu.Lock()
	slot, exists := m.slots[kind]
	if !exists || slot.state != domain.SlotConnected && slot.state != domain.SlotPaused {
		m.mu.Unlock()
		return fmt.Errorf("%s: %w", kind, domain.ErrTransportNotCreated)
	}
	handle := slot.handle
	slot.handle = nil
	slot.state = domain.SlotClosed
	local := m.localSlots[kind]
	var localHandle ports.ProducerHandle
	if local != nil && local.handle != nil {
		localHandle = local.handle
		local.handle = nil
		local.state = domain.SlotClosed
	}
	m.mu.Unlock()

	if err := handle.Close(); err != nil {
		m.logger.Warnw("producer close failed", "kind", kind, "error", err)
	}
	if localHandle != nil {
		if err := localHandle.Close(); err != nil {
			m.logger.Warnw("local producer close failed", "kind", kind, "error", err)
		}
	}

	m.metrics.ProducerClosed(kind)
	m.logger.Infow("producer closed", "kind", kind)
	return nil
}

// ReceiveAllPipedTransports asks whether any producers already exist in the
// room and, if so, fans out over the three participant levels. Producers are
// partitioned by level server-side so hosts and co-hosts connect first.
func (m *transportManager) ReceiveAllPipedTransports(ctx context.Context, roomName domain.RoomName, member string) error {
	return m.receiveAllPipedOn(ctx, m.bus, roomName, member)
}

func (m *transportManager) receiveAllPipedOn(ctx context.Context, bus ports.SignalBus, roomName domain.RoomName, member string) error {
	var ack ports.ProducersExistAck
	payload := receiveAllPipedPayload{RoomName: roomName, Member: member}
	if err := bus.Request(ctx, "createReceiveAllTransportsPiped", payload, &ack); err != nil {
		return fmt.Errorf("createReceiveAllTransportsPiped: %w", err)
	}
	if !ack.ProducersExist {
		return nil
	}

	for _, level := range domain.ParticipantLevels {
		if err := m.getPipedProducersAlt(ctx, bus, level, member); err != nil {
			m.logger.Warnw("piped producer fan-out failed for level",
				"islevel", level,
				"error", err,
			)
		}
	}
	return nil
}

// getPipedProducersAlt asks for producer identifiers at one participant
// level and establishes a receive transport for each. An empty identifier
// list resolves without any consume call.
func (m *transportManager) getPipedProducersAlt(ctx context.Context, bus ports.SignalBus, level domain.ParticipantLevel, member string) error {
	var ack ports.PipedProducersAck
	payload := pipedProducersPayload{IsLevel: level, Member: member}
	if err := bus.Request(ctx, "getProducersPipedAlt", payload, &ack); err != nil {
		return fmt.Errorf("getProducersPipedAlt islevel=%s: %w", level, err)
	}

	for _, id := range ack.ProducerIDs {
		if err := m.SignalNewConsumerTransport(ctx, domain.ProducerID(id), "", "", bus); err != nil {
			m.logger.Warnw("consumer transport setup failed",
				"producer_id", id,
				"islevel", level,
				"error", err,
			)
		}
	}
	return nil
}

// SignalNewConsumerTransport establishes one receive transport for the
// producer over the given bus. Consumers start paused; the next
// reconciliation pass resumes them if the grid has room. Duplicate producer
// IDs are skipped.
func (m *transportManager) SignalNewConsumerTransport(ctx context.Context, producerID domain.ProducerID, kind domain.MediaKind, owner string, bus ports.SignalBus) error {
	if producerID == "" {
		return nil
	}
	if m.registry.Has(producerID) {
		return nil
	}
	if bus == nil {
		bus = m.bus
	}

	// The receive-side parameters always come from the peer; the event that
	// announced the producer may or may not have known the kind.
	var ack ports.ConsumeAck
	if err := bus.Request(ctx, "consume", map[string]any{"producerId": producerID}, &ack); err != nil {
		return fmt.Errorf("consume request %s: %w", producerID, err)
	}
	if !ack.Success {
		return fmt.Errorf("consume %s: %s: %w", producerID, ack.Reason, domain.ErrRoomRejected)
	}
	if kind == "" {
		kind = domain.MediaKind(ack.Kind)
	}

	consumer, err := m.engine.Consume(ctx, domain.ConsumeRequest{
		ProducerID: producerID,
		Kind:       kind,
		RTPParams:  ack.RTPParameters,
	})
	if err != nil {
		return fmt.Errorf("consume %s: %w", producerID, err)
	}

	t := &ConsumerTransport{
		ProducerID: producerID,
		Kind:       consumer.Kind(),
		Consumer:   consumer,
		Bus:        bus,
		Paused:     true,
	}
	if err := m.registry.Add(t); err != nil {
		// Lost the race with another signaling path; drop the duplicate.
		if cerr := consumer.Close(); cerr != nil {
			m.logger.Warnw("duplicate consumer close failed", "producer_id", producerID, "error", cerr)
		}
		return nil
	}

	m.state.AddStream(domain.Stream{ProducerID: producerID, Kind: consumer.Kind(), Owner: owner})
	m.triggerReconcile(ctx)
	return nil
}

// ConnectIPs opens additional signaling connections for media domains not
// yet connected and pulls their piped producers. One failing domain does not
// abort the rest.
func (m *transportManager) ConnectIPs(ctx context.Context, remIPs []string) error {
	if m.dialer == nil {
		return fmt.Errorf("signal dialer not configured")
	}

	snap := m.state.Snapshot()
	for _, ip := range remIPs {
		if ip == "" {
			continue
		}
		if !m.state.AddRecvIP(ip) {
			continue
		}

		bus, err := m.dialer(ctx, ip)
		if err != nil {
			m.logger.Warnw("could not connect media domain", "ip", ip, "error", err)
			continue
		}
		if m.onNewBus != nil {
			m.onNewBus(bus)
		}
		if err := m.receiveAllPipedOn(ctx, bus, snap.RoomName, snap.Member); err != nil {
			m.logger.Warnw("piped transports failed for media domain", "ip", ip, "error", err)
		}
	}
	return nil
}

// clearSlot drops the slot so a later create can retry from scratch.
func (m *transportManager) clearSlot(kind domain.MediaKind) {
	m.mu.Lock()
	delete(m.slots, kind)
	m.mu.Unlock()
}

func (m *transportManager) triggerReconcile(ctx context.Context) {
	if m.reconciler == nil {
		return
	}
	if err := m.reconciler.ProcessConsumerTransports(ctx); err != nil {
		m.logger.Warnw("reconcile trigger failed", "error", err)
	}
}

func (m *transportManager) snapshotRoom() domain.RoomName {
	return m.state.Snapshot().RoomName
}

func (m *transportManager) snapshotMember() string {
	return m.state.Snapshot().Member
}

func ackReason(ack ports.Ack, fallback string) string {
	if ack.Reason != "" {
		return ack.Reason
	}
	return fallback
}
