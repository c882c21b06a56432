package signal

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"roomcast/internal/core/domain"
	"roomcast/internal/core/ports"
	"roomcast/internal/core/services"
	"roomcast/internal/core/session"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type fakeBus struct {
	mu       sync.Mutex
	handlers map[string][]func(json.RawMessage)
	emits    []string
}

func newFakeBus() *fakeBus {
	return &fakeBus{handlers: make(map[string][]func(json.RawMessage))}
}

func (b *fakeBus) Emit(_ context.Context, event string, _ any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.emits = append(b.emits, event)
	return nil
}

func (b *fakeBus) Request(context.Context, string, any, any) error { return nil }

func (b *fakeBus) On(event string, handler func(json.RawMessage)) {
	b.handlers[event] = append(b.handlers[event], handler)
}

func (b *fakeBus) Endpoint() string { return "fake://bus" }
func (b *fakeBus) Close() error     { return nil }

func (b *fakeBus) fire(t *testing.T, event, payload string) {
	t.Helper()
	hs, ok := b.handlers[event]
	if !ok {
		t.Fatalf("no handler registered for %s", event)
	}
	for _, h := range hs {
		h(json.RawMessage(payload))
	}
}

type fakeManager struct {
	producerIDs []domain.ProducerID
	kinds       []domain.MediaKind
	owners      []string
	err         error
}

func (m *fakeManager) CreateSendTransport(context.Context, domain.MediaKind, domain.SendParams) error {
	return nil
}
func (m *fakeManager) ConnectSendTransportAudio(context.Context, domain.SendParams, domain.TransportTarget) error {
	return nil
}
func (m *fakeManager) ConnectSendTransportVideo(context.Context, domain.SendParams, domain.TransportTarget) error {
	return nil
}
func (m *fakeManager) ConnectSendTransportScreen(context.Context, domain.SendParams, domain.TransportTarget) error {
	return nil
}
func (m *fakeManager) DisconnectSendTransportVideo(context.Context) error  { return nil }
func (m *fakeManager) DisconnectSendTransportScreen(context.Context) error { return nil }
func (m *fakeManager) ReceiveAllPipedTransports(context.Context, domain.RoomName, string) error {
	return nil
}
func (m *fakeManager) ConnectIPs(context.Context, []string) error { return nil }
func (m *fakeManager) SetBusAttacher(func(ports.SignalBus))       {}

func (m *fakeManager) SignalNewConsumerTransport(_ context.Context, id domain.ProducerID, kind domain.MediaKind, owner string, _ ports.SignalBus) error {
	if m.err != nil {
		return m.err
	}
	m.producerIDs = append(m.producerIDs, id)
	m.kinds = append(m.kinds, kind)
	m.owners = append(m.owners, owner)
	return nil
}

type fakeReconciler struct {
	mu     sync.Mutex
	passes int
}

func (r *fakeReconciler) ProcessConsumerTransports(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.passes++
	return nil
}

func (r *fakeReconciler) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.passes
}

type capturedAlerts struct {
	mu       sync.Mutex
	messages []string
}

func (a *capturedAlerts) Alert(_ domain.AlertCategory, message string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.messages = append(a.messages, message)
}

func (a *capturedAlerts) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.messages)
}

type noopConsumer struct {
	producerID domain.ProducerID
}

func (c *noopConsumer) ID() string                    { return "c-" + string(c.producerID) }
func (c *noopConsumer) ProducerID() domain.ProducerID { return c.producerID }
func (c *noopConsumer) Kind() domain.MediaKind        { return domain.KindVideo }
func (c *noopConsumer) Pause() error                  { return nil }
func (c *noopConsumer) Resume() error                 { return nil }
func (c *noopConsumer) Close() error                  { return nil }

type routerFixture struct {
	bus        *fakeBus
	state      *session.State
	registry   *services.Registry
	manager    *fakeManager
	reconciler *fakeReconciler
	alerts     *capturedAlerts
	router     *Router
}

func newRouterFixture(level domain.ParticipantLevel) *routerFixture {
	return newRouterFixtureIn(level, domain.EventConference)
}

func newRouterFixtureIn(level domain.ParticipantLevel, eventType domain.EventType) *routerFixture {
	state := session.New("alice", "room-1", eventType, level, domain.DisplaySettings{
		MeetingDisplayType: domain.DisplayMedia,
		ItemPageLimit:      4,
	})
	registry := services.NewRegistry(services.NopMetrics{}, zap.NewNop())
	manager := &fakeManager{}
	reconciler := &fakeReconciler{}
	alerts := &capturedAlerts{}
	coHost := services.NewCoHostTracker("alice", level, eventType)

	router := NewRouter(state, registry, manager, reconciler, services.NewLayout(), coHost, alerts, zap.NewNop())

	bus := newFakeBus()
	router.Attach(bus)
	return &routerFixture{
		bus:        bus,
		state:      state,
		registry:   registry,
		manager:    manager,
		reconciler: reconciler,
		alerts:     alerts,
		router:     router,
	}
}

func TestRouterProducerClosedDropsConsumerAndStream(t *testing.T) {
	f := newRouterFixture(domain.LevelAttendee)
	f.registry.Add(&services.ConsumerTransport{
		ProducerID: "p1",
		Kind:       domain.KindVideo,
		Consumer:   &noopConsumer{producerID: "p1"},
		Bus:        f.bus,
	})
	f.state.AddStream(domain.Stream{ProducerID: "p1", Kind: domain.KindVideo})
	f.state.SetActiveStreams([]domain.Stream{{ProducerID: "p1", Kind: domain.KindVideo}})

	f.bus.fire(t, "producer-closed", `{"remoteProducerId":"p1"}`)

	assert.Equal(t, 0, f.registry.Len())
	assert.False(t, f.state.Snapshot().ValidProducer("p1"))
	assert.Equal(t, 1, f.reconciler.count())
}

func TestRouterNewPipeProducerDelegatesToManager(t *testing.T) {
	f := newRouterFixture(domain.LevelAttendee)

	f.bus.fire(t, "newPipeProducer", `{"producerId":"p9","kind":"screen","name":"bob"}`)

	assert.Equal(t, []domain.ProducerID{"p9"}, f.manager.producerIDs)
	assert.Equal(t, []domain.MediaKind{domain.KindScreen}, f.manager.kinds)
	assert.Equal(t, []string{"bob"}, f.manager.owners)

	snap := f.state.Snapshot()
	if assert.NotNil(t, snap.ScreenStream) {
		assert.Equal(t, domain.ProducerID("p9"), snap.ScreenStream.ProducerID)
	}
	assert.Equal(t, 1, f.reconciler.count())
}

func TestRouterNewPipeProducerFailureSkipsReconcile(t *testing.T) {
	f := newRouterFixture(domain.LevelAttendee)
	f.manager.err = assert.AnError

	f.bus.fire(t, "newPipeProducer", `{"producerId":"p9","kind":"video"}`)

	assert.Equal(t, 0, f.reconciler.count())
	assert.Nil(t, f.state.Snapshot().ScreenStream)
}

func TestRouterPersonJoinedUpsertsParticipant(t *testing.T) {
	f := newRouterFixture(domain.LevelAttendee)

	f.bus.fire(t, "personJoined", `{"name":"bob","islevel":"1","muted":true,"videoOn":false}`)

	assert.Equal(t, 1, f.state.ParticipantCount())
	assert.Equal(t, 1, f.alerts.count())
	assert.Contains(t, f.alerts.messages[0], "bob")
}

func TestRouterUserWaitingNotifiesHostsOnly(t *testing.T) {
	host := newRouterFixture(domain.LevelHost)
	host.bus.fire(t, "userWaiting", `{"name":"carol"}`)
	assert.Equal(t, 1, host.alerts.count())

	attendee := newRouterFixture(domain.LevelAttendee)
	attendee.bus.fire(t, "userWaiting", `{"name":"carol"}`)
	assert.Equal(t, 0, attendee.alerts.count())
}

func TestRouterUpdatedCoHostAlertsOnChangeOnly(t *testing.T) {
	f := newRouterFixture(domain.LevelAttendee)

	f.bus.fire(t, "updatedCoHost", `{"coHost":"alice"}`)
	assert.Equal(t, "alice", f.state.Snapshot().CoHost)
	assert.Equal(t, 1, f.alerts.count())

	// Same value again is not a change.
	f.bus.fire(t, "updatedCoHost", `{"coHost":"alice"}`)
	assert.Equal(t, 1, f.alerts.count())
}

func TestRouterUpdatedCoHostDemotionAlertsInConference(t *testing.T) {
	f := newRouterFixture(domain.LevelAttendee)

	f.bus.fire(t, "updatedCoHost", `{"coHost":"alice"}`)
	f.bus.fire(t, "updatedCoHost", `{"coHost":"bob"}`)

	if assert.Equal(t, 2, f.alerts.count()) {
		assert.Contains(t, f.alerts.messages[1], "no longer")
	}
}

func TestRouterUpdatedCoHostDemotionSilentInBroadcast(t *testing.T) {
	f := newRouterFixtureIn(domain.LevelAttendee, domain.EventBroadcast)

	f.bus.fire(t, "updatedCoHost", `{"coHost":"alice"}`)
	f.bus.fire(t, "updatedCoHost", `{"coHost":"bob"}`)

	// The promotion still announces, losing the title in a broadcast does not.
	assert.Equal(t, 1, f.alerts.count())
}

func TestRouterMeetingEndedRunsCallback(t *testing.T) {
	f := newRouterFixture(domain.LevelAttendee)
	ended := false
	f.router.OnMeetingEnd(func() { ended = true })

	f.bus.fire(t, "meetingEnded", `{"reason":"time limit"}`)

	assert.True(t, ended)
	assert.Equal(t, 1, f.alerts.count())
	assert.Contains(t, f.alerts.messages[0], "time limit")
}

func TestRouterDisconnectSelfEmitsAndEnds(t *testing.T) {
	f := newRouterFixture(domain.LevelAttendee)
	ended := false
	f.router.OnMeetingEnd(func() { ended = true })

	f.bus.fire(t, "disconnectUserSelf", `{}`)

	assert.True(t, ended)
	assert.Equal(t, []string{"disconnectUser"}, f.bus.emits)
}

func TestRouterReceiveMessageSanitizesText(t *testing.T) {
	f := newRouterFixture(domain.LevelAttendee)

	f.bus.fire(t, "receiveMessage", `{"sender":"bob","message":"hi\u0000there","group":true}`)

	msgs := f.state.Messages()
	if assert.Len(t, msgs, 1) {
		assert.Equal(t, "hithere", msgs[0].Text)
		assert.True(t, msgs[0].Group)
	}
}

func TestRouterStartRecordsFlagsRecording(t *testing.T) {
	f := newRouterFixture(domain.LevelAttendee)

	f.bus.fire(t, "startRecords", `{}`)

	assert.True(t, f.state.Snapshot().Recording)
	assert.Equal(t, 1, f.alerts.count())
}

func TestRouterIgnoresMalformedPayloads(t *testing.T) {
	f := newRouterFixture(domain.LevelAttendee)

	f.bus.fire(t, "personJoined", `{"name":42}`)
	f.bus.fire(t, "producer-closed", `not json`)

	assert.Equal(t, 0, f.state.ParticipantCount())
	assert.Equal(t, 0, f.reconciler.count())
}
