package signal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"roomcast/internal/core/domain"
	"roomcast/internal/core/ports"
	"roomcast/internal/core/services"
	"roomcast/internal/core/session"
	"roomcast/pkg/utils"

	"go.uber.org/zap"
)

// Router dispatches named inbound signaling events to state mutation and
// reconciliation triggers. It can be attached to any number of signaling
// connections; handlers always re-read current state rather than closing
// over values captured at attach time.
type Router struct {
	state      *session.State
	registry   *services.Registry
	manager    ports.TransportManager
	reconciler ports.Reconciler
	layout     *services.Layout
	coHost     *services.CoHostTracker
	alerts     ports.AlertSink
	logger     *zap.SugaredLogger

	// onMeetingEnd, when set, is invoked after the meetingEnded event has
	// been applied.
	onMeetingEnd func()
}

func NewRouter(
	state *session.State,
	registry *services.Registry,
	manager ports.TransportManager,
	reconciler ports.Reconciler,
	layout *services.Layout,
	coHost *services.CoHostTracker,
	alerts ports.AlertSink,
	logger *zap.Logger,
) *Router {
	return &Router{
		state:      state,
		registry:   registry,
		manager:    manager,
		reconciler: reconciler,
		layout:     layout,
		coHost:     coHost,
		alerts:     alerts,
		logger:     logger.Sugar(),
	}
}

// OnMeetingEnd registers a callback run after meetingEnded is applied.
func (r *Router) OnMeetingEnd(fn func()) {
	r.onMeetingEnd = fn
}

// Attach registers the inbound event handlers on a signaling connection.
func (r *Router) Attach(bus ports.SignalBus) {
	// Both spellings are in the wild.
	bus.On("producer-closed", r.handleProducerClosed)
	bus.On("producerClosed", r.handleProducerClosed)

	bus.On("newPipeProducer", func(data json.RawMessage) { r.handleNewPipeProducer(bus, data) })

	bus.On("personJoined", r.handlePersonJoined)
	bus.On("userWaiting", r.handleUserWaiting)
	bus.On("updatedCoHost", r.handleUpdatedCoHost)
	bus.On("meetingEnded", r.handleMeetingEnded)
	bus.On("disconnectUserSelf", func(data json.RawMessage) { r.handleDisconnectSelf(bus, data) })
	bus.On("receiveMessage", r.handleReceiveMessage)
	bus.On("roomRecordParams", r.handleRoomRecordParams)
	bus.On("startRecords", r.handleStartRecords)
}

type producerClosedEvent struct {
	ProducerID domain.ProducerID `json:"remoteProducerId"`
}

func (r *Router) handleProducerClosed(data json.RawMessage) {
	var ev producerClosedEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		r.logger.Warnw("bad producer-closed payload", "error", err)
		return
	}

	r.registry.Remove(ev.ProducerID)
	r.state.ForgetStream(ev.ProducerID)
	r.refreshGrid(context.Background())
	r.logger.Infow("remote producer closed", "producer_id", ev.ProducerID)
}

type newPipeProducerEvent struct {
	ProducerID domain.ProducerID `json:"producerId"`
	Kind       domain.MediaKind  `json:"kind"`
	Owner      string            `json:"name,omitempty"`
}

func (r *Router) handleNewPipeProducer(bus ports.SignalBus, data json.RawMessage) {
	var ev newPipeProducerEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		r.logger.Warnw("bad newPipeProducer payload", "error", err)
		return
	}

	ctx := context.Background()
	if err := r.manager.SignalNewConsumerTransport(ctx, ev.ProducerID, ev.Kind, ev.Owner, bus); err != nil {
		r.logger.Warnw("new piped producer setup failed", "producer_id", ev.ProducerID, "error", err)
		return
	}
	if ev.Kind == domain.KindScreen {
		r.state.SetScreenStream(&domain.Stream{ProducerID: ev.ProducerID, Kind: ev.Kind, Owner: ev.Owner})
	}
	r.refreshGrid(ctx)
}

type personJoinedEvent struct {
	Name    string                  `json:"name"`
	Level   domain.ParticipantLevel `json:"islevel"`
	Muted   bool                    `json:"muted"`
	VideoOn bool                    `json:"videoOn"`
}

func (r *Router) handlePersonJoined(data json.RawMessage) {
	var ev personJoinedEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		r.logger.Warnw("bad personJoined payload", "error", err)
		return
	}

	r.state.UpsertParticipant(domain.Participant{
		Name:     ev.Name,
		Level:    ev.Level,
		Muted:    ev.Muted,
		VideoOn:  ev.VideoOn,
		JoinedAt: time.Now(),
	})
	r.alerts.Alert(domain.AlertSuccess, fmt.Sprintf("%s joined the event", ev.Name))
	r.refreshGrid(context.Background())
}

type userWaitingEvent struct {
	Name string `json:"name"`
}

func (r *Router) handleUserWaiting(data json.RawMessage) {
	var ev userWaitingEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		r.logger.Warnw("bad userWaiting payload", "error", err)
		return
	}

	// Only hosts and co-host-equivalents can admit, so only they are told.
	if !r.coHost.CoHostEquivalent() && r.state.Snapshot().Level != domain.LevelHost {
		return
	}
	r.alerts.Alert(domain.AlertSuccess, fmt.Sprintf("%s is waiting to join", ev.Name))
}

type updatedCoHostEvent struct {
	CoHost string `json:"coHost"`
}

func (r *Router) handleUpdatedCoHost(data json.RawMessage) {
	var ev updatedCoHostEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		r.logger.Warnw("bad updatedCoHost payload", "error", err)
		return
	}

	r.state.SetCoHost(ev.CoHost)
	changed := r.coHost.Update(ev.CoHost)
	if !changed {
		return
	}
	if r.coHost.IsCoHost() {
		r.alerts.Alert(domain.AlertSuccess, "You are now a co-host")
	} else if !r.coHost.CoHostEquivalent() {
		// In broadcast and chat rooms every non-host already counts as
		// co-host-equivalent, so losing the nominal title is not announced.
		r.alerts.Alert(domain.AlertDanger, "You are no longer a co-host")
	}
}

type meetingEndedEvent struct {
	Reason string `json:"reason,omitempty"`
}

func (r *Router) handleMeetingEnded(data json.RawMessage) {
	var ev meetingEndedEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		r.logger.Warnw("bad meetingEnded payload", "error", err)
	}

	msg := "The meeting has ended"
	if ev.Reason != "" {
		msg = fmt.Sprintf("The meeting has ended: %s", ev.Reason)
	}
	r.alerts.Alert(domain.AlertDanger, msg)
	if r.onMeetingEnd != nil {
		r.onMeetingEnd()
	}
}

func (r *Router) handleDisconnectSelf(bus ports.SignalBus, _ json.RawMessage) {
	snap := r.state.Snapshot()
	r.alerts.Alert(domain.AlertDanger, "You have been removed from the event")

	payload := map[string]any{"member": snap.Member, "roomName": snap.RoomName}
	if err := bus.Emit(context.Background(), "disconnectUser", payload); err != nil {
		r.logger.Warnw("disconnectUser emit failed", "error", err)
	}
	if r.onMeetingEnd != nil {
		r.onMeetingEnd()
	}
}

type receiveMessageEvent struct {
	Sender string `json:"sender"`
	Text   string `json:"message"`
	Group  bool   `json:"group"`
}

func (r *Router) handleReceiveMessage(data json.RawMessage) {
	var ev receiveMessageEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		r.logger.Warnw("bad receiveMessage payload", "error", err)
		return
	}
	text := utils.TruncateString(utils.SanitizeString(ev.Text), 1000)
	r.state.AddMessage(domain.Message{Sender: ev.Sender, Text: text, Group: ev.Group, SentAt: time.Now()})
}

type roomRecordParamsEvent struct {
	AudioPeopleLimit int `json:"recordingAudioPeopleLimit"`
	VideoPeopleLimit int `json:"recordingVideoPeopleLimit"`
	TimeLimitMinutes int `json:"recordingTimeLimit"`
}

func (r *Router) handleRoomRecordParams(data json.RawMessage) {
	var ev roomRecordParamsEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		r.logger.Warnw("bad roomRecordParams payload", "error", err)
		return
	}
	r.state.SetRecordParams(domain.RecordParams{
		RecordingAudioPeopleLimit: ev.AudioPeopleLimit,
		RecordingVideoPeopleLimit: ev.VideoPeopleLimit,
		RecordingTimeLimit:        time.Duration(ev.TimeLimitMinutes) * time.Minute,
	})
}

func (r *Router) handleStartRecords(_ json.RawMessage) {
	r.state.SetRecording(true)
	r.alerts.Alert(domain.AlertSuccess, "Recording started")
}

// refreshGrid recomputes the visible-stream list from fresh state and runs
// a reconciliation pass.
func (r *Router) refreshGrid(ctx context.Context) {
	snap := r.state.Snapshot()
	active := r.layout.Compute(snap, 0)
	r.state.SetActiveStreams(active)
	r.state.SetNewLimited(active)

	if err := r.reconciler.ProcessConsumerTransports(ctx); err != nil {
		r.logger.Warnw("reconcile after event failed", "error", err)
	}
}
