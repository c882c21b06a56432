package session

import (
	"sync"

	"roomcast/internal/core/domain"
)

// State is the single mutable holder of room state. Readers take a Snapshot
// at the start of each pass instead of trusting values captured earlier;
// writers go through the setter methods. This keeps reconciliation passes
// working on fresh reads even when roster events interleave.
type State struct {
	mu sync.RWMutex

	member    string
	roomName  domain.RoomName
	eventType domain.EventType
	level     domain.ParticipantLevel
	coHost    string

	participants map[string]*domain.Participant

	// allStreams is every remote stream currently signaled; it feeds the
	// layout builder but does not by itself keep a consumer resumed.
	allStreams []domain.Stream

	// The four validity lists: a consumer whose producer appears in none of
	// them is a pause candidate.
	activeStreams []domain.Stream
	screenStream  *domain.Stream
	oldAllStreams []domain.Stream
	newLimited    []domain.Stream

	display      domain.DisplaySettings
	recordParams domain.RecordParams
	recording    bool

	roomRecvIPs []string
	messages    []domain.Message
}

// Snapshot is a consistent copy of everything a reconciliation or layout
// pass needs. Stream slices are copied; Participant values are copied by
// value so a snapshot never observes later roster mutation.
type Snapshot struct {
	Member       string
	RoomName     domain.RoomName
	EventType    domain.EventType
	Level        domain.ParticipantLevel
	CoHost       string
	Participants []domain.Participant

	AllStreams    []domain.Stream
	ActiveStreams []domain.Stream
	ScreenStream  *domain.Stream
	OldAllStreams []domain.Stream
	NewLimited    []domain.Stream

	Display      domain.DisplaySettings
	RecordParams domain.RecordParams
	Recording    bool

	RoomRecvIPs []string
}

func New(member string, roomName domain.RoomName, eventType domain.EventType, level domain.ParticipantLevel, display domain.DisplaySettings) *State {
	return &State{
		member:       member,
		roomName:     roomName,
		eventType:    eventType,
		level:        level,
		participants: make(map[string]*domain.Participant),
		display:      display,
	}
}

// Snapshot returns a fresh consistent copy of the state.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Member:        s.member,
		RoomName:      s.roomName,
		EventType:     s.eventType,
		Level:         s.level,
		CoHost:        s.coHost,
		Participants:  make([]domain.Participant, 0, len(s.participants)),
		AllStreams:    append([]domain.Stream(nil), s.allStreams...),
		ActiveStreams: append([]domain.Stream(nil), s.activeStreams...),
		OldAllStreams: append([]domain.Stream(nil), s.oldAllStreams...),
		NewLimited:    append([]domain.Stream(nil), s.newLimited...),
		Display:       s.display,
		RecordParams:  s.recordParams,
		Recording:     s.recording,
		RoomRecvIPs:   append([]string(nil), s.roomRecvIPs...),
	}
	for _, p := range s.participants {
		snap.Participants = append(snap.Participants, *p)
	}
	if s.screenStream != nil {
		copied := *s.screenStream
		snap.ScreenStream = &copied
	}
	return snap
}

// ValidProducer reports whether the producer is present in any of the four
// tracking lists of the snapshot.
func (snap Snapshot) ValidProducer(id domain.ProducerID) bool {
	if id == "" {
		return false
	}
	if snap.ScreenStream != nil && snap.ScreenStream.ProducerID == id {
		return true
	}
	for _, list := range [][]domain.Stream{snap.ActiveStreams, snap.OldAllStreams, snap.NewLimited} {
		for _, st := range list {
			if st.ProducerID == id {
				return true
			}
		}
	}
	return false
}

func (s *State) UpsertParticipant(p domain.Participant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := p
	s.participants[p.Name] = &copied
}

func (s *State) RemoveParticipant(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.participants, name)

	// Streams owned by a departed participant are no longer valid targets.
	s.allStreams = dropOwner(s.allStreams, name)
	s.activeStreams = dropOwner(s.activeStreams, name)
	s.oldAllStreams = dropOwner(s.oldAllStreams, name)
	s.newLimited = dropOwner(s.newLimited, name)
	if s.screenStream != nil && s.screenStream.Owner == name {
		s.screenStream = nil
	}
}

func dropOwner(streams []domain.Stream, owner string) []domain.Stream {
	out := streams[:0]
	for _, st := range streams {
		if st.Owner != owner {
			out = append(out, st)
		}
	}
	return out
}

func (s *State) ParticipantCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.participants)
}

func (s *State) SetActiveStreams(streams []domain.Stream) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeStreams = append([]domain.Stream(nil), streams...)
}

func (s *State) SetNewLimited(streams []domain.Stream) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.newLimited = append([]domain.Stream(nil), streams...)
}

// AddStream records a newly signaled remote stream. Duplicate producer IDs
// are ignored.
func (s *State) AddStream(st domain.Stream) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, known := range s.allStreams {
		if known.ProducerID == st.ProducerID {
			return
		}
	}
	s.allStreams = append(s.allStreams, st)
}

// CacheAllStreams captures the current full stream list into the
// old-all-streams cache. Taken when a screen share starts so the grid can be
// restored when it ends.
func (s *State) CacheAllStreams() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.oldAllStreams = append([]domain.Stream(nil), s.allStreams...)
}

// ClearOldStreams drops the old-all-streams cache.
func (s *State) ClearOldStreams() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.oldAllStreams = nil
}

func (s *State) ForgetStream(id domain.ProducerID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.allStreams = dropProducer(s.allStreams, id)
	s.activeStreams = dropProducer(s.activeStreams, id)
	s.oldAllStreams = dropProducer(s.oldAllStreams, id)
	s.newLimited = dropProducer(s.newLimited, id)
	if s.screenStream != nil && s.screenStream.ProducerID == id {
		s.screenStream = nil
	}
}

func dropProducer(streams []domain.Stream, id domain.ProducerID) []domain.Stream {
	out := streams[:0]
	for _, st := range streams {
		if st.ProducerID != id {
			out = append(out, st)
		}
	}
	return out
}

func (s *State) SetScreenStream(st *domain.Stream) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st == nil {
		s.screenStream = nil
		return
	}
	copied := *st
	s.screenStream = &copied
}

func (s *State) SetDisplay(d domain.DisplaySettings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.display = d
}

func (s *State) SetShared(shared bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.display.Shared = shared
}

func (s *State) SetLockScreen(locked bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.display.LockScreen = locked
}

func (s *State) SetCoHost(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.coHost = name
}

func (s *State) SetRecordParams(p domain.RecordParams) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recordParams = p
}

func (s *State) SetRecording(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recording = on
}

// AddRecvIP records a connected media-domain IP; returns false when the IP
// was already known.
func (s *State) AddRecvIP(ip string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, known := range s.roomRecvIPs {
		if known == ip {
			return false
		}
	}
	s.roomRecvIPs = append(s.roomRecvIPs, ip)
	return true
}

// AddMessage appends a received chat message.
func (s *State) AddMessage(m domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, m)
}

// Messages returns a copy of the received chat messages.
func (s *State) Messages() []domain.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Message(nil), s.messages...)
}
