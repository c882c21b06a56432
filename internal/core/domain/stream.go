package domain

import (
	"time"
)

type ProducerID string
type SocketID string
type RoomName string

// MediaKind identifies what a producer or consumer carries.
type MediaKind string

const (
	KindAudio  MediaKind = "audio"
	KindVideo  MediaKind = "video"
	KindScreen MediaKind = "screen"
)

// IsAudio reports whether the kind is exempt from grid capacity throttling.
func (k MediaKind) IsAudio() bool { return k == KindAudio }

// Stream is a renderable media unit signaled by the remote SFU. The owning
// participant is referenced by name, not owned.
type Stream struct {
	ProducerID ProducerID
	Kind       MediaKind
	Owner      string
	SignaledAt time.Time
}

// DisplayType selects which participants are eligible for grid slots.
type DisplayType string

const (
	DisplayVideo DisplayType = "video"
	DisplayMedia DisplayType = "media"
	DisplayAll   DisplayType = "all"
)

// EventType is the room flavor; broadcast and chat rooms relax the co-host
// rules for alert suppression.
type EventType string

const (
	EventConference EventType = "conference"
	EventWebinar    EventType = "webinar"
	EventBroadcast  EventType = "broadcast"
	EventChat       EventType = "chat"
)
