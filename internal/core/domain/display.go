package domain

import "time"

// DisplaySettings gate which remote streams are desired on screen.
type DisplaySettings struct {
	MeetingDisplayType DisplayType
	LockScreen         bool
	Shared             bool
	ItemPageLimit      int
}

// RecordParams are room recording limits pushed by the service; they gate
// recording UI only, never media transport.
type RecordParams struct {
	RecordingAudioPeopleLimit int
	RecordingVideoPeopleLimit int
	RecordingTimeLimit        time.Duration
}

// Message is a room chat message relayed over the signaling channel.
type Message struct {
	Sender  string
	Text    string
	Group   bool
	SentAt  time.Time
}

// AlertCategory classifies a transient user-visible alert.
type AlertCategory string

const (
	AlertSuccess AlertCategory = "success"
	AlertDanger  AlertCategory = "danger"
)

// Alert is a transient, auto-dismissing user notification. It never blocks.
type Alert struct {
	Category AlertCategory
	Message  string
	IssuedAt time.Time
}
