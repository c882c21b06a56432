package domain

import "time"

// ParticipantLevel is the role level assigned by the room service:
// '0' attendee, '1' co-host, '2' host.
type ParticipantLevel string

const (
	LevelAttendee ParticipantLevel = "0"
	LevelCoHost   ParticipantLevel = "1"
	LevelHost     ParticipantLevel = "2"
)

// ParticipantLevels in the order the service connects piped producers
// (hosts and co-hosts are prioritized server-side, attendees last, but the
// fan-out request iterates ascending per the wire contract).
var ParticipantLevels = []ParticipantLevel{LevelAttendee, LevelCoHost, LevelHost}

// Participant is a member of the room roster. Created on join, mutated on
// every media/mute/role event, removed on leave or ban.
type Participant struct {
	Name      string
	SocketID  SocketID
	Level     ParticipantLevel
	Muted     bool
	VideoOn   bool
	BreakRoom *int
	JoinedAt  time.Time
}

// HasMedia reports whether the participant currently contributes any
// renderable media.
func (p *Participant) HasMedia() bool {
	return p.VideoOn || !p.Muted
}
