package services

import (
	"sync"

	"roomcast/internal/core/domain"
)

// CoHostTracker tracks whether the local member currently holds co-host
// status. The status follows the updatedCoHost event: it is granted when the
// announced co-host is the local member and revoked when the identity moves
// away. Broadcast and chat rooms treat every non-host as co-host-equivalent
// for alert-suppression purposes.
type CoHostTracker struct {
	mu sync.Mutex

	member    string
	level     domain.ParticipantLevel
	eventType domain.EventType
	coHost    string
	isCoHost  bool
}

func NewCoHostTracker(member string, level domain.ParticipantLevel, eventType domain.EventType) *CoHostTracker {
	return &CoHostTracker{member: member, level: level, eventType: eventType}
}

// Update applies an updatedCoHost event and reports whether the local
// member's status changed.
func (t *CoHostTracker) Update(coHost string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.coHost = coHost
	was := t.isCoHost
	t.isCoHost = coHost == t.member
	return was != t.isCoHost
}

// IsCoHost reports the strict co-host status.
func (t *CoHostTracker) IsCoHost() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.isCoHost
}

// CoHostEquivalent reports whether co-host-gated alerts should be shown to
// the local member. In broadcast and chat rooms any non-host qualifies.
func (t *CoHostTracker) CoHostEquivalent() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.eventType == domain.EventBroadcast || t.eventType == domain.EventChat {
		return t.level != domain.LevelHost
	}
	return t.isCoHost
}
