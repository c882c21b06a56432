package services

import (
	"testing"

	"roomcast/internal/core/domain"

	"github.com/stretchr/testify/assert"
)

func TestCoHostTrackerFollowsIdentity(t *testing.T) {
	tracker := NewCoHostTracker("alice", domain.LevelAttendee, domain.EventConference)
	assert.False(t, tracker.IsCoHost())

	assert.True(t, tracker.Update("alice"))
	assert.True(t, tracker.IsCoHost())

	// Same identity again is not a change.
	assert.False(t, tracker.Update("alice"))

	assert.True(t, tracker.Update("bob"))
	assert.False(t, tracker.IsCoHost())
}

func TestCoHostEquivalentInBroadcastRooms(t *testing.T) {
	attendee := NewCoHostTracker("alice", domain.LevelAttendee, domain.EventBroadcast)
	assert.True(t, attendee.CoHostEquivalent())

	host := NewCoHostTracker("alice", domain.LevelHost, domain.EventBroadcast)
	assert.False(t, host.CoHostEquivalent())

	chat := NewCoHostTracker("alice", domain.LevelAttendee, domain.EventChat)
	assert.True(t, chat.CoHostEquivalent())
}

func TestCoHostEquivalentIsStrictInConferences(t *testing.T) {
	tracker := NewCoHostTracker("alice", domain.LevelAttendee, domain.EventConference)
	assert.False(t, tracker.CoHostEquivalent())

	tracker.Update("alice")
	assert.True(t, tracker.CoHostEquivalent())
}
