package services

import (
	"sort"

	"roomcast/internal/core/domain"
	"roomcast/internal/core/session"
)

// Layout computes the limited visible-stream list the reconciler converges
// toward. Screen share with the screen lock engaged takes the main slot
// unconditionally; host and co-host video are promoted ahead of everyone
// else; the remainder is paged by the item page limit.
type Layout struct{}

func NewLayout() *Layout {
	return &Layout{}
}

// Compute returns the streams that should occupy grid slots for the given
// page. Audio streams never occupy slots and are always carried through
// untrimmed.
func (l *Layout) Compute(snap session.Snapshot, page int) []domain.Stream {
	levels := make(map[string]domain.ParticipantLevel, len(snap.Participants))
	eligible := make(map[string]bool, len(snap.Participants))
	for _, p := range snap.Participants {
		levels[p.Name] = p.Level
		eligible[p.Name] = l.participantEligible(p, snap.Display.MeetingDisplayType)
	}

	var audio, video []domain.Stream
	for _, st := range snap.AllStreams {
		if st.Kind.IsAudio() {
			audio = append(audio, st)
			continue
		}
		if st.Kind == domain.KindScreen {
			// screen placement is handled below via the dedicated slot
			continue
		}
		// Streams whose owner is not yet resolved stay eligible until the
		// roster catches up.
		if st.Owner == "" || eligible[st.Owner] {
			video = append(video, st)
		}
	}

	// Host first, co-host second, then join order (signal order) for the rest.
	sort.SliceStable(video, func(i, j int) bool {
		return levelRank(levels[video[i].Owner]) > levelRank(levels[video[j].Owner])
	})

	var out []domain.Stream
	slots := snap.Display.ItemPageLimit
	if snap.ScreenStream != nil && snap.Display.Shared && snap.Display.LockScreen {
		out = append(out, *snap.ScreenStream)
		if slots > 0 {
			slots--
		}
	}

	if page < 0 {
		page = 0
	}
	start := page * slots
	if start < len(video) {
		end := start + slots
		if end > len(video) {
			end = len(video)
		}
		out = append(out, video[start:end]...)
	}

	// Audio is exempt from capacity limits.
	out = append(out, audio...)
	return out
}

func (l *Layout) participantEligible(p domain.Participant, dt domain.DisplayType) bool {
	switch dt {
	case domain.DisplayVideo:
		return p.VideoOn
	case domain.DisplayMedia:
		return p.HasMedia()
	default:
		return true
	}
}

func levelRank(level domain.ParticipantLevel) int {
	switch level {
	case domain.LevelHost:
		return 2
	case domain.LevelCoHost:
		return 1
	}
	return 0
}
