package services

import (
	"context"
	"fmt"

	"roomcast/internal/core/domain"
	"roomcast/internal/core/ports"
)

// CapabilityGate checks device permissions before any media action is
// attempted. A denied permission aborts the operation with no retry.
type CapabilityGate struct {
	checker       ports.DeviceChecker
	audioOnlyRoom bool
}

func NewCapabilityGate(checker ports.DeviceChecker, audioOnlyRoom bool) *CapabilityGate {
	return &CapabilityGate{checker: checker, audioOnlyRoom: audioOnlyRoom}
}

// EnsureMedia verifies the local device may produce the given kind.
func (g *CapabilityGate) EnsureMedia(ctx context.Context, kind domain.MediaKind) error {
	if g.audioOnlyRoom && !kind.IsAudio() {
		return fmt.Errorf("%s: %w", kind, domain.ErrVideoNotAllowed)
	}

	ok, err := g.checker.HasPermission(ctx, kind)
	if err != nil {
		return fmt.Errorf("permission probe for %s: %w", kind, err)
	}
	if !ok {
		return fmt.Errorf("%s: %w", kind, domain.ErrPermissionDenied)
	}
	return nil
}
