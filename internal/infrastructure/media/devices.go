package media

import (
	"context"

	"roomcast/internal/core/domain"
	"roomcast/internal/core/ports"
)

// StaticDeviceChecker answers permission probes from fixed flags, the way a
// host application reports the platform permission state it already holds.
type StaticDeviceChecker struct {
	Microphone bool
	Camera     bool
	Screen     bool
}

var _ ports.DeviceChecker = StaticDeviceChecker{}

func (d StaticDeviceChecker) HasPermission(_ context.Context, kind domain.MediaKind) (bool, error) {
	switch kind {
	case domain.KindAudio:
		return d.Microphone, nil
	case domain.KindVideo:
		return d.Camera, nil
	case domain.KindScreen:
		return d.Screen, nil
	}
	return false, nil
}
