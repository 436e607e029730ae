// Package permission implements core.PermissionRequester per platform.
package permission

import (
	"context"
	"errors"
	"fmt"

	"github.com/dkeye/liveroom/internal/core"
	"github.com/dkeye/liveroom/internal/domain"
	"github.com/rs/zerolog/log"
)

const (
	AndroidCamera     = "android.permission.CAMERA"
	AndroidMicrophone = "android.permission.RECORD_AUDIO"

	IOSCamera     = "camera"
	IOSMicrophone = "microphone"

	ResultGranted = "granted"
)

var ErrNoBridge = errors.New("permission bridge not configured")

// AndroidBridge asks for several permissions in one system prompt.
type AndroidBridge interface {
	RequestMultiple(ctx context.Context, perms []string) (map[string]string, error)
}

// IOSBridge asks for one permission at a time.
type IOSBridge interface {
	Request(ctx context.Context, perm string) (string, error)
}

type Android struct {
	Bridge AndroidBridge
}

func (a Android) Request(ctx context.Context) (domain.PermissionState, error) {
	if a.Bridge == nil {
		return domain.PermissionState{}, ErrNoBridge
	}
	res, err := a.Bridge.RequestMultiple(ctx, []string{AndroidCamera, AndroidMicrophone})
	if err != nil {
		return domain.PermissionState{}, fmt.Errorf("android request: %w", err)
	}
	st := domain.PermissionState{
		Camera:     res[AndroidCamera] == ResultGranted,
		Microphone: res[AndroidMicrophone] == ResultGranted,
	}
	log.Info().Str("module", "permission").Str("platform", "android").Str("result", st.String()).Msg("permissions")
	return st, nil
}

// IOS asks for the camera first. The microphone prompt is still shown when the
// camera is refused, so the user sees both.
type IOS struct {
	Bridge IOSBridge
}

func (i IOS) Request(ctx context.Context) (domain.PermissionState, error) {
	if i.Bridge == nil {
		return domain.PermissionState{}, ErrNoBridge
	}
	var st domain.PermissionState
	cam, err := i.Bridge.Request(ctx, IOSCamera)
	if err != nil {
		return st, fmt.Errorf("ios camera: %w", err)
	}
	st.Camera = cam == ResultGranted
	mic, err := i.Bridge.Request(ctx, IOSMicrophone)
	if err != nil {
		return st, fmt.Errorf("ios microphone: %w", err)
	}
	st.Microphone = mic == ResultGranted
	log.Info().Str("module", "permission").Str("platform", "ios").Str("result", st.String()).Msg("permissions")
	return st, nil
}

// Static answers with a fixed grant. Desktop has no runtime prompt.
type Static struct {
	State domain.PermissionState
}

func (s Static) Request(context.Context) (domain.PermissionState, error) {
	return s.State, nil
}

// Bridges carries whatever native bridges the host provides.
type Bridges struct {
	Android AndroidBridge
	IOS     IOSBridge
}

// ForPlatform picks the requester for p. Platforms without a bridge fall back to fallback.
func ForPlatform(p domain.Platform, b Bridges, fallback domain.PermissionState) core.PermissionRequester {
	switch {
	case p == domain.PlatformAndroid && b.Android != nil:
		return Android{Bridge: b.Android}
	case p == domain.PlatformIOS && b.IOS != nil:
		return IOS{Bridge: b.IOS}
	default:
		return Static{State: fallback}
	}
}
