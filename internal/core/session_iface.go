package core

import (
	"context"

	"github.com/dkeye/liveroom/internal/domain"
)

// PermissionRequester asks the platform for camera and microphone access.
// One implementation per platform, picked when wiring the app.
type PermissionRequester interface {
	Request(ctx context.Context) (domain.PermissionState, error)
}
