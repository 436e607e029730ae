package core

import (
	"context"

	"github.com/dkeye/liveroom/internal/domain"
)

// Frame is a raw binary payload (e.g., one video frame).
type Frame []byte

// Sink is whatever draws frames into a mounted surface.
type Sink interface {
	Draw(Frame)
}

// Surface resolves the native handle of a rendering surface.
// Await blocks until the surface is mounted or ctx is done.
type Surface interface {
	Await(ctx context.Context) (domain.SurfaceHandle, error)
}
