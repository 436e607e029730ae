package domain

import "errors"

var ErrSurfaceUnbound = errors.New("surface handle not resolved")

// SurfaceHandle is the opaque native handle of a mounted rendering surface.
// Zero means "not resolved".
type SurfaceHandle uint64

type ViewMode int

const (
	ViewModeAspectFit ViewMode = iota
	ViewModeAspectFill
	ViewModeScaleToFill
)

// MediaViewBinding ties a resolved surface to render options.
type MediaViewBinding struct {
	Handle          SurfaceHandle
	ViewMode        ViewMode
	BackgroundColor uint32
}

func (b MediaViewBinding) Validate() error {
	if b.Handle == 0 {
		return ErrSurfaceUnbound
	}
	return nil
}

type CameraFacing int

const (
	CameraFront CameraFacing = iota
	CameraBack
)

func (f CameraFacing) Toggle() CameraFacing {
	if f == CameraFront {
		return CameraBack
	}
	return CameraFront
}

func (f CameraFacing) String() string {
	if f == CameraBack {
		return "back"
	}
	return "front"
}
