package core

import (
	"context"

	"github.com/dkeye/liveroom/internal/domain"
)

// EngineFactory creates and destroys the engine. Destroy is global: it tears
// down whichever instance is alive.
type EngineFactory interface {
	Create(ctx context.Context, profile domain.Profile) (Engine, error)
	Destroy(ctx context.Context) error
}

// Engine is the external real-time audio/video engine.
// Every method that touches native territory may block; ctx bounds it.
type Engine interface {
	// SetEventHandler registers the passive notification sink.
	SetEventHandler(EventHandler)

	LoginRoom(ctx context.Context, roomID domain.RoomID, user domain.User, cfg domain.RoomConfig) error
	LogoutRoom(ctx context.Context, roomID domain.RoomID) error

	// StartPreview renders the local camera into the bound surface.
	StartPreview(ctx context.Context, view domain.MediaViewBinding) error
	StopPreview(ctx context.Context) error

	StartPublishingStream(ctx context.Context, streamID domain.StreamID) error
	StopPublishingStream(ctx context.Context, streamID domain.StreamID) error

	// StartPlayingStream renders a remote stream into the bound surface.
	StartPlayingStream(ctx context.Context, streamID domain.StreamID, view domain.MediaViewBinding) error
	StopPlayingStream(ctx context.Context, streamID domain.StreamID) error

	UseFrontCamera(ctx context.Context, front bool) error
}
