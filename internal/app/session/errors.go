package session

import "errors"

var (
	ErrPermissionDenied   = errors.New("permission denied")
	ErrEngineBusy         = errors.New("another engine instance is alive")
	ErrEngineCreateFailed = errors.New("engine create failed")
	ErrRoomJoinFailed     = errors.New("room join failed")
	ErrSurfaceNotReady    = errors.New("surface not ready")
	ErrPreviewNotStarted  = errors.New("preview not started")
	ErrEngineNotReady     = errors.New("engine not ready")
	ErrTeardownStepFailed = errors.New("teardown step failed")

	ErrAlreadyStarted = errors.New("session already started")
	ErrTornDown       = errors.New("session torn down")
)
