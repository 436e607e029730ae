package core

//go:generate mockgen -destination=mocks/core.go -package=mocks github.com/dkeye/liveroom/internal/core PermissionRequester,EngineFactory,Surface
