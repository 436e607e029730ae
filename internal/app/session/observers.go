package session

import (
	"github.com/dkeye/liveroom/internal/core"
	"github.com/dkeye/liveroom/internal/metrics"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// fanout forwards engine notifications to every observer. A panicking
// observer is logged and skipped; nothing flows back into the controller.
type fanout struct {
	observers []core.EventHandler
	metrics   *metrics.Metrics
	logger    zerolog.Logger
}

func (f *fanout) OnRoomStateUpdate(u core.RoomStateUpdate) {
	f.metrics.RoomEvent("state")
	for _, o := range f.observers {
		f.safe("room_state", func() { o.OnRoomStateUpdate(u) })
	}
}

func (f *fanout) OnRoomUserUpdate(u core.RoomUserUpdate) {
	f.metrics.RoomEvent("user")
	for _, o := range f.observers {
		f.safe("room_user", func() { o.OnRoomUserUpdate(u) })
	}
}

func (f *fanout) OnRoomStreamUpdate(u core.RoomStreamUpdate) {
	f.metrics.RoomEvent("stream")
	for _, o := range f.observers {
		f.safe("room_stream", func() { o.OnRoomStreamUpdate(u) })
	}
}

func (f *fanout) safe(kind string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			f.metrics.ObserverPanic()
			f.logger.Error().Str("event", kind).Interface("panic", r).Msg("observer panicked")
		}
	}()
	fn()
}

// LogObserver writes every room notification to the log.
type LogObserver struct {
	Logger zerolog.Logger
}

func NewLogObserver() *LogObserver {
	return &LogObserver{Logger: log.With().Str("module", "session.events").Logger()}
}

func (o *LogObserver) OnRoomStateUpdate(u core.RoomStateUpdate) {
	o.Logger.Info().
		Str("room", string(u.RoomID)).
		Str("state", u.State.String()).
		Int("error_code", u.ErrorCode).
		Msg("room state updated")
}

func (o *LogObserver) OnRoomUserUpdate(u core.RoomUserUpdate) {
	ids := make([]string, 0, len(u.Users))
	for _, usr := range u.Users {
		ids = append(ids, string(usr.ID))
	}
	o.Logger.Info().
		Str("room", string(u.RoomID)).
		Str("update", u.UpdateType.String()).
		Strs("users", ids).
		Msg("user update")
}

func (o *LogObserver) OnRoomStreamUpdate(u core.RoomStreamUpdate) {
	ids := make([]string, 0, len(u.Streams))
	for _, st := range u.Streams {
		ids = append(ids, string(st.ID))
	}
	o.Logger.Info().
		Str("room", string(u.RoomID)).
		Str("update", u.UpdateType.String()).
		Strs("streams", ids).
		Msg("stream update")
}
