package session

import (
	"testing"

	"github.com/dkeye/liveroom/internal/core"
	"github.com/dkeye/liveroom/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestFanout_RecoversAndContinues(t *testing.T) {
	rec := &recordingObserver{}
	f := &fanout{
		observers: []core.EventHandler{panickingObserver{}, rec},
		logger:    zerolog.Nop(),
	}

	assert.NotPanics(t, func() {
		f.OnRoomStateUpdate(core.RoomStateUpdate{RoomID: "r", State: domain.RoomConnected})
		f.OnRoomUserUpdate(core.RoomUserUpdate{RoomID: "r"})
		f.OnRoomStreamUpdate(core.RoomStreamUpdate{RoomID: "r"})
	})
	assert.Equal(t, []domain.RoomState{domain.RoomConnected}, rec.seen())
}

func TestLogObserver(t *testing.T) {
	o := &LogObserver{Logger: zerolog.Nop()}
	assert.NotPanics(t, func() {
		o.OnRoomStateUpdate(core.RoomStateUpdate{RoomID: "r"})
		o.OnRoomUserUpdate(core.RoomUserUpdate{Users: []domain.User{{ID: "u"}}})
		o.OnRoomStreamUpdate(core.RoomStreamUpdate{Streams: []domain.Stream{{ID: "s"}}})
	})
}
