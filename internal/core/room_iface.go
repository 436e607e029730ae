package core

import (
	"github.com/dkeye/liveroom/internal/domain"
)

type UpdateType int

const (
	UpdateAdd UpdateType = iota
	UpdateDelete
)

func (t UpdateType) String() string {
	if t == UpdateDelete {
		return "delete"
	}
	return "add"
}

type RoomStateUpdate struct {
	RoomID    domain.RoomID    `json:"room_id"`
	State     domain.RoomState `json:"state"`
	ErrorCode int              `json:"error_code"`
	Extended  string           `json:"extended,omitempty"`
}

type RoomUserUpdate struct {
	RoomID     domain.RoomID `json:"room_id"`
	UpdateType UpdateType    `json:"update_type"`
	Users      []domain.User `json:"users"`
}

type RoomStreamUpdate struct {
	RoomID     domain.RoomID   `json:"room_id"`
	UpdateType UpdateType      `json:"update_type"`
	Streams    []domain.Stream `json:"streams"`
}

// EventHandler receives fire-and-forget room notifications from the engine.
// Implementations must not block for long and must not panic.
type EventHandler interface {
	OnRoomStateUpdate(RoomStateUpdate)
	OnRoomUserUpdate(RoomUserUpdate)
	OnRoomStreamUpdate(RoomStreamUpdate)
}

// RoomInfo is a read-only view for APIs.
type RoomInfo struct {
	ID          domain.RoomID `json:"id"`
	MemberCount int           `json:"member_count"`
	StreamCount int           `json:"stream_count"`
}
