package domain

import "errors"

const MaxRoomIDLen = 128

var (
	ErrRoomIDEmpty   = errors.New("room id empty")
	ErrRoomIDTooLong = errors.New("room id too long")
)

type RoomID string

// RoomConfig is passed along with room login.
type RoomConfig struct {
	// UserStatusNotify enables user join/leave notifications for this member.
	UserStatusNotify bool
	// MaxMemberCount of 0 means unlimited.
	MaxMemberCount uint32
}

// RoomState is reported through room state notifications.
type RoomState int

const (
	RoomDisconnected RoomState = iota
	RoomConnecting
	RoomConnected
)

func (s RoomState) String() string {
	switch s {
	case RoomConnecting:
		return "connecting"
	case RoomConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

func (id RoomID) Validate() error {
	if len(id) == 0 {
		return ErrRoomIDEmpty
	}
	if len(id) > MaxRoomIDLen {
		return ErrRoomIDTooLong
	}
	return nil
}
