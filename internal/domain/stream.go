package domain

import "errors"

const MaxStreamIDLen = 256

var (
	ErrStreamIDEmpty   = errors.New("stream id empty")
	ErrStreamIDTooLong = errors.New("stream id too long")
	ErrStreamIDInvalid = errors.New("stream id may only contain letters, digits, '-' and '_'")
)

type StreamID string

func (id StreamID) Validate() error {
	if len(id) == 0 {
		return ErrStreamIDEmpty
	}
	if len(id) > MaxStreamIDLen {
		return ErrStreamIDTooLong
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return ErrStreamIDInvalid
		}
	}
	return nil
}

// Stream is one published flow in a room.
type Stream struct {
	ID   StreamID `json:"stream_id"`
	User User     `json:"user"`
}
