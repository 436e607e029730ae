package domain

import "fmt"

// SessionIdentity names who we are and what we publish for the lifetime of one session.
type SessionIdentity struct {
	RoomID   RoomID
	User     User
	StreamID StreamID
}

// NewSessionIdentity validates every part. An empty userID is replaced with a generated one.
func NewSessionIdentity(roomID RoomID, userID UserID, username string, streamID StreamID) (SessionIdentity, error) {
	if err := roomID.Validate(); err != nil {
		return SessionIdentity{}, fmt.Errorf("room: %w", err)
	}
	if userID == "" {
		userID = NewUserID()
	}
	user, err := NewUser(userID, username)
	if err != nil {
		return SessionIdentity{}, fmt.Errorf("user: %w", err)
	}
	if err := streamID.Validate(); err != nil {
		return SessionIdentity{}, fmt.Errorf("stream: %w", err)
	}
	return SessionIdentity{RoomID: roomID, User: *user, StreamID: streamID}, nil
}
