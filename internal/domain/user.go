// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

const (
	MaxUserIDLen   = 64
	MaxUsernameLen = 256
)

var (
	ErrUserIDTooLong   = errors.New("user id too long")
	ErrUserIDEmpty     = errors.New("user id empty")
	ErrUsernameTooLong = errors.New("username too long")
)

type UserID string

type User struct {
	ID       UserID `json:"id"`
	Username string `json:"username"`
}

// NewUserID generates a fresh "user_xxxxxxxx" identifier.
func NewUserID() UserID {
	return UserID("user_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

// NewUser validates the id and falls back to the id when username is empty.
func NewUser(id UserID, username string) (*User, error) {
	if len(id) == 0 {
		return nil, ErrUserIDEmpty
	}
	if len(id) > MaxUserIDLen {
		return nil, ErrUserIDTooLong
	}
	if username == "" {
		username = string(id)
	}
	if len(username) > MaxUsernameLen {
		return nil, ErrUsernameTooLong
	}
	return &User{ID: id, Username: username}, nil
}
