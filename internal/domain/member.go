package domain

// Member represents user's participation meta for a room.
// No transport or lifecycle logic here.
type Member struct {
	User   *User
	Notify bool
}

// NewMember avoids raw literals in adapters and keeps construction obvious.
func NewMember(user *User, cfg RoomConfig) *Member {
	return &Member{User: user, Notify: cfg.UserStatusNotify}
}
