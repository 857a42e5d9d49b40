package model

// MembershipEvent is the payload delivered to the external webhook for
// every join and leave. InviteCode is nil when attribution failed, which
// serializes as JSON null.
type MembershipEvent struct {
	Event      EventType `json:"event"`
	UserID     string    `json:"user_id"`
	Username   string    `json:"username"`
	InviteCode *string   `json:"invite_code"`
	GuildID    string    `json:"guild_id"`
}
