package model

import "time"

// Invite is one invitation link as reported by the platform, with its
// cumulative use counter. Only Code and Uses matter for attribution; the
// rest is carried for logging and diagnostics.
type Invite struct {
	Code      string    `json:"code"`
	Uses      int       `json:"uses"`
	MaxUses   int       `json:"max_uses"`
	Temporary bool      `json:"temporary"`
	CreatedAt time.Time `json:"created_at"`
	Inviter   *User     `json:"inviter,omitempty"`
}
