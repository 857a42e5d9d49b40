package model

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrUnknownEventType = errors.New("unknown event type")
	ErrInvalidEvent     = errors.New("invalid event")
)

// EventType enumerates the membership and invite notifications the
// service reacts to.
type EventType string

const (
	EventMemberJoin   EventType = "member_join"
	EventMemberLeave  EventType = "member_leave"
	EventInviteCreate EventType = "invite_create"
	EventInviteDelete EventType = "invite_delete"
)

// Event is the normalized notification every source adapter produces.
// User is set for member events, Invite for invite events.
type Event struct {
	Type    EventType `json:"type"`
	GuildID string    `json:"guild_id"`
	User    *User     `json:"user,omitempty"`
	Invite  *Invite   `json:"invite,omitempty"`
}

// ParseEvent decodes and validates a wire-format event as published to
// the broker channels.
func ParseEvent(data []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, fmt.Errorf("decoding event: %w", err)
	}
	if err := ev.Validate(); err != nil {
		return Event{}, err
	}
	return ev, nil
}

// Validate checks that the event carries the fields its type requires.
func (e Event) Validate() error {
	switch e.Type {
	case EventMemberJoin, EventMemberLeave:
		if e.User == nil || e.User.ID == "" {
			return fmt.Errorf("%w: %s without user", ErrInvalidEvent, e.Type)
		}
	case EventInviteCreate, EventInviteDelete:
		if e.Invite == nil || e.Invite.Code == "" {
			return fmt.Errorf("%w: %s without invite code", ErrInvalidEvent, e.Type)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEventType, e.Type)
	}
	if e.GuildID == "" {
		return fmt.Errorf("%w: missing guild id", ErrInvalidEvent)
	}
	return nil
}
