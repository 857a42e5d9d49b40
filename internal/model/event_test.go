package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEvent(t *testing.T) {
	t.Run("member join", func(t *testing.T) {
		data := `{"type":"member_join","guild_id":"42","user":{"id":"100","username":"alice"}}`

		ev, err := ParseEvent([]byte(data))
		require.NoError(t, err)
		assert.Equal(t, EventMemberJoin, ev.Type)
		assert.Equal(t, "42", ev.GuildID)
		require.NotNil(t, ev.User)
		assert.Equal(t, "100", ev.User.ID)
		assert.Equal(t, "alice", ev.User.Username)
		assert.Nil(t, ev.Invite)
	})

	t.Run("invite create", func(t *testing.T) {
		data := `{"type":"invite_create","guild_id":"42","invite":{"code":"abc123","uses":0,"max_uses":5,"temporary":true}}`

		ev, err := ParseEvent([]byte(data))
		require.NoError(t, err)
		assert.Equal(t, EventInviteCreate, ev.Type)
		require.NotNil(t, ev.Invite)
		assert.Equal(t, "abc123", ev.Invite.Code)
		assert.Equal(t, 0, ev.Invite.Uses)
		assert.Equal(t, 5, ev.Invite.MaxUses)
		assert.True(t, ev.Invite.Temporary)
	})

	t.Run("invite delete", func(t *testing.T) {
		data := `{"type":"invite_delete","guild_id":"42","invite":{"code":"abc123"}}`

		ev, err := ParseEvent([]byte(data))
		require.NoError(t, err)
		assert.Equal(t, EventInviteDelete, ev.Type)
	})

	t.Run("member leave", func(t *testing.T) {
		data := `{"type":"member_leave","guild_id":"42","user":{"id":"100","username":"alice"}}`

		ev, err := ParseEvent([]byte(data))
		require.NoError(t, err)
		assert.Equal(t, EventMemberLeave, ev.Type)
	})
}

func TestParseEvent_Rejects(t *testing.T) {
	tests := []struct {
		name string
		data string
		want error
	}{
		{"garbage", `{{{`, nil},
		{"unknown type", `{"type":"member_promoted","guild_id":"42","user":{"id":"1"}}`, ErrUnknownEventType},
		{"empty type", `{"guild_id":"42","user":{"id":"1"}}`, ErrUnknownEventType},
		{"member without user", `{"type":"member_join","guild_id":"42"}`, ErrInvalidEvent},
		{"member with blank user id", `{"type":"member_join","guild_id":"42","user":{"username":"x"}}`, ErrInvalidEvent},
		{"invite without code", `{"type":"invite_create","guild_id":"42","invite":{"uses":1}}`, ErrInvalidEvent},
		{"missing guild", `{"type":"member_join","user":{"id":"1","username":"a"}}`, ErrInvalidEvent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseEvent([]byte(tt.data))
			require.Error(t, err)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}
}

func TestMembershipEvent_InviteCodeSerialization(t *testing.T) {
	t.Run("attributed", func(t *testing.T) {
		code := "abc123"
		ev := MembershipEvent{
			Event:      EventMemberJoin,
			UserID:     "100",
			Username:   "alice",
			InviteCode: &code,
			GuildID:    "42",
		}

		data, err := json.Marshal(ev)
		require.NoError(t, err)
		assert.JSONEq(t, `{
			"event": "member_join",
			"user_id": "100",
			"username": "alice",
			"invite_code": "abc123",
			"guild_id": "42"
		}`, string(data))
	})

	t.Run("unattributed is null, not absent", func(t *testing.T) {
		ev := MembershipEvent{
			Event:    EventMemberLeave,
			UserID:   "100",
			Username: "alice",
			GuildID:  "42",
		}

		data, err := json.Marshal(ev)
		require.NoError(t, err)

		var raw map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(data, &raw))
		got, ok := raw["invite_code"]
		require.True(t, ok)
		assert.Equal(t, "null", string(got))
	})
}
