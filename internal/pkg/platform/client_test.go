package platform

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListInvites(t *testing.T) {
	t.Run("parses the invite snapshot", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/guilds/42/invites", r.URL.Path)
			assert.Equal(t, "Bot token-xyz", r.Header.Get("Authorization"))

			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`[
				{"code":"aaa111","uses":3,"max_uses":0,"inviter":{"id":"1","username":"alice"}},
				{"code":"bbb222","uses":0,"max_uses":5}
			]`))
		}))
		defer srv.Close()

		c := NewClient(srv.URL, "token-xyz")
		invites, err := c.ListInvites(context.Background(), "42")

		require.NoError(t, err)
		require.Len(t, invites, 2)
		assert.Equal(t, "aaa111", invites[0].Code)
		assert.Equal(t, 3, invites[0].Uses)
		assert.Equal(t, "alice", invites[0].Inviter.Username)
		assert.Equal(t, "bbb222", invites[1].Code)
		assert.Equal(t, 0, invites[1].Uses)
	})

	t.Run("maps 403 to ErrMissingPermission", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte(`{"message":"Missing Access","code":50001}`))
		}))
		defer srv.Close()

		c := NewClient(srv.URL, "token-xyz")
		invites, err := c.ListInvites(context.Background(), "42")

		assert.Nil(t, invites)
		assert.ErrorIs(t, err, ErrMissingPermission)
	})

	t.Run("surfaces other status codes", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte("upstream unavailable"))
		}))
		defer srv.Close()

		c := NewClient(srv.URL, "token-xyz")
		_, err := c.ListInvites(context.Background(), "42")

		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrMissingPermission)
		assert.Contains(t, err.Error(), "502")
	})

	t.Run("transport failure", func(t *testing.T) {
		c := NewClient("http://127.0.0.1:1", "token-xyz")
		_, err := c.ListInvites(context.Background(), "42")

		assert.Error(t, err)
	})
}

func TestGetGuildPreview(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/guilds/42/preview", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"42","name":"gophers","approximate_member_count":1204,"approximate_presence_count":87}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "token-xyz")
	preview, err := c.GetGuildPreview(context.Background(), "42")

	require.NoError(t, err)
	assert.Equal(t, "gophers", preview.Name)
	assert.Equal(t, 1204, preview.ApproximateMemberCount)
}

func TestClient_TrimsTrailingSlash(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/guilds/42/invites", r.URL.Path)
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "token-xyz")
	invites, err := c.ListInvites(context.Background(), "42")

	require.NoError(t, err)
	assert.Empty(t, invites)
}
