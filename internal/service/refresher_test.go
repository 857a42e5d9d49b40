package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invitegate/internal/ledger"
	"invitegate/internal/model"
	"invitegate/internal/pkg/logger"
	"invitegate/internal/pkg/platform"
)

func TestRefresh_SyncsLedger(t *testing.T) {
	l := ledger.New()
	lister := &stubLister{snapshot: []model.Invite{
		{Code: "aaa", Uses: 3},
		{Code: "bbb", Uses: 0},
	}}
	r := NewRefresher(l, lister, "42", time.Minute, logger.NewNop())

	err := r.Refresh(context.Background())

	require.NoError(t, err)
	assert.Equal(t, map[string]int{"aaa": 3, "bbb": 0}, l.Snapshot())
}

func TestRefresh_FailureKeepsPriorContents(t *testing.T) {
	l := ledger.New()
	l.Set("aaa", 7)

	lister := &stubLister{err: platform.ErrMissingPermission}
	r := NewRefresher(l, lister, "42", time.Minute, logger.NewNop())

	err := r.Refresh(context.Background())

	assert.ErrorIs(t, err, platform.ErrMissingPermission)
	assert.Equal(t, map[string]int{"aaa": 7}, l.Snapshot(), "failed refresh must not wipe the ledger")
}

func TestRun_SeedsThenTicks(t *testing.T) {
	l := ledger.New()
	lister := &stubLister{snapshot: []model.Invite{{Code: "aaa", Uses: 1}}}
	r := NewRefresher(l, lister, "42", 20*time.Millisecond, logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- r.Run(ctx)
	}()

	require.Eventually(t, func() bool {
		return lister.Calls() >= 3
	}, 2*time.Second, 5*time.Millisecond, "expected a seed refresh plus periodic ticks")

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after context cancellation")
	}

	assert.Equal(t, 1, l.Get("aaa"))
}

func TestRun_KeepsTickingAfterFailure(t *testing.T) {
	l := ledger.New()
	lister := &stubLister{err: platform.ErrMissingPermission}
	r := NewRefresher(l, lister, "42", 10*time.Millisecond, logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		_ = r.Run(ctx)
	}()

	require.Eventually(t, func() bool {
		return lister.Calls() >= 3
	}, 2*time.Second, 5*time.Millisecond, "failures must not stop the refresh loop")
}

func TestHandleInviteCreate(t *testing.T) {
	l := ledger.New()
	r := NewRefresher(l, &stubLister{}, "42", time.Minute, logger.NewNop())

	r.HandleInviteCreate(context.Background(), model.Event{
		Type:    model.EventInviteCreate,
		GuildID: "42",
		Invite:  &model.Invite{Code: "fresh", Uses: 0},
	})

	assert.Equal(t, 0, l.Get("fresh"))
	assert.Equal(t, 1, l.Len())

	// The event value is authoritative: an overwrite, not a merge.
	l.Set("fresh", 5)
	r.HandleInviteCreate(context.Background(), model.Event{
		Type:    model.EventInviteCreate,
		GuildID: "42",
		Invite:  &model.Invite{Code: "fresh", Uses: 0},
	})
	assert.Equal(t, 0, l.Get("fresh"))
}

func TestHandleInviteDelete(t *testing.T) {
	l := ledger.New()
	l.Set("gone", 4)
	r := NewRefresher(l, &stubLister{}, "42", time.Minute, logger.NewNop())

	r.HandleInviteDelete(context.Background(), model.Event{
		Type:    model.EventInviteDelete,
		GuildID: "42",
		Invite:  &model.Invite{Code: "gone"},
	})

	assert.Equal(t, 0, l.Len())

	// Events without an invite payload are ignored.
	r.HandleInviteDelete(context.Background(), model.Event{Type: model.EventInviteDelete, GuildID: "42"})
}
