package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invitegate/internal/ledger"
	"invitegate/internal/model"
	"invitegate/internal/pkg/logger"
	"invitegate/internal/pkg/webhook"
)

// stubNotifier records every event it is asked to deliver.
type stubNotifier struct {
	mu      sync.Mutex
	events  []model.MembershipEvent
	outcome webhook.Outcome
	err     error
}

func (s *stubNotifier) Notify(ctx context.Context, event model.MembershipEvent) (webhook.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, event)
	if s.outcome == "" {
		return webhook.OutcomeDelivered, nil
	}
	return s.outcome, s.err
}

func (s *stubNotifier) Events() []model.MembershipEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.MembershipEvent(nil), s.events...)
}

func newTestTracker(lister InviteLister, notifier Notifier) (*Tracker, *ledger.InviteLedger) {
	l := ledger.New()
	a := NewAttributor(l, lister, "42", logger.NewNop())
	return NewTracker(a, notifier, logger.NewNop()), l
}

func joinEvent() model.Event {
	return model.Event{
		Type:    model.EventMemberJoin,
		GuildID: "42",
		User:    &model.User{ID: "100", Username: "alice"},
	}
}

func TestHandleMemberJoin_Attributed(t *testing.T) {
	notifier := &stubNotifier{}
	tracker, l := newTestTracker(&stubLister{snapshot: []model.Invite{{Code: "aaa", Uses: 1}}}, notifier)

	tracker.HandleMemberJoin(context.Background(), joinEvent())

	events := notifier.Events()
	require.Len(t, events, 1)
	assert.Equal(t, model.EventMemberJoin, events[0].Event)
	assert.Equal(t, "100", events[0].UserID)
	assert.Equal(t, "alice", events[0].Username)
	assert.Equal(t, "42", events[0].GuildID)
	require.NotNil(t, events[0].InviteCode)
	assert.Equal(t, "aaa", *events[0].InviteCode)
	assert.Equal(t, 1, l.Get("aaa"))
}

func TestHandleMemberJoin_UnknownAttribution(t *testing.T) {
	notifier := &stubNotifier{}
	tracker, _ := newTestTracker(&stubLister{err: assert.AnError}, notifier)

	tracker.HandleMemberJoin(context.Background(), joinEvent())

	// The join is still reported, with an explicit null invite code.
	events := notifier.Events()
	require.Len(t, events, 1)
	assert.Nil(t, events[0].InviteCode)
}

func TestHandleMemberJoin_IgnoresMissingUser(t *testing.T) {
	notifier := &stubNotifier{}
	lister := &stubLister{}
	tracker, _ := newTestTracker(lister, notifier)

	tracker.HandleMemberJoin(context.Background(), model.Event{Type: model.EventMemberJoin, GuildID: "42"})

	assert.Empty(t, notifier.Events())
	assert.Zero(t, lister.Calls())
}

func TestHandleMemberLeave(t *testing.T) {
	notifier := &stubNotifier{}
	lister := &stubLister{snapshot: []model.Invite{{Code: "aaa", Uses: 9}}}
	tracker, _ := newTestTracker(lister, notifier)

	tracker.HandleMemberLeave(context.Background(), model.Event{
		Type:    model.EventMemberLeave,
		GuildID: "42",
		User:    &model.User{ID: "100", Username: "alice"},
	})

	events := notifier.Events()
	require.Len(t, events, 1)
	assert.Equal(t, model.EventMemberLeave, events[0].Event)
	assert.Nil(t, events[0].InviteCode)
	assert.Zero(t, lister.Calls(), "leaves must not trigger an attribution pass")
}

func TestHandleMemberJoin_DeliveryFailureIsContained(t *testing.T) {
	notifier := &stubNotifier{outcome: webhook.OutcomeRemoteRejected, err: assert.AnError}
	tracker, _ := newTestTracker(&stubLister{snapshot: []model.Invite{{Code: "aaa", Uses: 1}}}, notifier)

	// A rejected delivery is logged and dropped; the handler must return
	// normally so the worker can take the next event.
	tracker.HandleMemberJoin(context.Background(), joinEvent())

	require.Len(t, notifier.Events(), 1)
}
