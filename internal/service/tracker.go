package service

import (
	"context"

	"go.uber.org/zap"

	"invitegate/internal/model"
	"invitegate/internal/pkg/logger"
	"invitegate/internal/pkg/webhook"
)

// Notifier delivers one membership event and classifies the result.
type Notifier interface {
	Notify(ctx context.Context, event model.MembershipEvent) (webhook.Outcome, error)
}

// Tracker handles the live membership stream: joins run an attribution
// pass first, then joins and leaves are both reported to the external
// endpoint. Every delivery outcome is terminal; failures are logged and
// dropped, never queued.
type Tracker struct {
	attributor *Attributor
	notifier   Notifier
	logger     *logger.Logger
}

// NewTracker wires the attribution pass to the notifier.
func NewTracker(attributor *Attributor, notifier Notifier, log *logger.Logger) *Tracker {
	return &Tracker{
		attributor: attributor,
		notifier:   notifier,
		logger:     log,
	}
}

// HandleMemberJoin attributes a join and reports it. Unknown attribution
// is an expected outcome (vanity links, missing list permission) and is
// forwarded as a null invite code.
func (t *Tracker) HandleMemberJoin(ctx context.Context, ev model.Event) {
	if ev.User == nil {
		return
	}
	log := t.logger.WithContext(ctx)

	result := t.attributor.Attribute(ctx)

	event := model.MembershipEvent{
		Event:    model.EventMemberJoin,
		UserID:   ev.User.ID,
		Username: ev.User.Username,
		GuildID:  ev.GuildID,
	}
	if result.Matched {
		event.InviteCode = &result.Code
		log.Info("member join attributed",
			zap.String("user_id", ev.User.ID),
			zap.String("username", ev.User.Username),
			zap.String("invite_code", result.Code),
		)
	} else {
		log.Info("member join with unknown invite",
			zap.String("user_id", ev.User.ID),
			zap.String("username", ev.User.Username),
		)
	}

	t.deliver(ctx, event)
}

// HandleMemberLeave reports a leave. No attribution pass is involved.
func (t *Tracker) HandleMemberLeave(ctx context.Context, ev model.Event) {
	if ev.User == nil {
		return
	}
	t.logger.WithContext(ctx).Info("member left",
		zap.String("user_id", ev.User.ID),
		zap.String("username", ev.User.Username),
	)

	t.deliver(ctx, model.MembershipEvent{
		Event:    model.EventMemberLeave,
		UserID:   ev.User.ID,
		Username: ev.User.Username,
		GuildID:  ev.GuildID,
	})
}

func (t *Tracker) deliver(ctx context.Context, event model.MembershipEvent) {
	outcome, err := t.notifier.Notify(ctx, event)

	log := t.logger.WithContext(ctx)
	if outcome == webhook.OutcomeDelivered {
		log.Info("membership event delivered",
			zap.String("event", string(event.Event)),
			zap.String("user_id", event.UserID),
		)
		return
	}

	log.Warn("membership event not delivered",
		zap.String("event", string(event.Event)),
		zap.String("user_id", event.UserID),
		zap.String("outcome", string(outcome)),
		zap.Error(err),
	)
}
