package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"invitegate/internal/ledger"
	"invitegate/internal/model"
	"invitegate/internal/pkg/logger"
)

// DefaultRefreshInterval is the drift-correction backstop between full
// invite list refreshes.
const DefaultRefreshInterval = 5 * time.Minute

// Refresher keeps the ledger synchronized with the authoritative invite
// list: one seed refresh at startup, a fixed-interval timer, an
// authenticated on-demand trigger, and O(1) corrections driven by
// invite create/delete events.
type Refresher struct {
	ledger   *ledger.InviteLedger
	invites  InviteLister
	guildID  string
	interval time.Duration
	logger   *logger.Logger
}

// NewRefresher creates a refresher ticking at the given interval.
func NewRefresher(l *ledger.InviteLedger, invites InviteLister, guildID string, interval time.Duration, log *logger.Logger) *Refresher {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	return &Refresher{
		ledger:   l,
		invites:  invites,
		guildID:  guildID,
		interval: interval,
		logger:   log,
	}
}

// Refresh fetches the full invite list and folds it into the ledger.
// On failure the prior ledger contents stay intact and the error is
// returned for the caller to report; the process never crashes over a
// failed refresh.
func (r *Refresher) Refresh(ctx context.Context) error {
	invites, err := r.invites.ListInvites(ctx, r.guildID)
	if err != nil {
		return fmt.Errorf("refreshing invite ledger: %w", err)
	}

	r.ledger.BulkSync(invites)

	r.logger.WithContext(ctx).Debug("invite ledger refreshed",
		zap.Int("snapshot", len(invites)),
		zap.Int("tracked", r.ledger.Len()),
	)
	return nil
}

// Run seeds the ledger, then refreshes on the fixed interval until the
// context ends. Failures are logged and the loop keeps going with a
// possibly stale ledger, degrading attribution accuracy instead of
// availability.
func (r *Refresher) Run(ctx context.Context) error {
	if err := r.Refresh(ctx); err != nil {
		r.logger.Warn("seed refresh failed, starting with an empty ledger", zap.Error(err))
	} else {
		r.logger.Info("invite ledger seeded", zap.Int("tracked", r.ledger.Len()))
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := r.Refresh(ctx); err != nil {
				r.logger.Warn("periodic refresh failed", zap.Error(err))
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// HandleInviteCreate records a newly created invite without a full
// refresh. The event carries the authoritative fresh count, so this is
// an overwrite rather than a merge.
func (r *Refresher) HandleInviteCreate(ctx context.Context, ev model.Event) {
	if ev.Invite == nil {
		return
	}

	r.ledger.Set(ev.Invite.Code, ev.Invite.Uses)

	r.logger.WithContext(ctx).Info("invite created",
		zap.String("code", ev.Invite.Code),
		zap.Int("uses", ev.Invite.Uses),
	)
}

// HandleInviteDelete drops an externally deleted invite from the ledger.
func (r *Refresher) HandleInviteDelete(ctx context.Context, ev model.Event) {
	if ev.Invite == nil {
		return
	}

	r.ledger.Remove(ev.Invite.Code)

	r.logger.WithContext(ctx).Info("invite deleted",
		zap.String("code", ev.Invite.Code),
	)
}
