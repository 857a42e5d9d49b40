package service

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"invitegate/internal/ledger"
	"invitegate/internal/model"
	"invitegate/internal/pkg/logger"
)

// InviteLister fetches the authoritative invite snapshot for a guild.
type InviteLister interface {
	ListInvites(ctx context.Context, guildID string) ([]model.Invite, error)
}

// AttributionResult reports which invite a join was pinned to, if any.
// Unmatched is an expected outcome, not an error.
type AttributionResult struct {
	Matched bool
	Code    string
}

// Attributor decides which invite a joining member used by diffing a
// fresh snapshot of invite use counts against the ledger baseline. The
// heuristic is best effort: two joins between snapshots, or one snapshot
// reflecting several joins, can pin only the first unclaimed count
// delta.
type Attributor struct {
	ledger  *ledger.InviteLedger
	invites InviteLister
	guildID string
	logger  *logger.Logger

	// mu serializes attribution passes so two concurrent joins cannot
	// both claim the same count delta.
	mu sync.Mutex
}

// NewAttributor creates an attributor for one guild.
func NewAttributor(l *ledger.InviteLedger, invites InviteLister, guildID string, log *logger.Logger) *Attributor {
	return &Attributor{
		ledger:  l,
		invites: invites,
		guildID: guildID,
		logger:  log,
	}
}

// Attribute fetches a fresh snapshot and scans it in source order for
// the first invite whose use count strictly exceeds the ledger baseline;
// a code the ledger has never seen counts from baseline 0, so a new
// invite matches only once it shows at least one use. Whether or not
// something matched, the snapshot is then folded into the ledger so the
// next pass starts from an accurate baseline.
//
// When the snapshot cannot be fetched (typically a missing permission),
// attribution degrades to unmatched and the ledger is left as it was.
func (a *Attributor) Attribute(ctx context.Context) AttributionResult {
	a.mu.Lock()
	defer a.mu.Unlock()

	snapshot, err := a.invites.ListInvites(ctx, a.guildID)
	if err != nil {
		a.logger.WithContext(ctx).Warn("invite snapshot unavailable, attribution degraded",
			zap.Error(err),
		)
		return AttributionResult{}
	}

	var result AttributionResult
	for _, inv := range snapshot {
		if inv.Uses > a.ledger.Get(inv.Code) {
			result = AttributionResult{Matched: true, Code: inv.Code}
			break
		}
	}

	a.ledger.BulkSync(snapshot)

	return result
}
