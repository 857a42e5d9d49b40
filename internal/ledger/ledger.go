package ledger

import (
	"sync"

	"invitegate/internal/model"
)

// InviteLedger caches the last observed use count per invite code. It is
// a lower-bound view of the remote state: BulkSync only moves counts
// forward, so a stale snapshot arriving out of order cannot regress the
// baseline that attribution diffs against. Contents are never persisted;
// a restart rebuilds them from the next full refresh.
type InviteLedger struct {
	mu   sync.RWMutex
	uses map[string]int
}

// New returns an empty ledger.
func New() *InviteLedger {
	return &InviteLedger{
		uses: make(map[string]int),
	}
}

// Get returns the last observed use count for code, 0 when unseen.
func (l *InviteLedger) Get(code string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.uses[code]
}

// Set overwrites the count for code unconditionally. Used by the
// invite-create correction path, where the fresh value is authoritative.
func (l *InviteLedger) Set(code string, uses int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.uses[code] = uses
}

// Remove drops code from the ledger after the invite was deleted
// externally. Removing an absent code is a no-op.
func (l *InviteLedger) Remove(code string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.uses, code)
}

// BulkSync merges an authoritative snapshot into the ledger. Every
// invite's count is raised to the observed value; counts never move
// backwards and entries absent from the snapshot are kept. Stale entries
// are harmless: they only inflate the baseline, which can cause a false
// unknown but never a false match.
func (l *InviteLedger) BulkSync(invites []model.Invite) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, inv := range invites {
		if cur, ok := l.uses[inv.Code]; !ok || inv.Uses > cur {
			l.uses[inv.Code] = inv.Uses
		}
	}
}

// Len returns the number of tracked invite codes.
func (l *InviteLedger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return len(l.uses)
}

// Snapshot returns a copy of the ledger contents.
func (l *InviteLedger) Snapshot() map[string]int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make(map[string]int, len(l.uses))
	for code, uses := range l.uses {
		out[code] = uses
	}
	return out
}
