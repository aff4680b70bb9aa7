package escrow

import (
	"context"
	"log/slog"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/clearlane/bounty/pkg/audit"
)

// RateGovernor holds the single process-wide compensation rate: on early
// withdrawal, 1/rate of the remaining reward is split across applicants.
// Changes take effect for all subsequent withdrawals immediately; settled
// bounties are unaffected.
type RateGovernor struct {
	log   *slog.Logger
	clock clockwork.Clock
	owner Identity
	audit audit.Sink

	mu   sync.RWMutex
	rate uint64
}

func newRateGovernor(log *slog.Logger, clock clockwork.Clock, owner Identity, initial uint64, sink audit.Sink) *RateGovernor {
	return &RateGovernor{
		log:   log,
		clock: clock,
		owner: owner,
		audit: sink,
		rate:  initial,
	}
}

// Rate returns the current compensation rate.
func (g *RateGovernor) Rate() uint64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.rate
}

// Owner returns the identity allowed to change the rate.
func (g *RateGovernor) Owner() Identity {
	return g.owner
}

// SetRate replaces the compensation rate. Only the designated owner may call
// it, and the rate must be positive.
func (g *RateGovernor) SetRate(ctx context.Context, caller Identity, newRate uint64) error {
	if caller != g.owner {
		return ErrNotOwner
	}
	if newRate == 0 {
		return ErrInvalidRate
	}

	g.mu.Lock()
	old := g.rate
	g.rate = newRate
	g.mu.Unlock()

	g.log.Info("rates: compensation rate changed", "old", old, "new", newRate, "caller", string(caller))
	g.audit.Record(ctx, audit.Record{
		Kind:   audit.KindRateChanged,
		Caller: string(caller),
		Rate:   newRate,
		Time:   g.clock.Now().UTC(),
	})
	return nil
}
