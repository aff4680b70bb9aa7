package escrow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/clearlane/bounty/pkg/audit"
	"github.com/clearlane/bounty/pkg/ledger"
	"github.com/clearlane/bounty/pkg/metrics"
)

// record is the canonical per-bounty state. Only the registry touches it, and
// only through the narrow setters below; the settlement engine is the sole
// writer of reward and the terminal flag.
type record struct {
	funder       Identity
	expires      time.Time
	reward       uint64
	submitted    bool
	accomplished bool
}

// Registry owns the canonical fingerprint → bounty map. Records are never
// deleted; terminal records persist for audit.
type Registry struct {
	log   *slog.Logger
	clock clockwork.Clock
	port  ledger.Port
	audit audit.Sink

	mu       sync.RWMutex
	bounties map[Fingerprint]*record
}

func newRegistry(log *slog.Logger, clock clockwork.Clock, port ledger.Port, sink audit.Sink) *Registry {
	return &Registry{
		log:      log,
		clock:    clock,
		port:     port,
		audit:    sink,
		bounties: make(map[Fingerprint]*record),
	}
}

// Create registers a new bounty keyed by the hash of content and moves the
// deposit into escrow custody. The deposit is taken before the record becomes
// visible; if it fails, no record is created.
func (r *Registry) Create(ctx context.Context, content string, funder Identity, expires time.Time, deposit uint64) (Bounty, error) {
	fp := FingerprintOf(content)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.bounties[fp]; ok {
		return Bounty{}, ErrAlreadyExists
	}
	if deposit == 0 {
		return Bounty{}, ErrZeroDeposit
	}

	if err := r.port.Deposit(ctx, string(funder), deposit); err != nil {
		return Bounty{}, fmt.Errorf("failed to escrow deposit: %w", err)
	}

	rec := &record{
		funder:  funder,
		expires: expires,
		reward:  deposit,
	}
	r.bounties[fp] = rec

	metrics.BountiesCreatedTotal.Inc()
	metrics.EscrowCustody.Add(float64(deposit))
	r.log.Info("registry: bounty created", "fingerprint", fp.String(), "funder", string(funder), "reward", deposit, "expires", expires)

	// The full content lives only in the audit log; the record keeps its hash.
	r.audit.Record(ctx, audit.Record{
		Kind:        audit.KindBountyCreated,
		Fingerprint: fp.String(),
		Funder:      string(funder),
		Amount:      deposit,
		Content:     content,
		Time:        r.clock.Now().UTC(),
	})

	return r.snapshot(fp, rec), nil
}

// Get returns the bounty record for fp, or ErrNotFound.
func (r *Registry) Get(fp Fingerprint) (Bounty, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.bounties[fp]
	if !ok {
		return Bounty{}, ErrNotFound
	}
	return r.snapshot(fp, rec), nil
}

func (r *Registry) snapshot(fp Fingerprint, rec *record) Bounty {
	return Bounty{
		Fingerprint:  fp,
		Funder:       rec.funder,
		Expires:      rec.expires,
		Reward:       rec.reward,
		Submitted:    rec.submitted,
		Accomplished: rec.accomplished,
	}
}

// view is the internal read used by the other components.
func (r *Registry) view(fp Fingerprint) (Bounty, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.bounties[fp]
	if !ok {
		return Bounty{}, false
	}
	return r.snapshot(fp, rec), true
}

// markSubmitted flips the monotonic submitted flag. The terminal check lives
// inside the same critical section as the write: a record that settled since
// the caller last looked must stay immutable. Reports whether the call
// changed anything.
func (r *Registry) markSubmitted(fp Fingerprint) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.bounties[fp]
	if !ok {
		return false, ErrNotFound
	}
	if rec.accomplished {
		return false, ErrAlreadyAccomplished
	}
	if rec.submitted {
		return false, nil
	}
	rec.submitted = true
	return true, nil
}

// finalize marks the bounty accomplished and sets the terminal reward, which
// must equal the amount still in custody for this bounty. Only the settlement
// engine calls this, under the settlement guard.
func (r *Registry) finalize(fp Fingerprint, reward uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.bounties[fp]; ok {
		rec.accomplished = true
		rec.reward = reward
	}
}

// reopen undoes finalize after a failed transfer, restoring the pre-settlement
// reward. Only the settlement engine calls this, under the settlement guard.
func (r *Registry) reopen(fp Fingerprint, reward uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.bounties[fp]; ok {
		rec.accomplished = false
		rec.reward = reward
	}
}
