package escrow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/clearlane/bounty/pkg/audit"
	"github.com/clearlane/bounty/pkg/metrics"
)

type applicationKey struct {
	fp        Fingerprint
	applicant Identity
}

// ApplicationLedger owns, per bounty, the ordered list of applicants plus a
// membership index. Insertion order is preserved so compensation payouts
// iterate deterministically.
type ApplicationLedger struct {
	log      *slog.Logger
	clock    clockwork.Clock
	registry *Registry
	audit    audit.Sink

	mu      sync.RWMutex
	order   map[Fingerprint][]Identity
	members map[applicationKey]struct{}
}

func newApplicationLedger(log *slog.Logger, clock clockwork.Clock, registry *Registry, sink audit.Sink) *ApplicationLedger {
	return &ApplicationLedger{
		log:      log,
		clock:    clock,
		registry: registry,
		audit:    sink,
		order:    make(map[Fingerprint][]Identity),
		members:  make(map[applicationKey]struct{}),
	}
}

// Apply registers applicant against the bounty. The expected terms must match
// the stored record exactly; this protects applicants acting on terms they
// learned out of band from a record that changed since.
func (l *ApplicationLedger) Apply(ctx context.Context, fp Fingerprint, applicant Identity, expectedExpires time.Time, expectedReward uint64) error {
	rec, ok := l.registry.view(fp)
	if !ok {
		return ErrNotFound
	}
	if !l.clock.Now().Before(rec.Expires) {
		return ErrExpired
	}
	if !expectedExpires.Equal(rec.Expires) || expectedReward != rec.Reward {
		return ErrStaleTerms
	}
	if applicant == rec.Funder {
		return ErrSelfApplication
	}

	l.mu.Lock()
	key := applicationKey{fp: fp, applicant: applicant}
	if _, applied := l.members[key]; applied {
		l.mu.Unlock()
		return ErrAlreadyApplied
	}
	l.members[key] = struct{}{}
	l.order[fp] = append(l.order[fp], applicant)
	l.mu.Unlock()

	metrics.ApplicationsTotal.Inc()
	l.log.Info("applications: applicant registered", "fingerprint", fp.String(), "applicant", string(applicant))

	l.audit.Record(ctx, audit.Record{
		Kind:        audit.KindApplied,
		Fingerprint: fp.String(),
		Funder:      string(rec.Funder),
		Applicant:   string(applicant),
		Time:        l.clock.Now().UTC(),
	})
	return nil
}

// IsMember reports whether applicant has applied to the bounty.
func (l *ApplicationLedger) IsMember(fp Fingerprint, applicant Identity) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.members[applicationKey{fp: fp, applicant: applicant}]
	return ok
}

// Members returns the current applicants in insertion order. The returned
// slice is a snapshot; later applications do not affect it.
func (l *ApplicationLedger) Members(fp Fingerprint) []Identity {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Identity, len(l.order[fp]))
	copy(out, l.order[fp])
	return out
}
