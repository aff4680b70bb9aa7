package escrow

import (
	"context"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/clearlane/bounty/pkg/audit"
	"github.com/clearlane/bounty/pkg/metrics"
)

// SubmissionTracker records that at least one applicant has submitted a
// solution. It does not track which applicant did, only that the bounty has
// become completable.
type SubmissionTracker struct {
	log          *slog.Logger
	clock        clockwork.Clock
	registry     *Registry
	applications *ApplicationLedger
	audit        audit.Sink
}

func newSubmissionTracker(log *slog.Logger, clock clockwork.Clock, registry *Registry, applications *ApplicationLedger, sink audit.Sink) *SubmissionTracker {
	return &SubmissionTracker{
		log:          log,
		clock:        clock,
		registry:     registry,
		applications: applications,
		audit:        sink,
	}
}

// Submit marks the bounty as having a submission. Re-submission by any member
// is a no-op success. Terminal records are immutable, so submitting against an
// accomplished bounty is rejected.
func (t *SubmissionTracker) Submit(ctx context.Context, fp Fingerprint, caller Identity) error {
	rec, ok := t.registry.view(fp)
	if !ok {
		return ErrNotFound
	}
	if !t.applications.IsMember(fp, caller) {
		return ErrNotApplicant
	}

	// The terminal check happens inside markSubmitted, in the same critical
	// section as the write, so a settlement landing after the view above
	// cannot be mutated here.
	changed, err := t.registry.markSubmitted(fp)
	if err != nil {
		return err
	}
	if !changed {
		// Already submitted; idempotent.
		return nil
	}

	metrics.SubmissionsTotal.Inc()
	t.log.Info("submissions: solution submitted", "fingerprint", fp.String(), "applicant", string(caller))

	t.audit.Record(ctx, audit.Record{
		Kind:        audit.KindSubmitted,
		Fingerprint: fp.String(),
		Funder:      string(rec.Funder),
		Applicant:   string(caller),
		Time:        t.clock.Now().UTC(),
	})
	return nil
}
