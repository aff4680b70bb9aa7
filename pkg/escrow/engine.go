package escrow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/jonboulle/clockwork"

	"github.com/clearlane/bounty/pkg/audit"
	"github.com/clearlane/bounty/pkg/ledger"
	"github.com/clearlane/bounty/pkg/metrics"
)

// SettlementEngine drives the terminal state transition of a bounty. States
// per bounty: open (created, not submitted) → has-submission (submitted) →
// settled. Both non-terminal states settle via Withdraw; only has-submission
// settles via Complete. Settled is terminal.
//
// Both operations run inside the global settlement guard and follow
// checks-effects-interactions: the record is flipped terminal in memory before
// the port is invoked, and a failed transfer rolls the flip back atomically.
type SettlementEngine struct {
	log          *slog.Logger
	clock        clockwork.Clock
	registry     *Registry
	applications *ApplicationLedger
	rates        *RateGovernor
	port         ledger.Port
	audit        audit.Sink
	guard        settlementGuard
}

func newSettlementEngine(log *slog.Logger, clock clockwork.Clock, registry *Registry, applications *ApplicationLedger, rates *RateGovernor, port ledger.Port, sink audit.Sink) *SettlementEngine {
	return &SettlementEngine{
		log:          log,
		clock:        clock,
		registry:     registry,
		applications: applications,
		rates:        rates,
		port:         port,
		audit:        sink,
	}
}

// Complete pays the full remaining reward to winner and marks the bounty
// accomplished. Only the funder may call it, only after a submission, and only
// for a winner who actually applied.
func (e *SettlementEngine) Complete(ctx context.Context, fp Fingerprint, caller, winner Identity) error {
	start := time.Now()
	if !e.guard.tryAcquire() {
		metrics.RecordSettlement("complete", "locked", 0)
		return ErrLocked
	}
	defer e.guard.release()

	span := sentry.StartSpan(ctx, "escrow.complete", sentry.WithDescription(fp.String()))
	defer span.Finish()

	rec, ok := e.registry.view(fp)
	switch {
	case !ok:
		return e.reject("complete", span, ErrNotFound)
	case caller != rec.Funder:
		return e.reject("complete", span, ErrNotFunder)
	case rec.Accomplished:
		return e.reject("complete", span, ErrAlreadyAccomplished)
	case !rec.Submitted:
		return e.reject("complete", span, ErrNoSubmission)
	case !e.applications.IsMember(fp, winner):
		return e.reject("complete", span, ErrWinnerNotApplicant)
	}

	amount := rec.Reward

	// Effects before interaction: the terminal flag must already be in place
	// if the port reenters the system. The guard turns such reentry into
	// ErrLocked either way.
	e.registry.finalize(fp, 0)

	if err := e.port.Payout(ctx, []ledger.Transfer{{To: string(winner), Amount: amount}}); err != nil {
		e.registry.reopen(fp, amount)
		span.Status = sentry.SpanStatusInternalError
		metrics.RecordSettlement("complete", "transfer_failed", 0)
		e.log.Error("engine: completion transfer failed, rolled back", "fingerprint", fp.String(), "winner", string(winner), "amount", amount, "error", err)
		return fmt.Errorf("failed to transfer reward to winner: %w", err)
	}

	metrics.EscrowCustody.Sub(float64(amount))
	metrics.RecordSettlement("complete", "success", time.Since(start))
	e.log.Info("engine: bounty completed", "fingerprint", fp.String(), "funder", string(caller), "winner", string(winner), "amount", amount)

	e.audit.Record(ctx, audit.Record{
		Kind:        audit.KindCompleted,
		Fingerprint: fp.String(),
		Funder:      string(caller),
		Winner:      string(winner),
		Amount:      amount,
		Time:        e.clock.Now().UTC(),
	})
	span.Status = sentry.SpanStatusOK
	return nil
}

// Withdraw returns the remaining reward to the funder and marks the bounty
// accomplished. If applicants exist and the bounty has not yet expired, each
// applicant is compensated first with reward/rate/applicants (both divisions
// floor, in that order, matching the original payout math); the remainder
// goes to the funder. All transfers of one call are a single atomic unit.
func (e *SettlementEngine) Withdraw(ctx context.Context, fp Fingerprint, caller Identity) error {
	start := time.Now()
	if !e.guard.tryAcquire() {
		metrics.RecordSettlement("withdraw", "locked", 0)
		return ErrLocked
	}
	defer e.guard.release()

	span := sentry.StartSpan(ctx, "escrow.withdraw", sentry.WithDescription(fp.String()))
	defer span.Finish()

	rec, ok := e.registry.view(fp)
	switch {
	case !ok:
		return e.reject("withdraw", span, ErrNotFound)
	case caller != rec.Funder:
		return e.reject("withdraw", span, ErrNotFunder)
	case rec.Accomplished:
		return e.reject("withdraw", span, ErrAlreadyAccomplished)
	}

	members := e.applications.Members(fp)
	remaining := rec.Reward
	transfers := make([]ledger.Transfer, 0, len(members)+1)
	var payouts map[string]uint64

	if len(members) > 0 && e.clock.Now().Before(rec.Expires) {
		// Early withdrawal: 1/rate of the reward, split evenly across current
		// applicants in insertion order. The per-applicant amount may floor to
		// zero; zero-value transfers are valid.
		per := rec.Reward / e.rates.Rate() / uint64(len(members))
		payouts = make(map[string]uint64, len(members))
		for _, applicant := range members {
			remaining -= per
			transfers = append(transfers, ledger.Transfer{To: string(applicant), Amount: per})
			payouts[string(applicant)] = per
		}
	}
	transfers = append(transfers, ledger.Transfer{To: string(rec.Funder), Amount: remaining})

	e.registry.finalize(fp, 0)

	if err := e.port.Payout(ctx, transfers); err != nil {
		e.registry.reopen(fp, rec.Reward)
		span.Status = sentry.SpanStatusInternalError
		metrics.RecordSettlement("withdraw", "transfer_failed", 0)
		e.log.Error("engine: withdrawal transfers failed, rolled back", "fingerprint", fp.String(), "funder", string(caller), "error", err)
		return fmt.Errorf("failed to pay out withdrawal: %w", err)
	}

	metrics.EscrowCustody.Sub(float64(rec.Reward))
	metrics.RecordSettlement("withdraw", "success", time.Since(start))
	e.log.Info("engine: bounty withdrawn", "fingerprint", fp.String(), "funder", string(caller), "to_funder", remaining, "compensated", len(payouts))

	e.audit.Record(ctx, audit.Record{
		Kind:        audit.KindWithdrawn,
		Fingerprint: fp.String(),
		Funder:      string(caller),
		Amount:      remaining,
		Payouts:     payouts,
		Time:        e.clock.Now().UTC(),
	})
	span.Status = sentry.SpanStatusOK
	return nil
}

func (e *SettlementEngine) reject(kind string, span *sentry.Span, err error) error {
	span.Status = sentry.SpanStatusFailedPrecondition
	metrics.RecordSettlement(kind, "rejected", 0)
	return err
}
