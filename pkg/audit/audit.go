// Package audit is the append-only record of every state-changing operation in
// the marketplace. The full bounty content lives only here; the queryable
// records keep its hash.
package audit

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

type Kind string

const (
	KindBountyCreated Kind = "bounty_created"
	KindApplied       Kind = "applied"
	KindSubmitted     Kind = "submitted"
	KindCompleted     Kind = "completed"
	KindWithdrawn     Kind = "withdrawn"
	KindRateChanged   Kind = "rate_changed"
)

// Record describes one state-changing operation. Fields that do not apply to a
// given kind are left zero.
type Record struct {
	ID          uuid.UUID         `json:"id"`
	Kind        Kind              `json:"kind"`
	Fingerprint string            `json:"fingerprint,omitempty"`
	Funder      string            `json:"funder,omitempty"`
	Applicant   string            `json:"applicant,omitempty"`
	Winner      string            `json:"winner,omitempty"`
	Amount      uint64            `json:"amount,omitempty"`
	Payouts     map[string]uint64 `json:"payouts,omitempty"`
	Content     string            `json:"content,omitempty"`
	Caller      string            `json:"caller,omitempty"`
	Rate        uint64            `json:"rate,omitempty"`
	Time        time.Time         `json:"time"`
}

// Sink accepts records after the corresponding state mutation is finalized.
// Implementations must not be given records for rolled-back operations.
type Sink interface {
	Record(ctx context.Context, r Record)
}

type LogConfig struct {
	Logger *slog.Logger
	Clock  clockwork.Clock
}

func (cfg *LogConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return nil
}

// Log keeps records in memory, in emission order, and mirrors each one to the
// structured log.
type Log struct {
	log   *slog.Logger
	clock clockwork.Clock

	mu      sync.RWMutex
	records []Record
}

var _ Sink = (*Log)(nil)

func NewLog(cfg LogConfig) (*Log, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Log{
		log:   cfg.Logger,
		clock: cfg.Clock,
	}, nil
}

func (l *Log) Record(ctx context.Context, r Record) {
	r.ID = uuid.New()
	if r.Time.IsZero() {
		r.Time = l.clock.Now().UTC()
	}

	l.mu.Lock()
	l.records = append(l.records, r)
	l.mu.Unlock()

	l.log.Info("audit: record",
		"id", r.ID,
		"kind", string(r.Kind),
		"fingerprint", r.Fingerprint,
		"funder", r.Funder,
		"applicant", r.Applicant,
		"winner", r.Winner,
		"amount", r.Amount,
		"caller", r.Caller,
		"rate", r.Rate,
	)
}

// Records returns a snapshot of all records in emission order.
func (l *Log) Records() []Record {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Record, len(l.records))
	copy(out, l.records)
	return out
}
