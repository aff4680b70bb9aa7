// Package escrow implements the bounty lifecycle state machine and the
// settlement engine that pays out escrowed rewards. A funder posts a bounty
// keyed by the hash of its content, applicants register against it, and the
// funder settles by paying one applicant or by withdrawing the remaining
// funds, compensating current applicants on early withdrawal.
//
// All value movement goes through a ledger.Port and happens strictly after
// the state transition it pays for; a failed transfer rolls the transition
// back. Settlements are serialized by a single fail-fast guard.
package escrow

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/clearlane/bounty/pkg/audit"
	"github.com/clearlane/bounty/pkg/ledger"
)

// DefaultCompensationRate is the divisor applied to the remaining reward when
// the funder withdraws early: 1/rate of it is split across applicants.
const DefaultCompensationRate = 10

// Identity is an opaque, unforgeable caller identity. Authentication is the
// caller's problem; the core only compares identities for equality.
type Identity string

// Fingerprint is the SHA-256 hash of a bounty's content and its sole key.
type Fingerprint [sha256.Size]byte

// FingerprintOf computes the fingerprint of a bounty's textual content.
func FingerprintOf(content string) Fingerprint {
	return sha256.Sum256([]byte(content))
}

func (f Fingerprint) String() string {
	return hex.EncodeToString(f[:])
}

// ParseFingerprint decodes the hex form produced by String.
func ParseFingerprint(s string) (Fingerprint, error) {
	var f Fingerprint
	b, err := hex.DecodeString(s)
	if err != nil {
		return f, fmt.Errorf("invalid fingerprint %q: %w", s, err)
	}
	if len(b) != sha256.Size {
		return f, fmt.Errorf("invalid fingerprint %q: want %d bytes, got %d", s, sha256.Size, len(b))
	}
	copy(f[:], b)
	return f, nil
}

// Bounty is the caller-visible view of one bounty record.
type Bounty struct {
	Fingerprint  Fingerprint
	Funder       Identity
	Expires      time.Time
	Reward       uint64
	Submitted    bool
	Accomplished bool
}

type Config struct {
	Logger           *slog.Logger
	Clock            clockwork.Clock
	Port             ledger.Port
	Audit            audit.Sink
	Owner            Identity
	CompensationRate uint64
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Port == nil {
		return errors.New("value transfer port is required")
	}
	if cfg.Audit == nil {
		return errors.New("audit sink is required")
	}
	if cfg.Owner == "" {
		return errors.New("owner identity is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.CompensationRate == 0 {
		cfg.CompensationRate = DefaultCompensationRate
	}
	return nil
}

// Core wires the marketplace components together over one shared registry.
type Core struct {
	Registry     *Registry
	Applications *ApplicationLedger
	Submissions  *SubmissionTracker
	Engine       *SettlementEngine
	Rates        *RateGovernor
}

func New(cfg Config) (*Core, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	registry := newRegistry(cfg.Logger, cfg.Clock, cfg.Port, cfg.Audit)
	applications := newApplicationLedger(cfg.Logger, cfg.Clock, registry, cfg.Audit)
	submissions := newSubmissionTracker(cfg.Logger, cfg.Clock, registry, applications, cfg.Audit)
	rates := newRateGovernor(cfg.Logger, cfg.Clock, cfg.Owner, cfg.CompensationRate, cfg.Audit)
	engine := newSettlementEngine(cfg.Logger, cfg.Clock, registry, applications, rates, cfg.Port, cfg.Audit)

	return &Core{
		Registry:     registry,
		Applications: applications,
		Submissions:  submissions,
		Engine:       engine,
		Rates:        rates,
	}, nil
}
