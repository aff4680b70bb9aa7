// Package ledger provides the value-transfer boundary between the escrow core
// and the account system that actually holds funds. The core only ever sees
// the Port interface; the in-memory implementation here backs the service in
// dev and tests.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

var (
	// ErrInsufficientFunds is returned when an account cannot cover a deposit.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrInsufficientCustody is returned when a payout exceeds escrow custody.
	ErrInsufficientCustody = errors.New("payout exceeds escrow custody")
)

// Transfer is one payout leg: Amount moves from escrow custody to To.
// Zero-amount transfers are valid and apply as no-ops.
type Transfer struct {
	To     string
	Amount uint64
}

// Port moves value between caller accounts and escrow custody. Payout is
// all-or-nothing: either every transfer in the batch applies or none does.
type Port interface {
	Deposit(ctx context.Context, from string, amount uint64) error
	Payout(ctx context.Context, transfers []Transfer) error
}

// Memory is an in-memory account ledger with a single escrow custody pool.
type Memory struct {
	log *slog.Logger

	mu       sync.Mutex
	balances map[string]uint64
	custody  uint64
}

var _ Port = (*Memory)(nil)

func NewMemory(log *slog.Logger) *Memory {
	return &Memory{
		log:      log,
		balances: make(map[string]uint64),
	}
}

// Credit adds funds to an account. Used by tests and the dev faucet.
func (m *Memory) Credit(id string, amount uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[id] += amount
}

// Balance returns the spendable balance of an account.
func (m *Memory) Balance(id string) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[id]
}

// Custody returns the total amount currently held in escrow.
func (m *Memory) Custody() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.custody
}

func (m *Memory) Deposit(ctx context.Context, from string, amount uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.balances[from] < amount {
		return fmt.Errorf("account %s holds %d, needs %d: %w", from, m.balances[from], amount, ErrInsufficientFunds)
	}
	m.balances[from] -= amount
	m.custody += amount
	m.log.Debug("ledger: deposit", "from", from, "amount", amount, "custody", m.custody)
	return nil
}

func (m *Memory) Payout(ctx context.Context, transfers []Transfer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Validate the whole batch before touching any balance.
	var total uint64
	for _, t := range transfers {
		total += t.Amount
	}
	if total > m.custody {
		return fmt.Errorf("batch of %d exceeds custody %d: %w", total, m.custody, ErrInsufficientCustody)
	}

	for _, t := range transfers {
		m.custody -= t.Amount
		m.balances[t.To] += t.Amount
	}
	m.log.Debug("ledger: payout", "transfers", len(transfers), "total", total, "custody", m.custody)
	return nil
}
