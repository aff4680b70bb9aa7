package ledger_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/clearlane/bounty/pkg/ledger"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestMemory_DepositAndPayout(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("deposit moves funds into custody", func(t *testing.T) {
		t.Parallel()

		m := ledger.NewMemory(testLogger())
		m.Credit("alice", 1000)

		require.NoError(t, m.Deposit(ctx, "alice", 600))
		require.Equal(t, uint64(400), m.Balance("alice"))
		require.Equal(t, uint64(600), m.Custody())
	})

	t.Run("deposit fails on insufficient funds", func(t *testing.T) {
		t.Parallel()

		m := ledger.NewMemory(testLogger())
		m.Credit("alice", 100)

		err := m.Deposit(ctx, "alice", 101)
		require.ErrorIs(t, err, ledger.ErrInsufficientFunds)
		require.Equal(t, uint64(100), m.Balance("alice"))
		require.Equal(t, uint64(0), m.Custody())
	})

	t.Run("payout distributes custody to accounts", func(t *testing.T) {
		t.Parallel()

		m := ledger.NewMemory(testLogger())
		m.Credit("alice", 1000)
		require.NoError(t, m.Deposit(ctx, "alice", 1000))

		require.NoError(t, m.Payout(ctx, []ledger.Transfer{
			{To: "bob", Amount: 300},
			{To: "carol", Amount: 700},
		}))
		require.Equal(t, uint64(300), m.Balance("bob"))
		require.Equal(t, uint64(700), m.Balance("carol"))
		require.Equal(t, uint64(0), m.Custody())
	})

	t.Run("zero-amount transfers are valid", func(t *testing.T) {
		t.Parallel()

		m := ledger.NewMemory(testLogger())
		m.Credit("alice", 10)
		require.NoError(t, m.Deposit(ctx, "alice", 10))

		require.NoError(t, m.Payout(ctx, []ledger.Transfer{
			{To: "bob", Amount: 0},
			{To: "alice", Amount: 10},
		}))
		require.Equal(t, uint64(0), m.Balance("bob"))
		require.Equal(t, uint64(10), m.Balance("alice"))
	})

	t.Run("overdrawn batch applies nothing", func(t *testing.T) {
		t.Parallel()

		m := ledger.NewMemory(testLogger())
		m.Credit("alice", 500)
		require.NoError(t, m.Deposit(ctx, "alice", 500))

		err := m.Payout(ctx, []ledger.Transfer{
			{To: "bob", Amount: 400},
			{To: "carol", Amount: 200},
		})
		require.ErrorIs(t, err, ledger.ErrInsufficientCustody)
		require.Equal(t, uint64(0), m.Balance("bob"))
		require.Equal(t, uint64(0), m.Balance("carol"))
		require.Equal(t, uint64(500), m.Custody())
	})

	t.Run("value is conserved across operations", func(t *testing.T) {
		t.Parallel()

		m := ledger.NewMemory(testLogger())
		m.Credit("alice", 800)
		m.Credit("bob", 200)

		require.NoError(t, m.Deposit(ctx, "alice", 500))
		require.NoError(t, m.Payout(ctx, []ledger.Transfer{
			{To: "bob", Amount: 123},
			{To: "carol", Amount: 77},
		}))

		total := m.Balance("alice") + m.Balance("bob") + m.Balance("carol") + m.Custody()
		require.Equal(t, uint64(1000), total)
	})
}
