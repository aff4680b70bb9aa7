package escrow_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/clearlane/bounty/pkg/audit"
	"github.com/clearlane/bounty/pkg/escrow"
	"github.com/clearlane/bounty/pkg/ledger"
)

func TestRegistry_Create(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("creates a bounty and escrows the deposit", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, 0)
		f.accounts.Credit(string(funder), 1000)
		expires := f.clock.Now().Add(time.Hour)

		b, err := f.core.Registry.Create(ctx, "write the parser", funder, expires, 1000)
		require.NoError(t, err)
		require.Equal(t, escrow.FingerprintOf("write the parser"), b.Fingerprint)
		require.Equal(t, funder, b.Funder)
		require.Equal(t, uint64(1000), b.Reward)
		require.False(t, b.Submitted)
		require.False(t, b.Accomplished)

		require.Equal(t, uint64(0), f.accounts.Balance(string(funder)))
		require.Equal(t, uint64(1000), f.accounts.Custody())

		got, err := f.core.Registry.Get(b.Fingerprint)
		require.NoError(t, err)
		require.Equal(t, b, got)
	})

	t.Run("audit record carries the full content", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, 0)
		f.createBounty(t, "document the wire format", 50)

		records := f.auditLog.Records()
		require.Len(t, records, 1)
		require.Equal(t, audit.KindBountyCreated, records[0].Kind)
		require.Equal(t, "document the wire format", records[0].Content)
		require.Equal(t, escrow.FingerprintOf("document the wire format").String(), records[0].Fingerprint)
		require.Equal(t, uint64(50), records[0].Amount)
	})

	t.Run("rejects duplicate fingerprints", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, 0)
		f.createBounty(t, "same content", 100)

		f.accounts.Credit(string(alice), 100)
		_, err := f.core.Registry.Create(ctx, "same content", alice, f.clock.Now().Add(time.Hour), 100)
		require.ErrorIs(t, err, escrow.ErrAlreadyExists)
		require.Equal(t, uint64(100), f.accounts.Balance(string(alice)))
	})

	t.Run("rejects zero deposits", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, 0)
		_, err := f.core.Registry.Create(ctx, "free work", funder, f.clock.Now().Add(time.Hour), 0)
		require.ErrorIs(t, err, escrow.ErrZeroDeposit)

		_, err = f.core.Registry.Get(escrow.FingerprintOf("free work"))
		require.ErrorIs(t, err, escrow.ErrNotFound)
	})

	t.Run("failed deposit leaves no record", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, 0)
		// Funder has no balance; the port rejects the deposit.
		_, err := f.core.Registry.Create(ctx, "unfunded", funder, f.clock.Now().Add(time.Hour), 500)
		require.ErrorIs(t, err, ledger.ErrInsufficientFunds)

		_, err = f.core.Registry.Get(escrow.FingerprintOf("unfunded"))
		require.ErrorIs(t, err, escrow.ErrNotFound)
		require.Empty(t, f.auditLog.Records())
	})
}

func TestRegistry_Get(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 0)
	_, err := f.core.Registry.Get(escrow.FingerprintOf("never created"))
	require.ErrorIs(t, err, escrow.ErrNotFound)
}
