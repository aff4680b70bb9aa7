package escrow_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/clearlane/bounty/pkg/audit"
	"github.com/clearlane/bounty/pkg/escrow"
)

func TestRateGovernor_SetRate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("only the owner may change the rate", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, 5)
		err := f.core.Rates.SetRate(ctx, alice, 7)
		require.ErrorIs(t, err, escrow.ErrNotOwner)
		require.Equal(t, uint64(5), f.core.Rates.Rate())
	})

	t.Run("rejects a zero rate", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, 5)
		err := f.core.Rates.SetRate(ctx, owner, 0)
		require.ErrorIs(t, err, escrow.ErrInvalidRate)
		require.Equal(t, uint64(5), f.core.Rates.Rate())
	})

	t.Run("replaces the rate and emits a record", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, 5)
		require.NoError(t, f.core.Rates.SetRate(ctx, owner, 20))
		require.Equal(t, uint64(20), f.core.Rates.Rate())

		records := f.auditLog.Records()
		require.Len(t, records, 1)
		require.Equal(t, audit.KindRateChanged, records[0].Kind)
		require.Equal(t, uint64(20), records[0].Rate)
		require.Equal(t, string(owner), records[0].Caller)
	})

	t.Run("takes effect for subsequent withdrawals", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, 5)
		fp := f.createBounty(t, "rate change mid-flight", 1000)
		f.apply(t, fp, alice)

		require.NoError(t, f.core.Rates.SetRate(ctx, owner, 2))
		require.NoError(t, f.core.Engine.Withdraw(ctx, fp, funder))

		// 1000/2/1 = 500 to the lone applicant under the new rate.
		require.Equal(t, uint64(500), f.accounts.Balance(string(alice)))
		require.Equal(t, uint64(500), f.accounts.Balance(string(funder)))
	})
}
