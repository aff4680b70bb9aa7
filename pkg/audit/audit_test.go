package audit_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/clearlane/bounty/pkg/audit"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLog_Record(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("requires a logger", func(t *testing.T) {
		t.Parallel()

		_, err := audit.NewLog(audit.LogConfig{})
		require.Error(t, err)
	})

	t.Run("appends records in emission order", func(t *testing.T) {
		t.Parallel()

		l, err := audit.NewLog(audit.LogConfig{Logger: testLogger()})
		require.NoError(t, err)

		l.Record(ctx, audit.Record{Kind: audit.KindBountyCreated, Fingerprint: "aa"})
		l.Record(ctx, audit.Record{Kind: audit.KindApplied, Fingerprint: "aa"})
		l.Record(ctx, audit.Record{Kind: audit.KindWithdrawn, Fingerprint: "aa"})

		records := l.Records()
		require.Len(t, records, 3)
		require.Equal(t, audit.KindBountyCreated, records[0].Kind)
		require.Equal(t, audit.KindApplied, records[1].Kind)
		require.Equal(t, audit.KindWithdrawn, records[2].Kind)
		for _, r := range records {
			require.NotEqual(t, uuid.Nil, r.ID)
		}
	})

	t.Run("fills missing timestamps from the clock", func(t *testing.T) {
		t.Parallel()

		now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		clock := clockwork.NewFakeClockAt(now)
		l, err := audit.NewLog(audit.LogConfig{Logger: testLogger(), Clock: clock})
		require.NoError(t, err)

		l.Record(ctx, audit.Record{Kind: audit.KindSubmitted})
		emitted := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
		l.Record(ctx, audit.Record{Kind: audit.KindSubmitted, Time: emitted})

		records := l.Records()
		require.Equal(t, now, records[0].Time)
		require.Equal(t, emitted, records[1].Time)
	})

	t.Run("snapshot is isolated from later records", func(t *testing.T) {
		t.Parallel()

		l, err := audit.NewLog(audit.LogConfig{Logger: testLogger()})
		require.NoError(t, err)

		l.Record(ctx, audit.Record{Kind: audit.KindBountyCreated})
		snapshot := l.Records()
		l.Record(ctx, audit.Record{Kind: audit.KindApplied})

		require.Len(t, snapshot, 1)
		require.Len(t, l.Records(), 2)
	})
}
