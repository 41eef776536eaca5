package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"genstrat/internal/trade"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func closedRecord(id, strategyID string) trade.Record {
	now := time.Now()
	return trade.Record{
		TradeID:          id,
		StrategyID:       strategyID,
		Asset:            "BTC/USDT",
		Side:             "buy",
		Amount:           0.5,
		EntryPrice:       40_000,
		BudgetAllocation: 20_000,
		OrderType:        "market",
		MarketType:       "futures",
		Status:           trade.StatusClosed,
		CreatedAt:        now.Add(-time.Hour),
		UpdatedAt:        now,
	}
}

func TestRecordClosedAndList(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.RecordClosed(ctx, closedRecord("t1", "s1"), trade.CloseReasonExit))
	require.NoError(t, s.RecordClosed(ctx, closedRecord("t2", "s1"), trade.CloseReasonReconcile))
	require.NoError(t, s.RecordClosed(ctx, closedRecord("t3", "s2"), trade.CloseReasonExceededRetries))

	rows, err := s.ListByStrategy(ctx, "s1", 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	all, err := s.ListByStrategy(ctx, "", 10)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestRecordClosedUpsertsOnTradeID(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	rec := closedRecord("t1", "s1")
	require.NoError(t, s.RecordClosed(ctx, rec, trade.CloseReasonExit))

	rec.Amount = 0.75
	require.NoError(t, s.RecordClosed(ctx, rec, trade.CloseReasonManual))

	rows, err := s.ListByStrategy(ctx, "s1", 10)
	require.NoError(t, err)
	require.Len(t, rows, 1, "re-archiving replaces, never duplicates")
	assert.Equal(t, 0.75, rows[0].Amount)
	assert.Equal(t, string(trade.CloseReasonManual), rows[0].CloseReason)
}

func TestRecordClosedKeepsFullRecordJSON(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	rec := closedRecord("t1", "s1")
	rec.ExitPrice = 41_000
	require.NoError(t, s.RecordClosed(ctx, rec, trade.CloseReasonExit))

	rows, err := s.ListByStrategy(ctx, "s1", 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 41_000.0, rows[0].ExitPrice)
	assert.Contains(t, string(rows[0].RecordJSON), `"trade_id":"t1"`,
		"the source record travels with the row")
}

func TestPerformance(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	// Long winner: bought 0.5 at 40k, sold at 42k → +1000.
	win := closedRecord("t1", "s1")
	win.ExitPrice = 42_000
	require.NoError(t, s.RecordClosed(ctx, win, trade.CloseReasonExit))

	// Long loser: sold at 39k → -500.
	loss := closedRecord("t2", "s1")
	loss.ExitPrice = 39_000
	require.NoError(t, s.RecordClosed(ctx, loss, trade.CloseReasonExit))

	// Short winner: sold 0.5 at 40k, covered at 38k → +1000.
	short := closedRecord("t3", "s1")
	short.Side = "sell"
	short.ExitPrice = 38_000
	require.NoError(t, s.RecordClosed(ctx, short, trade.CloseReasonReconcile))

	// Never filled: counts as a trade, contributes nothing.
	dead := closedRecord("t4", "s1")
	require.NoError(t, s.RecordClosed(ctx, dead, trade.CloseReasonExceededRetries))

	// Another strategy, excluded from the s1 aggregate.
	other := closedRecord("t5", "s2")
	other.ExitPrice = 42_000
	require.NoError(t, s.RecordClosed(ctx, other, trade.CloseReasonExit))

	perf, err := s.Performance(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(4), perf.Trades)
	assert.Equal(t, int64(3), perf.Settled)
	assert.Equal(t, int64(2), perf.Wins)
	assert.InDelta(t, 2.0/3.0, perf.WinRate, 1e-9)
	assert.InDelta(t, 1500.0, perf.TotalPnL, 1e-9)
}

func TestPerformanceEmpty(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	perf, err := s.Performance(ctx, "nope")
	require.NoError(t, err)
	assert.Zero(t, perf.Trades)
	assert.Zero(t, perf.WinRate)
	assert.Zero(t, perf.TotalPnL)
}

func TestCountByReason(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.RecordClosed(ctx, closedRecord("t1", "s1"), trade.CloseReasonExit))
	require.NoError(t, s.RecordClosed(ctx, closedRecord("t2", "s1"), trade.CloseReasonExit))
	require.NoError(t, s.RecordClosed(ctx, closedRecord("t3", "s1"), trade.CloseReasonExceededRetries))
	require.NoError(t, s.RecordClosed(ctx, closedRecord("t4", "s2"), trade.CloseReasonExit))

	counts, err := s.CountByReason(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts[string(trade.CloseReasonExit)])
	assert.Equal(t, int64(1), counts[string(trade.CloseReasonExceededRetries)])

	all, err := s.CountByReason(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, int64(3), all[string(trade.CloseReasonExit)])
}
