package suggest

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"genstrat/internal/market"
	"genstrat/internal/strategy"
)

type stubDepth struct {
	bid, ask float64
	err      error
}

func (s *stubDepth) FetchDepth(context.Context, string, string, int) (float64, float64, error) {
	return s.bid, s.ask, s.err
}

func generatorDef() strategy.Definition {
	return strategy.Definition{
		ID:         "strat-1",
		MarketType: "futures",
		Assets:     []string{"BTC/USDT", "ETH/USDT"},
		EntryConditions: []strategy.Condition{
			{Indicator: "rsi", Operator: "<", Value: 30, Timeframe: "1h"},
		},
		TradeParameters: strategy.TradeParameters{Leverage: 4, OrderType: "limit", PositionSize: 0.1},
		RiskParameters:  strategy.RiskParameters{StopLossPct: 2, TakeProfitPct: 5},
	}
}

func generatorSnapshot() market.Snapshot {
	return market.Snapshot{
		"BTC/USDT": {Asset: "BTC/USDT", Last: 40_000},
		"ETH/USDT": {Asset: "ETH/USDT", Last: 2_000},
	}
}

func TestGeneratorDeterministicIDs(t *testing.T) {
	ctx := context.Background()
	gen := NewGenerator()

	first, err := gen.GenerateTrades(ctx, generatorDef(), generatorSnapshot(), 1000)
	require.NoError(t, err)
	second, err := gen.GenerateTrades(ctx, generatorDef(), generatorSnapshot(), 1000)
	require.NoError(t, err)

	require.Len(t, first, 2)
	require.Len(t, second, 2)
	for i := range first {
		assert.Equal(t, first[i].TradeID, second[i].TradeID, "same strategy/asset yields the same id")
	}
	assert.Equal(t, "strat-1:btc-usdt", first[0].TradeID)
}

func TestGeneratorSplitsBudgetAndSizes(t *testing.T) {
	ctx := context.Background()
	got, err := NewGenerator().GenerateTrades(ctx, generatorDef(), generatorSnapshot(), 1000)
	require.NoError(t, err)
	require.Len(t, got, 2)

	for _, rec := range got {
		assert.Equal(t, 500.0, rec.BudgetAllocation)
		assert.Equal(t, "strat-1", rec.StrategyID)
		assert.Equal(t, "futures", rec.MarketType)
		assert.Equal(t, "limit", rec.OrderType)
	}
	assert.InDelta(t, 500.0/40_000, got[0].Amount, 1e-12)
	assert.InDelta(t, 500.0/2_000, got[1].Amount, 1e-12)
}

func TestGeneratorSideFromConditions(t *testing.T) {
	ctx := context.Background()
	def := generatorDef()

	got, err := NewGenerator().GenerateTrades(ctx, def, generatorSnapshot(), 1000)
	require.NoError(t, err)
	assert.Equal(t, "sell", got[0].Side, "below-threshold entry reads as short")

	def.EntryConditions[0].Operator = ">"
	got, err = NewGenerator().GenerateTrades(ctx, def, generatorSnapshot(), 1000)
	require.NoError(t, err)
	assert.Equal(t, "buy", got[0].Side)
}

func TestGeneratorRiskLevels(t *testing.T) {
	ctx := context.Background()
	def := generatorDef()
	def.EntryConditions[0].Operator = ">"

	got, err := NewGenerator().GenerateTrades(ctx, def, generatorSnapshot(), 1000)
	require.NoError(t, err)
	btc := got[0]
	assert.InDelta(t, 40_000*0.98, btc.StopLoss, 1e-6)
	assert.InDelta(t, 40_000*1.05, btc.TakeProfit, 1e-6)
}

func TestGeneratorSkipsMissingTicker(t *testing.T) {
	ctx := context.Background()
	snap := market.Snapshot{"BTC/USDT": {Asset: "BTC/USDT", Last: 40_000}}
	got, err := NewGenerator().GenerateTrades(ctx, generatorDef(), snap, 1000)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "BTC/USDT", got[0].Asset)
	assert.Equal(t, 500.0, got[0].BudgetAllocation, "allocation still splits across all configured assets")
}

func TestGeneratorRejectsNonPositiveBudget(t *testing.T) {
	_, err := NewGenerator().GenerateTrades(context.Background(), generatorDef(), generatorSnapshot(), 0)
	assert.Error(t, err)
}

func TestGeneratorDepthGuard(t *testing.T) {
	ctx := context.Background()
	def := generatorDef()
	def.Assets = []string{"BTC/USDT"}
	def.EntryConditions[0].Operator = ">"
	snap := market.Snapshot{"BTC/USDT": {Asset: "BTC/USDT", Last: 100}}
	// Budget 1000 at price 100 wants 10 units.

	t.Run("deep book passes untouched", func(t *testing.T) {
		gen := NewGenerator().WithDepthSource(&stubDepth{bid: 100, ask: 100})
		got, err := gen.GenerateTrades(ctx, def, snap, 1000)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.InDelta(t, 10.0, got[0].Amount, 1e-12)
		assert.Equal(t, 4.0, got[0].Leverage)
	})

	t.Run("thin book halves size and leverage", func(t *testing.T) {
		gen := NewGenerator().WithDepthSource(&stubDepth{bid: 15, ask: 15})
		got, err := gen.GenerateTrades(ctx, def, snap, 1000)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.InDelta(t, 5.0, got[0].Amount, 1e-12)
		assert.Equal(t, 2.0, got[0].Leverage)
	})

	t.Run("starved book skips the asset", func(t *testing.T) {
		gen := NewGenerator().WithDepthSource(&stubDepth{bid: 1, ask: 1})
		got, err := gen.GenerateTrades(ctx, def, snap, 1000)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("depth errors fail open", func(t *testing.T) {
		gen := NewGenerator().WithDepthSource(&stubDepth{err: fmt.Errorf("exchange down")})
		got, err := gen.GenerateTrades(ctx, def, snap, 1000)
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})
}
