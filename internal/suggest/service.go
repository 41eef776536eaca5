package suggest

import (
	"context"
	"fmt"
	"strings"

	"genstrat/internal/market"
	"genstrat/internal/strategy"
	"genstrat/internal/trade"
)

// Service produces candidate trades for one strategy against a market
// snapshot. Candidates carry stable trade ids so reconciliation can match
// them to trades produced by earlier passes.
type Service interface {
	GenerateTrades(ctx context.Context, def strategy.Definition, snapshot market.Snapshot, budget float64) ([]trade.Record, error)
}

// DepthSource exposes resting order-book volume. Optional: generators that
// have one gate position size on available liquidity.
type DepthSource interface {
	FetchDepth(ctx context.Context, asset, marketType string, limit int) (bidVolume, askVolume float64, err error)
}

// candidateID derives the stable id for one strategy/asset pair. The pair is
// the identity: regenerating the same strategy yields the same ids, so the
// reconciler sees updates instead of churn.
func candidateID(strategyID, asset string) string {
	asset = strings.ToLower(strings.TrimSpace(asset))
	asset = strings.ReplaceAll(asset, "/", "-")
	return fmt.Sprintf("%s:%s", strings.TrimSpace(strategyID), asset)
}

// applyRiskLevels fills absolute stop/take/trailing prices from the
// definition's percentage risk parameters and the entry price.
func applyRiskLevels(rec *trade.Record, def strategy.Definition) {
	if rec.EntryPrice <= 0 {
		return
	}
	direction := 1.0
	if strings.EqualFold(rec.Side, "sell") {
		direction = -1.0
	}
	if pct := def.RiskParameters.StopLossPct; pct > 0 {
		rec.StopLoss = rec.EntryPrice * (1 - direction*pct/100)
	}
	if pct := def.RiskParameters.TakeProfitPct; pct > 0 {
		rec.TakeProfit = rec.EntryPrice * (1 + direction*pct/100)
	}
	if pct := def.RiskParameters.TrailingStopPct; pct > 0 {
		rec.TrailingStop = pct
	}
}
