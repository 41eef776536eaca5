package suggest

import (
	"context"
	"fmt"
	"strings"

	"genstrat/internal/logger"
	"genstrat/internal/market"
	"genstrat/internal/strategy"
	"genstrat/internal/trade"
)

const depthGuardLevels = 20

// Generator builds candidates mechanically from the definition: one per
// asset, sized by splitting the budget evenly. No model in the loop, so its
// output is deterministic for a given snapshot.
type Generator struct {
	depth DepthSource
}

func NewGenerator() *Generator { return &Generator{} }

// WithDepthSource enables the liquidity gate. Without one, candidates are
// sized purely from the budget split.
func (g *Generator) WithDepthSource(ds DepthSource) *Generator {
	if g != nil {
		g.depth = ds
	}
	return g
}

func (g *Generator) GenerateTrades(ctx context.Context, def strategy.Definition, snapshot market.Snapshot, budget float64) ([]trade.Record, error) {
	if g == nil {
		return nil, fmt.Errorf("generator not initialized")
	}
	assets := def.AssetsUpper()
	if len(assets) == 0 {
		return nil, nil
	}
	if budget <= 0 {
		return nil, fmt.Errorf("budget must be positive, got %v", budget)
	}
	side := sideFromConditions(def.EntryConditions)
	allocation := budget / float64(len(assets))

	out := make([]trade.Record, 0, len(assets))
	for _, asset := range assets {
		ticker, ok := snapshot[asset]
		if !ok || ticker.Last <= 0 {
			logger.Warnf("generator: no usable ticker for %s, skipping", asset)
			continue
		}
		amount := allocation / ticker.Last
		leverage := def.TradeParameters.Leverage
		if reduced, ok := g.passDepthGuard(ctx, def, asset, side, amount); !ok {
			logger.Warnf("generator: thin book for %s, skipping", asset)
			continue
		} else if reduced {
			amount /= 2
			if leverage > 1 {
				leverage /= 2
			}
		}

		rec := trade.Record{
			TradeID:          candidateID(def.ID, asset),
			StrategyID:       def.ID,
			Asset:            asset,
			Side:             side,
			Amount:           amount,
			EntryPrice:       ticker.Last,
			BudgetAllocation: allocation,
			Leverage:         leverage,
			OrderType:        strings.ToLower(strings.TrimSpace(def.TradeParameters.OrderType)),
			MarketType:       strings.ToLower(strings.TrimSpace(def.MarketType)),
		}
		applyRiskLevels(&rec, def)
		out = append(out, rec)
	}
	return out, nil
}

// passDepthGuard checks resting volume against the intended size. Returns
// reduced=true when the taker side covers the order but with less than 2x
// headroom, ok=false when it cannot cover it at all.
func (g *Generator) passDepthGuard(ctx context.Context, def strategy.Definition, asset, side string, amount float64) (reduced, ok bool) {
	if g.depth == nil || amount <= 0 {
		return false, true
	}
	bidVol, askVol, err := g.depth.FetchDepth(ctx, asset, def.MarketType, depthGuardLevels)
	if err != nil {
		logger.Warnf("generator: depth check failed for %s: %v", asset, err)
		return false, true // fail open: depth is advisory
	}
	resting := askVol // buys consume asks
	if strings.EqualFold(side, "sell") {
		resting = bidVol
	}
	switch {
	case resting < amount:
		return false, false
	case resting < amount*2:
		return true, true
	default:
		return false, true
	}
}

// sideFromConditions infers the trade direction from the first threshold
// entry condition: crossing above a level means momentum long, below means
// short. Defaults to buy.
func sideFromConditions(conds []strategy.Condition) string {
	for _, c := range conds {
		switch strings.TrimSpace(c.Operator) {
		case ">", ">=":
			return "buy"
		case "<", "<=":
			return "sell"
		}
	}
	return "buy"
}
