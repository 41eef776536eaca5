package reconcile

import (
	"context"
	"fmt"

	"genstrat/internal/logger"
	"genstrat/internal/market"
	"genstrat/internal/strategy"
	"genstrat/internal/suggest"
	"genstrat/internal/trade"
)

// Notifier is told about reconciliation outcomes after they are persisted.
// Delivery is fire and forget.
type Notifier interface {
	OnTradesUpdated(strategyID string, result Result)
}

// Result summarizes one reconciliation pass. Archived trades are those that
// were active but no longer appear among the candidates; they are reported
// apart from normal updates so operators can audit forced closes.
type Result struct {
	Created   []trade.Record
	Updated   []trade.Record
	Unchanged []trade.Record
	Archived  []trade.Record
}

func (r Result) Empty() bool {
	return len(r.Created) == 0 && len(r.Updated) == 0 && len(r.Archived) == 0
}

// Engine aligns the lifecycle's view of a strategy with a fresh candidate
// set. Matching is by trade id only: a candidate with a known id is an
// update, an unknown id is a new trade, and an active trade without a
// candidate is archived.
type Engine struct {
	lifecycle *trade.Lifecycle
	suggester suggest.Service
	notifier  Notifier
}

func NewEngine(lifecycle *trade.Lifecycle, suggester suggest.Service) *Engine {
	return &Engine{lifecycle: lifecycle, suggester: suggester}
}

// WithNotifier attaches an optional outcome listener.
func (e *Engine) WithNotifier(n Notifier) *Engine {
	if e != nil {
		e.notifier = n
	}
	return e
}

func (e *Engine) Reconcile(ctx context.Context, def strategy.Definition, snapshot market.Snapshot, budget float64) (Result, error) {
	if e == nil || e.lifecycle == nil || e.suggester == nil {
		return Result{}, fmt.Errorf("reconcile engine not initialized")
	}
	candidates, err := e.suggester.GenerateTrades(ctx, def, snapshot, budget)
	if err != nil {
		return Result{}, fmt.Errorf("generate candidates: %w", err)
	}
	actives, err := e.lifecycle.ActiveTrades(ctx, def.ID)
	if err != nil {
		return Result{}, fmt.Errorf("list active trades: %w", err)
	}

	existing := make(map[string]trade.Record, len(actives))
	for _, rec := range actives {
		existing[rec.TradeID] = rec
	}

	var result Result
	matched := make(map[string]bool, len(candidates))
	for _, cand := range candidates {
		current, ok := existing[cand.TradeID]
		if !ok {
			created, err := e.lifecycle.Create(ctx, cand)
			if err != nil {
				return Result{}, fmt.Errorf("create trade %s: %w", cand.TradeID, err)
			}
			result.Created = append(result.Created, created)
			continue
		}
		matched[cand.TradeID] = true
		if current.SameTerms(cand) {
			result.Unchanged = append(result.Unchanged, current)
			continue
		}
		if err := e.lifecycle.UpdateTerms(ctx, cand.TradeID, cand); err != nil {
			return Result{}, fmt.Errorf("update trade %s: %w", cand.TradeID, err)
		}
		updated, ok, err := e.lifecycle.Get(ctx, cand.TradeID)
		if err != nil {
			return Result{}, fmt.Errorf("reload trade %s after update: %w", cand.TradeID, err)
		}
		if !ok {
			return Result{}, fmt.Errorf("reload trade %s after update: %w", cand.TradeID, trade.ErrTradeNotFound)
		}
		result.Updated = append(result.Updated, updated)
	}

	for _, rec := range actives {
		if matched[rec.TradeID] {
			continue
		}
		// The snapshot's last price is the best exit estimate we have for a
		// trade removed without an exit signal.
		var exitPrice float64
		if ticker, ok := snapshot[rec.Asset]; ok {
			exitPrice = ticker.Last
		}
		if err := e.lifecycle.CloseAt(ctx, rec.TradeID, trade.CloseReasonReconcile, exitPrice); err != nil {
			return Result{}, fmt.Errorf("archive trade %s: %w", rec.TradeID, err)
		}
		rec.Status = trade.StatusClosed
		rec.CloseReason = trade.CloseReasonReconcile
		rec.ExitPrice = exitPrice
		result.Archived = append(result.Archived, rec)
	}

	logger.Infof("reconcile %s: created=%d updated=%d unchanged=%d archived=%d",
		def.ID, len(result.Created), len(result.Updated), len(result.Unchanged), len(result.Archived))

	if e.notifier != nil && !result.Empty() {
		go e.notifier.OnTradesUpdated(def.ID, result)
	}
	return result, nil
}
