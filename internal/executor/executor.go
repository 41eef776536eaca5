package executor

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"genstrat/internal/logger"
	"genstrat/internal/trade"
)

// Executor turns pending trade records into exchange orders and drives the
// resulting lifecycle transitions. A fill confirms the trade active; a
// gateway failure records a retry, and the lifecycle archives the trade once
// the retry ceiling is hit.
type Executor struct {
	gateway   OrderGateway
	lifecycle *trade.Lifecycle
}

func New(gateway OrderGateway, lifecycle *trade.Lifecycle) *Executor {
	return &Executor{gateway: gateway, lifecycle: lifecycle}
}

// ExecutePending drains the pending set for one strategy. Failures on one
// trade never block the rest; each failed trade is left to the retry
// machinery.
func (e *Executor) ExecutePending(ctx context.Context, strategyID string) error {
	if e == nil || e.gateway == nil || e.lifecycle == nil {
		return fmt.Errorf("executor not initialized")
	}
	pending, err := e.lifecycle.ListByStatus(ctx, trade.StatusPending, strategyID)
	if err != nil {
		return fmt.Errorf("list pending trades: %w", err)
	}
	for _, rec := range pending {
		if err := e.executeOne(ctx, rec); err != nil {
			logger.Errorf("execute trade %s failed: %v", rec.TradeID, err)
			if retryErr := e.lifecycle.Retry(ctx, rec.TradeID); retryErr != nil {
				logger.Warnf("record retry for %s: %v", rec.TradeID, retryErr)
			}
		}
	}
	return nil
}

func (e *Executor) executeOne(ctx context.Context, rec trade.Record) error {
	qty := orderQuantity(rec)
	if qty.IsZero() || qty.IsNegative() {
		return fmt.Errorf("trade %s has no executable quantity", rec.TradeID)
	}
	req := OrderRequest{
		Asset:         rec.Asset,
		Side:          rec.Side,
		OrderType:     orderTypeOrDefault(rec.OrderType),
		MarketType:    rec.MarketType,
		Quantity:      qty.String(),
		Leverage:      rec.Leverage,
		ClientOrderID: uuid.NewString(),
	}
	if req.OrderType == "limit" && rec.EntryPrice > 0 {
		req.Price = decimal.NewFromFloat(rec.EntryPrice).String()
	}

	ack, err := e.gateway.CreateOrder(ctx, req)
	fallback := false
	if err != nil && req.OrderType == "limit" {
		// One market-order fallback before counting the attempt as failed.
		logger.Warnf("trade %s limit order failed (%v), retrying as market", rec.TradeID, err)
		req.OrderType = "market"
		req.Price = ""
		req.ClientOrderID = uuid.NewString()
		ack, err = e.gateway.CreateOrder(ctx, req)
		fallback = err == nil
	}
	if err != nil {
		return err
	}
	if err := e.lifecycle.ConfirmExecution(ctx, rec.TradeID, ack.ID, ack.Timestamp, fallback); err != nil {
		return fmt.Errorf("confirm execution: %w", err)
	}
	logger.Infof("trade %s executed order_id=%s qty=%s fallback=%v", rec.TradeID, ack.ID, req.Quantity, fallback)

	e.placeProtectiveOrders(ctx, rec, qty)
	return nil
}

// placeProtectiveOrders submits stop-loss / take-profit / trailing-stop
// companions for a filled entry. Each is best effort: a rejected protective
// order is logged, the position stays open.
func (e *Executor) placeProtectiveOrders(ctx context.Context, rec trade.Record, qty decimal.Decimal) {
	exitSide := "sell"
	if strings.EqualFold(rec.Side, "sell") {
		exitSide = "buy"
	}
	base := OrderRequest{
		Asset:      rec.Asset,
		Side:       exitSide,
		MarketType: rec.MarketType,
		Quantity:   qty.String(),
		ReduceOnly: true,
	}
	if rec.StopLoss > 0 {
		req := base
		req.ClientOrderID = uuid.NewString()
		req.OrderType = "stop"
		req.StopPrice = decimal.NewFromFloat(rec.StopLoss).String()
		if _, err := e.gateway.CreateOrder(ctx, req); err != nil {
			logger.Warnf("trade %s stop-loss order rejected: %v", rec.TradeID, err)
		}
	}
	if rec.TakeProfit > 0 {
		req := base
		req.ClientOrderID = uuid.NewString()
		req.OrderType = "take_profit"
		req.StopPrice = decimal.NewFromFloat(rec.TakeProfit).String()
		if _, err := e.gateway.CreateOrder(ctx, req); err != nil {
			logger.Warnf("trade %s take-profit order rejected: %v", rec.TradeID, err)
		}
	}
	if rec.TrailingStop > 0 {
		req := base
		req.ClientOrderID = uuid.NewString()
		req.OrderType = "trailing_stop"
		req.StopPrice = decimal.NewFromFloat(rec.TrailingStop).String()
		if _, err := e.gateway.CreateOrder(ctx, req); err != nil {
			logger.Warnf("trade %s trailing-stop order rejected: %v", rec.TradeID, err)
		}
	}
}

// CloseActive unwinds active trades for one strategy with reduce-only market
// orders, then moves the records to closed. When assets are given only trades
// on those assets are touched. A trade whose close order fails stays active
// for the next pass.
func (e *Executor) CloseActive(ctx context.Context, strategyID string, reason trade.CloseReason, assets ...string) error {
	if e == nil || e.gateway == nil || e.lifecycle == nil {
		return fmt.Errorf("executor not initialized")
	}
	actives, err := e.lifecycle.ActiveTrades(ctx, strategyID)
	if err != nil {
		return fmt.Errorf("list active trades: %w", err)
	}
	assetFilter := make(map[string]bool, len(assets))
	for _, a := range assets {
		assetFilter[strings.ToUpper(strings.TrimSpace(a))] = true
	}
	for _, rec := range actives {
		if len(assetFilter) > 0 && !assetFilter[rec.Asset] {
			continue
		}
		exitSide := "sell"
		if strings.EqualFold(rec.Side, "sell") {
			exitSide = "buy"
		}
		req := OrderRequest{
			Asset:         rec.Asset,
			Side:          exitSide,
			OrderType:     "market",
			MarketType:    rec.MarketType,
			Quantity:      orderQuantity(rec).String(),
			ReduceOnly:    true,
			ClientOrderID: uuid.NewString(),
		}
		ack, err := e.gateway.CreateOrder(ctx, req)
		if err != nil {
			logger.Errorf("close order for %s failed: %v", rec.TradeID, err)
			continue
		}
		if err := e.lifecycle.CloseAt(ctx, rec.TradeID, reason, parsePrice(ack.AvgPrice)); err != nil {
			logger.Errorf("close trade %s: %v", rec.TradeID, err)
			continue
		}
		logger.Infof("trade %s closed (%s) exit_price=%s", rec.TradeID, reason, ack.AvgPrice)
	}
	return nil
}

// CloseOrphans unwinds trades whose strategy is no longer active: pending
// records are archived outright, open positions are closed as a manual
// intervention. keep maps the strategy ids that are still being monitored.
func (e *Executor) CloseOrphans(ctx context.Context, keep map[string]bool) error {
	if e == nil || e.gateway == nil || e.lifecycle == nil {
		return fmt.Errorf("executor not initialized")
	}
	pending, err := e.lifecycle.ListByStatus(ctx, trade.StatusPending, "")
	if err != nil {
		return fmt.Errorf("list pending trades: %w", err)
	}
	for _, rec := range pending {
		if keep[rec.StrategyID] {
			continue
		}
		logger.Warnf("trade %s pending for inactive strategy %s, archiving", rec.TradeID, rec.StrategyID)
		if err := e.lifecycle.Close(ctx, rec.TradeID, trade.CloseReasonManual); err != nil {
			logger.Errorf("archive orphaned trade %s: %v", rec.TradeID, err)
		}
	}

	actives, err := e.lifecycle.ListByStatus(ctx, trade.StatusActive, "")
	if err != nil {
		return fmt.Errorf("list active trades: %w", err)
	}
	orphaned := make(map[string]bool)
	for _, rec := range actives {
		if !keep[rec.StrategyID] {
			orphaned[rec.StrategyID] = true
		}
	}
	for strategyID := range orphaned {
		logger.Warnf("strategy %s is inactive, unwinding its open positions", strategyID)
		if err := e.CloseActive(ctx, strategyID, trade.CloseReasonManual); err != nil {
			logger.Errorf("unwind orphaned strategy %s: %v", strategyID, err)
		}
	}
	return nil
}

// orderQuantity caps the suggested amount at what the allocation actually
// buys at the entry price, computed in decimal so repeated float division
// never oversizes the order.
func orderQuantity(rec trade.Record) decimal.Decimal {
	amount := decimal.NewFromFloat(rec.Amount)
	if rec.EntryPrice <= 0 || rec.BudgetAllocation <= 0 {
		return amount
	}
	affordable := decimal.NewFromFloat(rec.BudgetAllocation).
		Div(decimal.NewFromFloat(rec.EntryPrice))
	if affordable.LessThan(amount) {
		return affordable
	}
	return amount
}

func parsePrice(raw string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}

func orderTypeOrDefault(orderType string) string {
	orderType = strings.ToLower(strings.TrimSpace(orderType))
	if orderType == "" {
		return "market"
	}
	return orderType
}
