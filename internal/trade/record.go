package trade

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Status is the single tagged state of a trade. Membership sets are derived
// from it, never the other way around.
type Status string

const (
	StatusPending Status = "pending"
	StatusActive  Status = "active"
	StatusClosed  Status = "closed"
)

// CloseReason distinguishes why a trade reached the closed set.
type CloseReason string

const (
	CloseReasonExit            CloseReason = "exit_signal"
	CloseReasonReconcile       CloseReason = "reconcile_removed"
	CloseReasonExceededRetries CloseReason = "exceeded_retries"
	CloseReasonManual          CloseReason = "manual"
)

// Record is the unit the lifecycle tracks. It is exclusively owned by the
// lifecycle while pending/active and becomes read-only history once closed.
type Record struct {
	TradeID          string  `json:"trade_id"`
	StrategyID       string  `json:"strategy_id"`
	Asset            string  `json:"asset"`
	Side             string  `json:"side"`
	Amount           float64 `json:"amount"`
	EntryPrice       float64 `json:"entry_price"`
	BudgetAllocation float64 `json:"budget_allocation"`

	Leverage   float64 `json:"leverage,omitempty"`
	OrderType  string  `json:"order_type,omitempty"`
	MarketType string  `json:"market_type,omitempty"`

	StopLoss     float64 `json:"stop_loss,omitempty"`
	TakeProfit   float64 `json:"take_profit,omitempty"`
	TrailingStop float64 `json:"trailing_stop,omitempty"`

	// Stored verbatim from the order gateway ack.
	OrderID        string `json:"order_id,omitempty"`
	OrderTimestamp int64  `json:"order_timestamp,omitempty"`

	Status           Status      `json:"status"`
	RetryCount       int         `json:"retry_count"`
	FallbackExecuted bool        `json:"fallback_executed"`
	CloseReason      CloseReason `json:"close_reason,omitempty"`
	// ExitPrice is the realized unwind price; zero when the close never had a
	// fill (e.g. exceeded retries).
	ExitPrice float64 `json:"exit_price,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SameTerms reports whether two records agree on every reconciliation-managed
// field. Lifecycle bookkeeping (status, retries, close reason, timestamps) is
// deliberately excluded: an update must not reset it.
func (r Record) SameTerms(other Record) bool {
	return strings.EqualFold(r.Asset, other.Asset) &&
		strings.EqualFold(r.Side, other.Side) &&
		floatEq(r.Amount, other.Amount) &&
		floatEq(r.EntryPrice, other.EntryPrice) &&
		floatEq(r.BudgetAllocation, other.BudgetAllocation) &&
		floatEq(r.Leverage, other.Leverage) &&
		strings.EqualFold(r.OrderType, other.OrderType) &&
		strings.EqualFold(r.MarketType, other.MarketType) &&
		floatEq(r.StopLoss, other.StopLoss) &&
		floatEq(r.TakeProfit, other.TakeProfit) &&
		floatEq(r.TrailingStop, other.TrailingStop)
}

// applyTerms copies the reconciliation-managed fields of candidate onto r.
func (r *Record) applyTerms(candidate Record) {
	r.Asset = strings.ToUpper(strings.TrimSpace(candidate.Asset))
	r.Side = strings.ToLower(strings.TrimSpace(candidate.Side))
	r.Amount = candidate.Amount
	r.EntryPrice = candidate.EntryPrice
	r.BudgetAllocation = candidate.BudgetAllocation
	r.Leverage = candidate.Leverage
	r.OrderType = strings.ToLower(strings.TrimSpace(candidate.OrderType))
	r.MarketType = strings.ToLower(strings.TrimSpace(candidate.MarketType))
	r.StopLoss = candidate.StopLoss
	r.TakeProfit = candidate.TakeProfit
	r.TrailingStop = candidate.TrailingStop
}

func floatEq(a, b float64) bool {
	return math.Abs(a-b) <= 1e-9
}

// ---------------------------- store encoding -----------------------------

func recordKey(tradeID string) string { return "trade:" + tradeID }

func setName(status Status) string { return "trades:" + string(status) }

func recordToFields(rec Record) map[string]string {
	fields := map[string]string{
		"trade_id":          rec.TradeID,
		"strategy_id":       rec.StrategyID,
		"asset":             rec.Asset,
		"side":              rec.Side,
		"amount":            formatFloat(rec.Amount),
		"entry_price":       formatFloat(rec.EntryPrice),
		"budget_allocation": formatFloat(rec.BudgetAllocation),
		"leverage":          formatFloat(rec.Leverage),
		"order_type":        rec.OrderType,
		"market_type":       rec.MarketType,
		"stop_loss":         formatFloat(rec.StopLoss),
		"take_profit":       formatFloat(rec.TakeProfit),
		"trailing_stop":     formatFloat(rec.TrailingStop),
		"order_id":          rec.OrderID,
		"order_timestamp":   strconv.FormatInt(rec.OrderTimestamp, 10),
		"status":            string(rec.Status),
		"retry_count":       strconv.Itoa(rec.RetryCount),
		"fallback_executed": strconv.FormatBool(rec.FallbackExecuted),
		"close_reason":      string(rec.CloseReason),
		"exit_price":        formatFloat(rec.ExitPrice),
		"created_at":        strconv.FormatInt(rec.CreatedAt.UnixMilli(), 10),
		"updated_at":        strconv.FormatInt(rec.UpdatedAt.UnixMilli(), 10),
	}
	return fields
}

func fieldsToRecord(fields map[string]string) Record {
	return Record{
		TradeID:          fields["trade_id"],
		StrategyID:       fields["strategy_id"],
		Asset:            fields["asset"],
		Side:             fields["side"],
		Amount:           parseFloat(fields["amount"]),
		EntryPrice:       parseFloat(fields["entry_price"]),
		BudgetAllocation: parseFloat(fields["budget_allocation"]),
		Leverage:         parseFloat(fields["leverage"]),
		OrderType:        fields["order_type"],
		MarketType:       fields["market_type"],
		StopLoss:         parseFloat(fields["stop_loss"]),
		TakeProfit:       parseFloat(fields["take_profit"]),
		TrailingStop:     parseFloat(fields["trailing_stop"]),
		OrderID:          fields["order_id"],
		OrderTimestamp:   parseInt(fields["order_timestamp"]),
		Status:           Status(fields["status"]),
		RetryCount:       int(parseInt(fields["retry_count"])),
		FallbackExecuted: fields["fallback_executed"] == "true",
		CloseReason:      CloseReason(fields["close_reason"]),
		ExitPrice:        parseFloat(fields["exit_price"]),
		CreatedAt:        millisToTime(parseInt(fields["created_at"])),
		UpdatedAt:        millisToTime(parseInt(fields["updated_at"])),
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func parseFloat(raw string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0
	}
	return v
}

func parseInt(raw string) int64 {
	v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0
	}
	return v
}

func millisToTime(v int64) time.Time {
	if v <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(v)
}
