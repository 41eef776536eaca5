package history

import "gorm.io/datatypes"

// ClosedTradeModel is the read-only archive row for a trade that reached a
// terminal state. PnL is realized at archive time from entry and exit price;
// rows without an exit fill carry zero and are excluded from performance.
type ClosedTradeModel struct {
	ID               int64   `gorm:"column:id;primaryKey"`
	TradeID          string  `gorm:"column:trade_id;uniqueIndex"`
	StrategyID       string  `gorm:"column:strategy_id;index"`
	Asset            string  `gorm:"column:asset"`
	Side             string  `gorm:"column:side"`
	Amount           float64 `gorm:"column:amount"`
	EntryPrice       float64 `gorm:"column:entry_price"`
	ExitPrice        float64 `gorm:"column:exit_price"`
	PnL              float64 `gorm:"column:pnl"`
	BudgetAllocation float64 `gorm:"column:budget_allocation"`
	Leverage         float64 `gorm:"column:leverage"`
	OrderType        string  `gorm:"column:order_type"`
	MarketType       string  `gorm:"column:market_type"`
	StopLoss         float64 `gorm:"column:stop_loss"`
	TakeProfit       float64 `gorm:"column:take_profit"`
	TrailingStop     float64 `gorm:"column:trailing_stop"`
	OrderID          string  `gorm:"column:order_id"`
	OrderTimestamp   int64   `gorm:"column:order_timestamp"`
	RetryCount       int     `gorm:"column:retry_count"`
	CloseReason      string  `gorm:"column:close_reason;index"`
	// RecordJSON keeps the full source record for audits, beyond the
	// flattened columns above.
	RecordJSON    datatypes.JSON `gorm:"column:record_json"`
	CreatedAtUnix int64          `gorm:"column:created_at"`
	ClosedAtUnix  int64          `gorm:"column:closed_at"`
}

func (ClosedTradeModel) TableName() string { return "closed_trades" }
