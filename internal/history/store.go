package history

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"genstrat/internal/trade"
)

// Store mirrors terminal trades into SQLite so closed history survives a
// redis flush and can be queried for per-strategy performance.
type Store struct {
	db *gorm.DB
}

var _ trade.HistorySink = (*Store)(nil)

func New(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("history store: db path is required")
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&ClosedTradeModel{}); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// RecordClosed archives one terminal trade. Re-archiving the same trade id
// overwrites the previous row.
func (s *Store) RecordClosed(ctx context.Context, rec trade.Record, reason trade.CloseReason) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("history store not initialized")
	}
	model := newClosedTradeModel(rec, reason)
	cols := []string{
		"strategy_id", "asset", "side", "amount", "entry_price", "exit_price",
		"pnl", "budget_allocation", "leverage", "order_type", "market_type",
		"stop_loss", "take_profit", "trailing_stop", "order_id",
		"order_timestamp", "retry_count", "close_reason", "record_json",
		"closed_at",
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "trade_id"}},
			DoUpdates: clause.AssignmentColumns(cols),
		}).
		Create(&model).Error
}

// ListByStrategy returns archived trades for one strategy, newest first.
func (s *Store) ListByStrategy(ctx context.Context, strategyID string, limit int) ([]ClosedTradeModel, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("history store not initialized")
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var models []ClosedTradeModel
	query := s.db.WithContext(ctx).Model(&ClosedTradeModel{})
	if sid := strings.TrimSpace(strategyID); sid != "" {
		query = query.Where("strategy_id = ?", sid)
	}
	if err := query.Order("closed_at DESC, id DESC").Limit(limit).Find(&models).Error; err != nil {
		return nil, err
	}
	return models, nil
}

// CountByReason reports how many archived trades closed for each reason,
// e.g. to watch the exceeded-retries rate.
func (s *Store) CountByReason(ctx context.Context, strategyID string) (map[string]int64, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("history store not initialized")
	}
	type row struct {
		CloseReason string
		Total       int64
	}
	var rows []row
	query := s.db.WithContext(ctx).Model(&ClosedTradeModel{}).
		Select("close_reason, COUNT(*) AS total").
		Group("close_reason")
	if sid := strings.TrimSpace(strategyID); sid != "" {
		query = query.Where("strategy_id = ?", sid)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.CloseReason] = r.Total
	}
	return out, nil
}

// StrategyPerformance aggregates realized results for one strategy. Only
// settled trades (a recorded exit price) contribute to wins and PnL; trades
// that died before a fill still count toward the total.
type StrategyPerformance struct {
	StrategyID string
	Trades     int64
	Settled    int64
	Wins       int64
	WinRate    float64
	TotalPnL   float64
}

// Performance computes the realized aggregate for one strategy, or across all
// strategies when strategyID is empty.
func (s *Store) Performance(ctx context.Context, strategyID string) (StrategyPerformance, error) {
	if s == nil || s.db == nil {
		return StrategyPerformance{}, fmt.Errorf("history store not initialized")
	}
	type row struct {
		Trades   int64
		Settled  int64
		Wins     int64
		TotalPnl float64
	}
	query := s.db.WithContext(ctx).Model(&ClosedTradeModel{}).
		Select("COUNT(*) AS trades, " +
			"COALESCE(SUM(CASE WHEN exit_price > 0 THEN 1 ELSE 0 END), 0) AS settled, " +
			"COALESCE(SUM(CASE WHEN exit_price > 0 AND pnl > 0 THEN 1 ELSE 0 END), 0) AS wins, " +
			"COALESCE(SUM(CASE WHEN exit_price > 0 THEN pnl ELSE 0 END), 0) AS total_pnl")
	sid := strings.TrimSpace(strategyID)
	if sid != "" {
		query = query.Where("strategy_id = ?", sid)
	}
	var r row
	if err := query.Scan(&r).Error; err != nil {
		return StrategyPerformance{}, err
	}
	perf := StrategyPerformance{
		StrategyID: sid,
		Trades:     r.Trades,
		Settled:    r.Settled,
		Wins:       r.Wins,
		TotalPnL:   r.TotalPnl,
	}
	if r.Settled > 0 {
		perf.WinRate = float64(r.Wins) / float64(r.Settled)
	}
	return perf, nil
}

func newClosedTradeModel(rec trade.Record, reason trade.CloseReason) ClosedTradeModel {
	closedAt := rec.UpdatedAt
	if closedAt.IsZero() {
		closedAt = time.Now()
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		raw = nil
	}
	return ClosedTradeModel{
		TradeID:          strings.TrimSpace(rec.TradeID),
		StrategyID:       strings.TrimSpace(rec.StrategyID),
		Asset:            strings.ToUpper(strings.TrimSpace(rec.Asset)),
		Side:             strings.ToLower(strings.TrimSpace(rec.Side)),
		Amount:           rec.Amount,
		EntryPrice:       rec.EntryPrice,
		ExitPrice:        rec.ExitPrice,
		PnL:              realizedPnL(rec),
		BudgetAllocation: rec.BudgetAllocation,
		Leverage:         rec.Leverage,
		OrderType:        rec.OrderType,
		MarketType:       rec.MarketType,
		StopLoss:         rec.StopLoss,
		TakeProfit:       rec.TakeProfit,
		TrailingStop:     rec.TrailingStop,
		OrderID:          rec.OrderID,
		OrderTimestamp:   rec.OrderTimestamp,
		RetryCount:       rec.RetryCount,
		CloseReason:      string(reason),
		RecordJSON:       datatypes.JSON(raw),
		CreatedAtUnix:    rec.CreatedAt.UnixMilli(),
		ClosedAtUnix:     closedAt.UnixMilli(),
	}
}

// realizedPnL computes the signed result of a settled trade over the quantity
// that was actually executable (the suggested amount capped by what the
// allocation bought at entry, matching order sizing). Unsettled trades yield
// zero.
func realizedPnL(rec trade.Record) float64 {
	if rec.ExitPrice <= 0 || rec.EntryPrice <= 0 {
		return 0
	}
	qty := rec.Amount
	if rec.BudgetAllocation > 0 {
		if affordable := rec.BudgetAllocation / rec.EntryPrice; affordable < qty {
			qty = affordable
		}
	}
	direction := 1.0
	if strings.EqualFold(rec.Side, "sell") {
		direction = -1
	}
	return (rec.ExitPrice - rec.EntryPrice) * qty * direction
}
