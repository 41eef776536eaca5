package trade

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"genstrat/internal/logger"
	"genstrat/internal/store"
)

// MaxRetries is the retry ceiling: a pending trade whose count reaches it is
// archived instead of requeued.
const MaxRetries = 3

var (
	// ErrTradeNotFound reports a transition aimed at an unknown trade id. It
	// is informational, never fatal to the caller.
	ErrTradeNotFound = errors.New("trade not found")
	// ErrInvalidTransition reports a transition the state machine forbids,
	// e.g. reactivating a closed trade.
	ErrInvalidTransition = errors.New("invalid trade transition")
)

// HistorySink receives trades that reach a terminal state. Best effort: a
// sink failure is logged, it never blocks the transition.
type HistorySink interface {
	RecordClosed(ctx context.Context, rec Record, reason CloseReason) error
}

// Lifecycle owns every trade record while it is pending or active. All
// mutation goes through the transition methods below; each one updates the
// status field and the derived membership sets as one logical unit under a
// per-trade-id lock.
type Lifecycle struct {
	store   store.Store
	history HistorySink
	locks   *keyedMutex
	nowFn   func() time.Time
}

func NewLifecycle(st store.Store) *Lifecycle {
	return &Lifecycle{
		store: st,
		locks: newKeyedMutex(),
		nowFn: time.Now,
	}
}

// WithHistory attaches an optional terminal-state sink.
func (l *Lifecycle) WithHistory(sink HistorySink) *Lifecycle {
	if l != nil {
		l.history = sink
	}
	return l
}

// Create records a new trade as pending. Lifecycle bookkeeping supplied by
// the caller is discarded: every trade starts with a clean slate.
func (l *Lifecycle) Create(ctx context.Context, rec Record) (Record, error) {
	if l == nil || l.store == nil {
		return Record{}, fmt.Errorf("lifecycle not initialized")
	}
	rec.TradeID = strings.TrimSpace(rec.TradeID)
	if rec.TradeID == "" {
		return Record{}, fmt.Errorf("trade_id is required")
	}
	unlock := l.locks.lock(rec.TradeID)
	defer unlock()

	now := l.nowFn()
	rec.Status = StatusPending
	rec.RetryCount = 0
	rec.FallbackExecuted = false
	rec.CloseReason = ""
	rec.Asset = strings.ToUpper(strings.TrimSpace(rec.Asset))
	rec.Side = strings.ToLower(strings.TrimSpace(rec.Side))
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	if err := l.persist(ctx, rec, "", StatusPending); err != nil {
		return Record{}, err
	}
	logger.Infof("trade %s created strategy=%s asset=%s side=%s", rec.TradeID, rec.StrategyID, rec.Asset, rec.Side)
	return rec, nil
}

// Get loads one record by id.
func (l *Lifecycle) Get(ctx context.Context, tradeID string) (Record, bool, error) {
	if l == nil || l.store == nil {
		return Record{}, false, fmt.Errorf("lifecycle not initialized")
	}
	fields, ok, err := l.store.GetRecord(ctx, recordKey(tradeID))
	if err != nil || !ok {
		return Record{}, false, err
	}
	return fieldsToRecord(fields), true, nil
}

// Activate moves pending→active when execution confirms the fill. Calling it
// on an already-active trade is a no-op.
func (l *Lifecycle) Activate(ctx context.Context, tradeID string) error {
	return l.transition(ctx, tradeID, func(rec *Record) (Status, error) {
		switch rec.Status {
		case StatusPending:
			rec.Status = StatusActive
			return StatusPending, nil
		case StatusActive:
			return "", nil // idempotent
		default:
			return "", fmt.Errorf("%w: %s -> active", ErrInvalidTransition, rec.Status)
		}
	})
}

// ConfirmExecution records the order gateway ack and moves pending→active in
// the same transition, so a reader never sees an active trade without its
// order id.
func (l *Lifecycle) ConfirmExecution(ctx context.Context, tradeID, orderID string, orderTimestamp int64, fallback bool) error {
	return l.transition(ctx, tradeID, func(rec *Record) (Status, error) {
		switch rec.Status {
		case StatusPending:
			rec.OrderID = orderID
			rec.OrderTimestamp = orderTimestamp
			rec.FallbackExecuted = fallback
			rec.Status = StatusActive
			return StatusPending, nil
		case StatusActive:
			return "", nil // idempotent
		default:
			return "", fmt.Errorf("%w: %s -> active", ErrInvalidTransition, rec.Status)
		}
	})
}

// Close moves a pending or active trade into the closed set.
func (l *Lifecycle) Close(ctx context.Context, tradeID string, reason CloseReason) error {
	return l.CloseAt(ctx, tradeID, reason, 0)
}

// CloseAt is Close carrying the realized exit price when the caller knows it,
// e.g. from the unwind order's fill. Zero means no fill happened.
func (l *Lifecycle) CloseAt(ctx context.Context, tradeID string, reason CloseReason, exitPrice float64) error {
	return l.transition(ctx, tradeID, func(rec *Record) (Status, error) {
		switch rec.Status {
		case StatusPending, StatusActive:
			from := rec.Status
			rec.Status = StatusClosed
			rec.CloseReason = reason
			if exitPrice > 0 {
				rec.ExitPrice = exitPrice
			}
			return from, nil
		case StatusClosed:
			return "", nil // idempotent
		default:
			return "", fmt.Errorf("%w: %s -> closed", ErrInvalidTransition, rec.Status)
		}
	})
}

// Retry records a failed execution attempt for a pending trade. The count
// only ever increases; once it reaches MaxRetries the trade is archived into
// the closed set and reported as exceeded-retries, not as a normal close.
func (l *Lifecycle) Retry(ctx context.Context, tradeID string) error {
	return l.transition(ctx, tradeID, func(rec *Record) (Status, error) {
		if rec.Status != StatusPending {
			return "", fmt.Errorf("%w: retry on %s trade", ErrInvalidTransition, rec.Status)
		}
		rec.RetryCount++
		if rec.RetryCount >= MaxRetries {
			rec.Status = StatusClosed
			rec.CloseReason = CloseReasonExceededRetries
			logger.Warnf("trade %s exceeded retries (count=%d), archiving", rec.TradeID, rec.RetryCount)
			return StatusPending, nil
		}
		logger.Warnf("trade %s execution failed, requeued retry_count=%d", rec.TradeID, rec.RetryCount)
		return StatusPending, nil // re-insert into pending is idempotent
	})
}

// UpdateTerms persists candidate's economic fields over an existing record
// without touching its lifecycle state. Used by reconciliation updates.
func (l *Lifecycle) UpdateTerms(ctx context.Context, tradeID string, candidate Record) error {
	return l.transition(ctx, tradeID, func(rec *Record) (Status, error) {
		rec.applyTerms(candidate)
		return rec.Status, nil
	})
}

// ListByStatus returns the records currently in one membership set,
// optionally filtered by strategy.
func (l *Lifecycle) ListByStatus(ctx context.Context, status Status, strategyID string) ([]Record, error) {
	if l == nil || l.store == nil {
		return nil, fmt.Errorf("lifecycle not initialized")
	}
	ids, err := l.store.SetMembers(ctx, setName(status))
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(ids))
	for _, id := range ids {
		rec, ok, err := l.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if !ok {
			logger.Warnf("trade %s in %s set but record missing, skipping", id, status)
			continue
		}
		if strategyID != "" && rec.StrategyID != strategyID {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// ActiveTrades lists the active set for one strategy.
func (l *Lifecycle) ActiveTrades(ctx context.Context, strategyID string) ([]Record, error) {
	return l.ListByStatus(ctx, StatusActive, strategyID)
}

// transition loads the record under its keyed lock, applies mutate, then
// persists the result. mutate returns the set the trade is leaving (equal to
// the new status when no move happens) or "" to skip persisting.
func (l *Lifecycle) transition(ctx context.Context, tradeID string, mutate func(*Record) (Status, error)) error {
	if l == nil || l.store == nil {
		return fmt.Errorf("lifecycle not initialized")
	}
	tradeID = strings.TrimSpace(tradeID)
	if tradeID == "" {
		return ErrTradeNotFound
	}
	unlock := l.locks.lock(tradeID)
	defer unlock()

	rec, ok, err := l.Get(ctx, tradeID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrTradeNotFound, tradeID)
	}
	wasClosed := rec.Status == StatusClosed
	from, err := mutate(&rec)
	if err != nil {
		return err
	}
	if from == "" {
		return nil
	}
	rec.UpdatedAt = l.nowFn()
	if err := l.persist(ctx, rec, from, rec.Status); err != nil {
		return err
	}
	if rec.Status == StatusClosed && !wasClosed {
		l.archive(ctx, rec)
	}
	return nil
}

// persist writes the record and maintains the derived membership sets. The
// record (carrying the tagged status) is written first so a reader never
// observes a set move without its status update; insertion into the new set
// precedes removal from the old one so the id is never unreferenced.
func (l *Lifecycle) persist(ctx context.Context, rec Record, from, to Status) error {
	if err := l.store.SetRecord(ctx, recordKey(rec.TradeID), recordToFields(rec)); err != nil {
		return err
	}
	if err := l.store.AddToSet(ctx, setName(to), rec.TradeID); err != nil {
		return err
	}
	if from != "" && from != to {
		if err := l.store.RemoveFromSet(ctx, setName(from), rec.TradeID); err != nil {
			return err
		}
	}
	return nil
}

func (l *Lifecycle) archive(ctx context.Context, rec Record) {
	if l.history == nil {
		return
	}
	if err := l.history.RecordClosed(ctx, rec, rec.CloseReason); err != nil {
		logger.Warnf("trade %s history sink failed: %v", rec.TradeID, err)
	}
}
