package monitor

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"genstrat/internal/executor"
	"genstrat/internal/indicator"
	"genstrat/internal/logger"
	"genstrat/internal/market"
	"genstrat/internal/reconcile"
	"genstrat/internal/scheduler"
	"genstrat/internal/strategy"
	"genstrat/internal/trade"
)

const (
	// DefaultInterval paces evaluation passes. Passes are serialized by the
	// scheduler; a slow pass delays the next, it never overlaps it.
	DefaultInterval = 60 * time.Second

	// DefaultReconcileInterval paces full reconciliation. Entry signals still
	// reconcile immediately; this cadence exists so stale trades are aligned
	// with fresh candidates even when no signal ever fires.
	DefaultReconcileInterval = 5 * time.Minute

	defaultCandleLimit = 200
)

// StrategySource supplies the definitions to monitor on each pass, so edits
// to the strategy set take effect without a restart.
type StrategySource interface {
	ActiveDefinitions(ctx context.Context) ([]strategy.Definition, error)
}

// Loop is the top-level monitoring cycle: every interval it evaluates each
// active strategy's entry and exit conditions per asset, reconciles the trade
// set when an entry fires, and unwinds positions when an exit fires.
type Loop struct {
	source      market.Source
	strategies  StrategySource
	reconciler  *reconcile.Engine
	executor    *executor.Executor
	budget      float64
	interval    time.Duration
	candleLimit int

	reconcileEvery time.Duration
	lastReconcile  time.Time
	nowFn          func() time.Time
}

func NewLoop(source market.Source, strategies StrategySource, reconciler *reconcile.Engine, exec *executor.Executor, budget float64) *Loop {
	return &Loop{
		source:         source,
		strategies:     strategies,
		reconciler:     reconciler,
		executor:       exec,
		budget:         budget,
		interval:       DefaultInterval,
		candleLimit:    defaultCandleLimit,
		reconcileEvery: DefaultReconcileInterval,
		lastReconcile:  time.Now(),
		nowFn:          time.Now,
	}
}

// WithInterval overrides the pass cadence.
func (l *Loop) WithInterval(d time.Duration) *Loop {
	if l != nil && d > 0 {
		l.interval = d
	}
	return l
}

// WithReconcileInterval overrides how often every strategy is reconciled
// against fresh candidates independent of entry signals.
func (l *Loop) WithReconcileInterval(d time.Duration) *Loop {
	if l != nil && d > 0 {
		l.reconcileEvery = d
	}
	return l
}

// WithCandleLimit overrides how much history each evaluation fetches.
func (l *Loop) WithCandleLimit(n int) *Loop {
	if l != nil && n > 0 {
		l.candleLimit = n
	}
	return l
}

// Run blocks until ctx is done, executing one pass per interval.
func (l *Loop) Run(ctx context.Context) error {
	if l == nil || l.source == nil || l.strategies == nil {
		return fmt.Errorf("monitor loop not initialized")
	}
	sched := scheduler.NewIntervalScheduler(ctx, "monitor", l.interval)
	sched.RunImmediately = true
	sched.Start(func() { l.Pass(ctx) })
	return nil
}

// Pass runs one evaluation cycle across all active strategies. Strategies are
// evaluated concurrently; a failure in one is logged and never stops the
// others.
func (l *Loop) Pass(ctx context.Context) {
	defs, err := l.strategies.ActiveDefinitions(ctx)
	if err != nil {
		logger.Errorf("monitor: loading strategies failed: %v", err)
		return
	}

	// Trades whose strategy has been deactivated must not keep a position
	// open with nobody watching it.
	keep := make(map[string]bool, len(defs))
	for _, def := range defs {
		keep[def.ID] = true
	}
	if err := l.executor.CloseOrphans(ctx, keep); err != nil {
		logger.Errorf("monitor: closing orphaned trades failed: %v", err)
	}

	if len(defs) == 0 {
		logger.Debugf("monitor: no active strategies")
		return
	}
	reconcileDue := l.takeReconcileDue()
	var g errgroup.Group
	for _, def := range defs {
		def := def
		g.Go(func() error {
			if err := l.evaluateStrategy(ctx, def, reconcileDue); err != nil {
				logger.Errorf("monitor: strategy %s pass failed: %v", def.ID, err)
			}
			return nil
		})
	}
	_ = g.Wait() // per-strategy errors are logged above
}

// takeReconcileDue reports whether the periodic reconciliation window has
// elapsed and, if so, resets it. Passes are serialized, so no lock is needed.
func (l *Loop) takeReconcileDue() bool {
	now := l.nowFn()
	if now.Sub(l.lastReconcile) < l.reconcileEvery {
		return false
	}
	l.lastReconcile = now
	return true
}

// evaluateStrategy resolves the strategy's timeframe once, then walks its
// assets. Each asset gets a fresh per-pass indicator cache; a fetch or
// evaluation failure on one asset skips that asset only.
func (l *Loop) evaluateStrategy(ctx context.Context, def strategy.Definition, reconcileDue bool) error {
	timeframe, err := strategy.ResolveTimeframe(def)
	if err != nil {
		return fmt.Errorf("resolve timeframe: %w", err)
	}

	var entryAssets, exitAssets []string
	for _, asset := range def.AssetsUpper() {
		entry, exit, err := l.evaluateAsset(ctx, def, asset, timeframe)
		if err != nil {
			logger.Warnf("monitor: %s/%s evaluation failed, skipping asset: %v", def.ID, asset, err)
			continue
		}
		if entry {
			entryAssets = append(entryAssets, asset)
		}
		if exit {
			exitAssets = append(exitAssets, asset)
		}
	}

	if len(exitAssets) > 0 {
		logger.Infof("monitor: %s exit signal on %v", def.ID, exitAssets)
		if err := l.executor.CloseActive(ctx, def.ID, trade.CloseReasonExit, exitAssets...); err != nil {
			logger.Errorf("monitor: %s closing positions failed: %v", def.ID, err)
		}
	}

	// Reconciliation runs on its own cadence so stale trades are archived and
	// drifted terms realigned even when no entry signal ever fires; an entry
	// signal just pulls it forward.
	if reconcileDue || len(entryAssets) > 0 {
		if len(entryAssets) > 0 {
			logger.Infof("monitor: %s entry signal on %v", def.ID, entryAssets)
		}
		snapshot, err := l.snapshot(ctx, def.AssetsUpper())
		if err != nil {
			return fmt.Errorf("market snapshot: %w", err)
		}
		if _, err := l.reconciler.Reconcile(ctx, def, snapshot, l.budget); err != nil {
			return fmt.Errorf("reconcile: %w", err)
		}
	}

	// Pending trades are retried every pass, including ones left over from
	// earlier failed executions.
	if err := l.executor.ExecutePending(ctx, def.ID); err != nil {
		logger.Errorf("monitor: %s executing pending trades failed: %v", def.ID, err)
	}
	return nil
}

func (l *Loop) evaluateAsset(ctx context.Context, def strategy.Definition, asset, timeframe string) (entry, exit bool, err error) {
	candles, err := l.source.FetchOHLCV(ctx, asset, timeframe, l.candleLimit, def.MarketType)
	if err != nil {
		return false, false, fmt.Errorf("fetch ohlcv: %w", err)
	}
	window := market.Window{Asset: asset, Interval: timeframe, Candles: candles}
	eval := strategy.NewEvaluator(indicator.NewCache(window))

	// The evaluator treats an empty list as vacuously true; as a signal that
	// would open or close positions unconditionally, so an absent list means
	// no signal here.
	if len(def.EntryConditions) > 0 {
		entry, err = eval.Evaluate(def.EntryConditions)
		if err != nil {
			return false, false, fmt.Errorf("entry conditions: %w", err)
		}
	}
	if len(def.ExitConditions) > 0 {
		exit, err = eval.Evaluate(def.ExitConditions)
		if err != nil {
			return false, false, fmt.Errorf("exit conditions: %w", err)
		}
	}
	return entry, exit, nil
}

func (l *Loop) snapshot(ctx context.Context, assets []string) (market.Snapshot, error) {
	snap := make(market.Snapshot, len(assets))
	for _, asset := range assets {
		ticker, err := l.source.FetchTicker(ctx, asset)
		if err != nil {
			logger.Warnf("monitor: ticker for %s failed: %v", asset, err)
			continue
		}
		snap[asset] = ticker
	}
	if len(snap) == 0 {
		return nil, fmt.Errorf("no tickers available")
	}
	return snap, nil
}
