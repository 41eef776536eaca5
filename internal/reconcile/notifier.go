package reconcile

import "genstrat/internal/logger"

// LogNotifier writes reconciliation outcomes to the application log. It is
// the default sink when no external channel is configured.
type LogNotifier struct{}

func (LogNotifier) OnTradesUpdated(strategyID string, result Result) {
	for _, rec := range result.Created {
		logger.Infof("strategy %s: opened %s %s %s amount=%v", strategyID, rec.TradeID, rec.Side, rec.Asset, rec.Amount)
	}
	for _, rec := range result.Updated {
		logger.Infof("strategy %s: updated %s terms amount=%v entry=%v", strategyID, rec.TradeID, rec.Amount, rec.EntryPrice)
	}
	for _, rec := range result.Archived {
		logger.Warnf("strategy %s: archived %s (%s)", strategyID, rec.TradeID, rec.CloseReason)
	}
}
