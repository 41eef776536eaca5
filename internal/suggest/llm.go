package suggest

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"genstrat/internal/logger"
	"genstrat/internal/market"
	"genstrat/internal/strategy"
	"genstrat/internal/trade"
)

// ChatClient is the minimal surface we need from a chat-completion model.
type ChatClient interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// LLMSuggester asks a model to size trades for the strategy, then validates
// and normalizes what comes back. Anything the model gets wrong (ids, budget
// overruns, unknown assets) is corrected or dropped here, never persisted.
type LLMSuggester struct {
	client ChatClient
}

func NewLLMSuggester(client ChatClient) *LLMSuggester {
	return &LLMSuggester{client: client}
}

func (s *LLMSuggester) GenerateTrades(ctx context.Context, def strategy.Definition, snapshot market.Snapshot, budget float64) ([]trade.Record, error) {
	if s == nil || s.client == nil {
		return nil, fmt.Errorf("llm suggester not initialized")
	}
	if budget <= 0 {
		return nil, fmt.Errorf("budget must be positive, got %v", budget)
	}
	userPrompt, err := buildPrompt(def, snapshot, budget)
	if err != nil {
		return nil, err
	}
	reply, err := s.client.Complete(ctx, suggestionSystemPrompt, userPrompt)
	if err != nil {
		return nil, fmt.Errorf("completion failed: %w", err)
	}
	candidates, err := parseCandidates(reply)
	if err != nil {
		return nil, fmt.Errorf("parse candidates: %w", err)
	}
	return s.normalize(def, snapshot, budget, candidates), nil
}

// normalize enforces the invariants the model cannot be trusted with: ids
// are recomputed from strategy and asset, assets must belong to the
// definition, and allocations are scaled down if their sum exceeds budget.
func (s *LLMSuggester) normalize(def strategy.Definition, snapshot market.Snapshot, budget float64, candidates []trade.Record) []trade.Record {
	known := make(map[string]bool, len(def.Assets))
	for _, a := range def.AssetsUpper() {
		known[a] = true
	}
	out := make([]trade.Record, 0, len(candidates))
	var total float64
	seen := make(map[string]bool, len(candidates))
	for _, rec := range candidates {
		if !known[rec.Asset] {
			logger.Warnf("llm suggester: dropping candidate for unknown asset %s", rec.Asset)
			continue
		}
		rec.TradeID = candidateID(def.ID, rec.Asset)
		if seen[rec.TradeID] {
			logger.Warnf("llm suggester: duplicate candidate for %s, keeping first", rec.Asset)
			continue
		}
		seen[rec.TradeID] = true
		rec.StrategyID = def.ID
		if rec.MarketType == "" {
			rec.MarketType = strings.ToLower(strings.TrimSpace(def.MarketType))
		}
		if rec.OrderType == "" {
			rec.OrderType = strings.ToLower(strings.TrimSpace(def.TradeParameters.OrderType))
		}
		if rec.EntryPrice <= 0 {
			if ticker, ok := snapshot[rec.Asset]; ok {
				rec.EntryPrice = ticker.Last
			}
		}
		if rec.EntryPrice <= 0 || rec.Amount <= 0 {
			logger.Warnf("llm suggester: dropping unpriced candidate for %s", rec.Asset)
			continue
		}
		if rec.BudgetAllocation <= 0 {
			rec.BudgetAllocation = rec.Amount * rec.EntryPrice
		}
		if rec.StopLoss == 0 && rec.TakeProfit == 0 {
			applyRiskLevels(&rec, def)
		}
		total += rec.BudgetAllocation
		out = append(out, rec)
	}
	if total > budget && total > 0 {
		scale := budget / total
		logger.Warnf("llm suggester: allocations %.2f exceed budget %.2f, scaling by %.3f", total, budget, scale)
		for i := range out {
			out[i].BudgetAllocation *= scale
			out[i].Amount *= scale
		}
	}
	return out
}

const suggestionSystemPrompt = `You are a trade sizing assistant. Given a strategy and current market data, respond with ONLY a JSON array of trade objects. Each object has: asset, side ("buy" or "sell"), amount, price, budget_allocation, leverage, order_type, stop_loss, take_profit, trailing_stop. The sum of budget_allocation across all trades must not exceed the stated budget. No prose, no markdown.`

func buildPrompt(def strategy.Definition, snapshot market.Snapshot, budget float64) (string, error) {
	defJSON, err := json.MarshalIndent(def, "", "  ")
	if err != nil {
		return "", err
	}
	assets := def.AssetsUpper()
	sort.Strings(assets)
	var sb strings.Builder
	sb.WriteString("Strategy definition:\n")
	sb.Write(defJSON)
	sb.WriteString(fmt.Sprintf("\n\nTotal budget: %.2f USDT\n\nCurrent market data:\n", budget))
	for _, asset := range assets {
		ticker, ok := snapshot[asset]
		if !ok {
			continue
		}
		sb.WriteString(fmt.Sprintf("- %s last=%.8g high=%.8g low=%.8g volume=%.8g\n",
			asset, ticker.Last, ticker.High, ticker.Low, ticker.BaseVolume))
	}
	sb.WriteString("\nPropose at most one trade per asset.")
	return sb.String(), nil
}
