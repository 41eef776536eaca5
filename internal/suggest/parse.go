package suggest

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"genstrat/internal/trade"
)

// extractJSONArray pulls the first JSON array out of a model reply, tolerating
// markdown fences and prose around it.
func extractJSONArray(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("empty response")
	}
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		if idx := strings.LastIndex(raw, "```"); idx >= 0 {
			raw = raw[:idx]
		}
		raw = strings.TrimSpace(raw)
	}
	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start < 0 || end < start {
		return "", fmt.Errorf("no JSON array in response")
	}
	candidate := raw[start : end+1]
	if !gjson.Valid(candidate) {
		return "", fmt.Errorf("response is not valid JSON")
	}
	return candidate, nil
}

// parseCandidates decodes one trade per array element. Numeric fields arrive
// as numbers or numeric strings depending on the model; gjson's Float()
// handles both.
func parseCandidates(raw string) ([]trade.Record, error) {
	arr, err := extractJSONArray(raw)
	if err != nil {
		return nil, err
	}
	var out []trade.Record
	var firstErr error
	gjson.Parse(arr).ForEach(func(_, item gjson.Result) bool {
		if !item.IsObject() {
			return true
		}
		rec, err := candidateFromJSON(item)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			return true
		}
		out = append(out, rec)
		return true
	})
	if len(out) == 0 && firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

func candidateFromJSON(item gjson.Result) (trade.Record, error) {
	asset := strings.ToUpper(strings.TrimSpace(item.Get("asset").String()))
	if asset == "" {
		return trade.Record{}, fmt.Errorf("candidate missing asset: %s", item.Raw)
	}
	side := strings.ToLower(strings.TrimSpace(item.Get("side").String()))
	if side != "buy" && side != "sell" {
		return trade.Record{}, fmt.Errorf("candidate for %s has invalid side %q", asset, side)
	}
	rec := trade.Record{
		TradeID:          strings.TrimSpace(item.Get("trade_id").String()),
		StrategyID:       strings.TrimSpace(item.Get("strategy_id").String()),
		Asset:            asset,
		Side:             side,
		Amount:           item.Get("amount").Float(),
		EntryPrice:       item.Get("price").Float(),
		BudgetAllocation: item.Get("budget_allocation").Float(),
		Leverage:         item.Get("leverage").Float(),
		OrderType:        strings.ToLower(strings.TrimSpace(item.Get("order_type").String())),
		MarketType:       strings.ToLower(strings.TrimSpace(item.Get("market_type").String())),
		StopLoss:         item.Get("stop_loss").Float(),
		TakeProfit:       item.Get("take_profit").Float(),
		TrailingStop:     item.Get("trailing_stop").Float(),
	}
	if rec.EntryPrice == 0 {
		rec.EntryPrice = item.Get("entry_price").Float()
	}
	return rec, nil
}
