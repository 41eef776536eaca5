package strategy

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validDefinitionJSON = `{
  "id": "momentum-1",
  "title": "RSI momentum",
  "market_type": "futures",
  "assets": ["BTC/USDT", "ETH/USDT"],
  "entry_conditions": [
    {"indicator": "rsi", "indicator_parameters": {"period": 14}, "operator": "<", "value": 30, "timeframe": "4h"}
  ],
  "exit_conditions": [
    {"indicator": "rsi", "operator": ">", "value": 70, "timeframe": "4h"}
  ],
  "trade_parameters": {"leverage": 3, "order_type": "limit", "position_size": 0.1},
  "risk_parameters": {"stop_loss_pct": 2, "take_profit_pct": 5},
  "active": true
}`

func TestParseDefinitionValid(t *testing.T) {
	def, err := ParseDefinition([]byte(validDefinitionJSON))
	require.NoError(t, err)
	assert.Equal(t, "momentum-1", def.ID)
	assert.Equal(t, []string{"BTC/USDT", "ETH/USDT"}, def.AssetsUpper())
	require.Len(t, def.EntryConditions, 1)
	assert.Equal(t, 30.0, def.EntryConditions[0].Value)
	assert.Equal(t, "4h", def.EntryConditions[0].Timeframe)
	assert.Equal(t, 3.0, def.TradeParameters.Leverage)
}

func TestValidateDefinitionRejects(t *testing.T) {
	mutate := func(f func(doc map[string]any)) []byte {
		var doc map[string]any
		require.NoError(t, json.Unmarshal([]byte(validDefinitionJSON), &doc))
		f(doc)
		out, err := json.Marshal(doc)
		require.NoError(t, err)
		return out
	}

	tests := []struct {
		name string
		raw  []byte
	}{
		{"not json", []byte("{nope")},
		{"missing id", mutate(func(d map[string]any) { delete(d, "id") })},
		{"empty assets", mutate(func(d map[string]any) { d["assets"] = []any{} })},
		{"bad market type", mutate(func(d map[string]any) { d["market_type"] = "options" })},
		{"bad operator", mutate(func(d map[string]any) {
			d["entry_conditions"] = []any{map[string]any{"indicator": "rsi", "operator": "!=", "value": 30}}
		})},
		{"zero timeframe", mutate(func(d map[string]any) {
			d["entry_conditions"] = []any{map[string]any{"indicator": "rsi", "operator": "<", "value": 30, "timeframe": "0m"}}
		})},
		{"bad timeframe unit", mutate(func(d map[string]any) {
			d["entry_conditions"] = []any{map[string]any{"indicator": "rsi", "operator": "<", "value": 30, "timeframe": "3w"}}
		})},
		{"condition missing value", mutate(func(d map[string]any) {
			d["entry_conditions"] = []any{map[string]any{"indicator": "rsi", "operator": "<"}}
		})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, ValidateDefinitionJSON(tt.raw))
		})
	}
}

func TestConditionValueShapes(t *testing.T) {
	t.Run("number", func(t *testing.T) {
		var c Condition
		require.NoError(t, json.Unmarshal([]byte(`{"indicator":"rsi","operator":"<","value":30}`), &c))
		assert.Equal(t, 30.0, c.Value)
		assert.Empty(t, c.ValueIndicator)
	})
	t.Run("numeric string", func(t *testing.T) {
		var c Condition
		require.NoError(t, json.Unmarshal([]byte(`{"indicator":"rsi","operator":"<","value":"30.5"}`), &c))
		assert.Equal(t, 30.5, c.Value)
		assert.Empty(t, c.ValueIndicator)
	})
	t.Run("indicator reference", func(t *testing.T) {
		var c Condition
		require.NoError(t, json.Unmarshal([]byte(`{"indicator":"price","operator":">","value":"sma"}`), &c))
		assert.Zero(t, c.Value)
		assert.Equal(t, "sma", c.ValueIndicator)
	})
}

func TestConditionRoundTrip(t *testing.T) {
	t.Run("threshold", func(t *testing.T) {
		orig := Condition{Indicator: "rsi", Operator: "<", Value: 30, Timeframe: "1h"}
		raw, err := json.Marshal(orig)
		require.NoError(t, err)
		var back Condition
		require.NoError(t, json.Unmarshal(raw, &back))
		assert.Equal(t, orig, back)
	})
	t.Run("zero threshold survives", func(t *testing.T) {
		orig := Condition{Indicator: "macd", Operator: ">", Value: 0}
		raw, err := json.Marshal(orig)
		require.NoError(t, err)
		var back Condition
		require.NoError(t, json.Unmarshal(raw, &back))
		assert.Equal(t, orig, back)
	})
	t.Run("reference", func(t *testing.T) {
		orig := Condition{Indicator: "price", Operator: ">", ValueIndicator: "sma"}
		raw, err := json.Marshal(orig)
		require.NoError(t, err)
		var back Condition
		require.NoError(t, json.Unmarshal(raw, &back))
		assert.Equal(t, orig, back)
	})
}
