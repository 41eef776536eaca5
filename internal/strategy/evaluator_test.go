package strategy

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"genstrat/internal/indicator"
	"genstrat/internal/market"
)

func evalWindow(closes ...float64) market.Window {
	candles := make([]market.Candle, len(closes))
	for i, c := range closes {
		candles[i] = market.Candle{
			OpenTime:  int64(i) * 60_000,
			CloseTime: int64(i+1)*60_000 - 1,
			Open:      c,
			High:      c * 1.01,
			Low:       c * 0.99,
			Close:     c,
			Volume:    50,
		}
	}
	return market.Window{Asset: "ETH/USDT", Interval: "1m", Candles: candles}
}

func newEvaluator(w market.Window) *Evaluator {
	return NewEvaluator(indicator.NewCache(w))
}

func TestEvaluateEmptyConditionsIsTrue(t *testing.T) {
	eval := newEvaluator(evalWindow(10, 11, 12))
	ok, err := eval.Evaluate(nil)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEvaluateThreshold(t *testing.T) {
	tests := []struct {
		name     string
		operator string
		value    float64
		want     bool
	}{
		{"greater true", ">", 11, true},
		{"greater false", ">", 12, false},
		{"less false", "<", 11, false},
		{"gte boundary", ">=", 12, true},
		{"lte boundary", "<=", 12, true},
		{"equal", "==", 12, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eval := newEvaluator(evalWindow(10, 11, 12))
			got, err := eval.Evaluate([]Condition{
				{Indicator: "price", Operator: tt.operator, Value: tt.value},
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluateIsConjunction(t *testing.T) {
	eval := newEvaluator(evalWindow(10, 11, 12))
	got, err := eval.Evaluate([]Condition{
		{Indicator: "price", Operator: ">", Value: 11},
		{Indicator: "price", Operator: "<", Value: 11},
	})
	require.NoError(t, err)
	assert.False(t, got, "one failing condition fails the whole signal")
}

func TestEvaluateMissingDataFailsClosed(t *testing.T) {
	// Empty window: the price series has no samples. That is a data problem,
	// not a configuration problem, so the signal is false with no error.
	eval := newEvaluator(evalWindow())
	got, err := eval.Evaluate([]Condition{
		{Indicator: "price", Operator: ">", Value: 1},
	})
	require.NoError(t, err)
	assert.False(t, got)
}

func TestEvaluateShortHistoryFailsClosed(t *testing.T) {
	// Three bars cannot feed a 14-period RSI. The condition must resolve to
	// false without an error, same as any other missing-data case.
	eval := newEvaluator(evalWindow(10, 11, 12))
	got, err := eval.Evaluate([]Condition{
		{Indicator: "rsi", Params: map[string]float64{"period": 14}, Operator: "<", Value: 30},
	})
	require.NoError(t, err)
	assert.False(t, got)
}

func TestEvaluateUnsupportedIndicatorIsError(t *testing.T) {
	eval := newEvaluator(evalWindow(10, 11, 12))
	_, err := eval.Evaluate([]Condition{
		{Indicator: "bogus", Operator: ">", Value: 1},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, indicator.ErrUnsupportedIndicator))
}

func TestEvaluateUnsupportedOperatorIsError(t *testing.T) {
	eval := newEvaluator(evalWindow(10, 11, 12))
	_, err := eval.Evaluate([]Condition{
		{Indicator: "price", Operator: "!=", Value: 1},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedOperator))
}

func TestEvaluateIndicatorReference(t *testing.T) {
	// On a rising series the last close sits above the running vwap.
	eval := newEvaluator(evalWindow(10, 11, 12))
	got, err := eval.Evaluate([]Condition{
		{Indicator: "price", Operator: ">", ValueIndicator: "vwap"},
	})
	require.NoError(t, err)
	assert.True(t, got)

	eval = newEvaluator(evalWindow(12, 11, 10))
	got, err = eval.Evaluate([]Condition{
		{Indicator: "price", Operator: ">", ValueIndicator: "vwap"},
	})
	require.NoError(t, err)
	assert.False(t, got)
}

func TestEvaluateBadReferenceIsError(t *testing.T) {
	eval := newEvaluator(evalWindow(10, 11, 12))
	_, err := eval.Evaluate([]Condition{
		{Indicator: "price", Operator: ">", ValueIndicator: "bogus"},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, indicator.ErrUnsupportedIndicator))
}
