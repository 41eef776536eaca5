package indicator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"genstrat/internal/market"
)

// countingProvider records how many times each indicator is computed.
type countingProvider struct {
	inner Provider
	calls map[string]int
}

func newCountingProvider(inner Provider) *countingProvider {
	return &countingProvider{inner: inner, calls: make(map[string]int)}
}

func (p *countingProvider) Name() string { return "counting-" + p.inner.Name() }

func (p *countingProvider) Compute(w market.Window, name string, params map[string]float64) ([]float64, error) {
	out, err := p.inner.Compute(w, name, params)
	if err == nil {
		p.calls[CacheKey(name, params)]++
	}
	return out, err
}

func testWindow(closes ...float64) market.Window {
	candles := make([]market.Candle, len(closes))
	for i, c := range closes {
		candles[i] = market.Candle{
			OpenTime:  int64(i) * 60_000,
			CloseTime: int64(i+1)*60_000 - 1,
			Open:      c,
			High:      c * 1.01,
			Low:       c * 0.99,
			Close:     c,
			Volume:    100,
		}
	}
	return market.Window{Asset: "BTC/USDT", Interval: "1m", Candles: candles}
}

func TestCacheMemoizesPerKey(t *testing.T) {
	counting := newCountingProvider(NewTALibProvider())
	cache := NewCache(testWindow(1, 2, 3, 4, 5, 6, 7, 8), counting)

	first, err := cache.GetOrCompute("sma", map[string]float64{"period": 3})
	require.NoError(t, err)
	require.NotEmpty(t, first)

	second, err := cache.GetOrCompute("SMA", map[string]float64{"period": 3})
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, counting.calls[CacheKey("sma", map[string]float64{"period": 3})],
		"same canonical key must compute once")

	_, err = cache.GetOrCompute("sma", map[string]float64{"period": 5})
	require.NoError(t, err)
	assert.Equal(t, 1, counting.calls[CacheKey("sma", map[string]float64{"period": 5})],
		"different params are a different entry")
}

func TestCacheFallsThroughProviderChain(t *testing.T) {
	cache := NewCache(testWindow(10, 11, 12), NewTALibProvider(), NewBuiltinProvider())

	// vwap is not in the talib table; the builtin provider must serve it.
	series, err := cache.GetOrCompute("vwap", nil)
	require.NoError(t, err)
	assert.Len(t, series, 3)
}

func TestCacheUnsupportedIndicator(t *testing.T) {
	cache := NewCache(testWindow(10, 11, 12))
	_, err := cache.GetOrCompute("no_such_indicator", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedIndicator))
}

func TestCachePriceLiteral(t *testing.T) {
	for _, name := range []string{"price", "close", "PRICE"} {
		t.Run(name, func(t *testing.T) {
			cache := NewCache(testWindow(10, 11, 12))
			series, err := cache.GetOrCompute(name, nil)
			require.NoError(t, err)
			assert.Equal(t, []float64{10, 11, 12}, series)
		})
	}
}

func TestCacheKeyCanonicalization(t *testing.T) {
	a := CacheKey("RSI", map[string]float64{"Period": 14})
	b := CacheKey(" rsi ", map[string]float64{"Period": 14})
	assert.Equal(t, a, b)

	c := CacheKey("macd", map[string]float64{"fast": 12, "slow": 26})
	d := CacheKey("macd", map[string]float64{"slow": 26, "fast": 12})
	assert.Equal(t, c, d, "param order must not matter")

	assert.NotEqual(t,
		CacheKey("sma", map[string]float64{"period": 3}),
		CacheKey("sma", map[string]float64{"period": 5}))
}

func TestShortWindowComputesNothing(t *testing.T) {
	cache := NewCache(testWindow(10, 11, 12))

	// Fewer bars than the lookback must not reach the talib backend at all;
	// the evaluator treats the empty series as no-data.
	for _, tc := range []struct {
		name   string
		params map[string]float64
	}{
		{"rsi", map[string]float64{"period": 14}},
		{"sma", map[string]float64{"period": 20}},
		{"macd", nil},
		{"adx", nil},
		{"stoch", nil},
	} {
		t.Run(tc.name, func(t *testing.T) {
			series, err := cache.GetOrCompute(tc.name, tc.params)
			require.NoError(t, err)
			assert.Empty(t, series)
		})
	}
}

func TestSanitizeDropsWarmup(t *testing.T) {
	counting := newCountingProvider(NewTALibProvider())
	cache := NewCache(testWindow(1, 2, 3, 4, 5, 6, 7, 8, 9, 10), counting)
	series, err := cache.GetOrCompute("sma", map[string]float64{"period": 5})
	require.NoError(t, err)
	for _, v := range series {
		assert.False(t, v != v, "no NaN may survive")
	}
	assert.Len(t, series, 6, "warmup samples are trimmed")
}
