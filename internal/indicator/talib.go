package indicator

import (
	"math"

	"github.com/markcheno/go-talib"

	"genstrat/internal/market"
)

// NewTALibProvider is the primary backend: TA-Lib ports for the common
// indicator set. Multi-output calls keep only their first series. Each entry
// checks the window against the indicator's lookback before dispatching,
// because the talib port indexes past short inputs; too few bars yields an
// empty series so the evaluator fails closed.
func NewTALibProvider() Provider {
	return &registryProvider{
		name: "talib",
		table: map[string]ComputeFunc{
			"sma": func(w market.Window, p map[string]float64) []float64 {
				period := paramInt(p, "period", 20)
				if len(w.Candles) < period {
					return nil
				}
				return trimWarmup(talib.Sma(w.Closes(), period), period-1)
			},
			"ema": func(w market.Window, p map[string]float64) []float64 {
				period := paramInt(p, "period", 20)
				if len(w.Candles) < period {
					return nil
				}
				return trimWarmup(talib.Ema(w.Closes(), period), period-1)
			},
			"wma": func(w market.Window, p map[string]float64) []float64 {
				period := paramInt(p, "period", 20)
				if len(w.Candles) < period {
					return nil
				}
				return trimWarmup(talib.Wma(w.Closes(), period), period-1)
			},
			"rsi": func(w market.Window, p map[string]float64) []float64 {
				period := paramInt(p, "period", 14)
				if len(w.Candles) <= period {
					return nil
				}
				return trimWarmup(talib.Rsi(w.Closes(), period), period)
			},
			"macd": func(w market.Window, p map[string]float64) []float64 {
				fast := paramInt(p, "fast", 12)
				slow := paramInt(p, "slow", 26)
				signal := paramInt(p, "signal", 9)
				lookback := slow + signal - 2
				if len(w.Candles) <= lookback {
					return nil
				}
				line, _, _ := talib.Macd(w.Closes(), fast, slow, signal)
				return trimWarmup(line, lookback)
			},
			"atr": func(w market.Window, p map[string]float64) []float64 {
				period := paramInt(p, "period", 14)
				if len(w.Candles) <= period {
					return nil
				}
				return trimWarmup(talib.Atr(w.Highs(), w.Lows(), w.Closes(), period), period)
			},
			"roc": func(w market.Window, p map[string]float64) []float64 {
				period := paramInt(p, "period", 9)
				if len(w.Candles) <= period {
					return nil
				}
				return trimWarmup(talib.Roc(w.Closes(), period), period)
			},
			"adx": func(w market.Window, p map[string]float64) []float64 {
				period := paramInt(p, "period", 14)
				lookback := 2*period - 1
				if len(w.Candles) <= lookback {
					return nil
				}
				return trimWarmup(talib.Adx(w.Highs(), w.Lows(), w.Closes(), period), lookback)
			},
			"mfi": func(w market.Window, p map[string]float64) []float64 {
				period := paramInt(p, "period", 14)
				if len(w.Candles) <= period {
					return nil
				}
				return trimWarmup(talib.Mfi(w.Highs(), w.Lows(), w.Closes(), w.Volumes(), period), period)
			},
			"obv": func(w market.Window, p map[string]float64) []float64 {
				if len(w.Candles) == 0 {
					return nil
				}
				return trimWarmup(talib.Obv(w.Closes(), w.Volumes()), 0)
			},
			"willr": func(w market.Window, p map[string]float64) []float64 {
				period := paramInt(p, "period", 14)
				if len(w.Candles) < period {
					return nil
				}
				return trimWarmup(talib.WillR(w.Highs(), w.Lows(), w.Closes(), period), period-1)
			},
			"stoch": func(w market.Window, p map[string]float64) []float64 {
				fastK := paramInt(p, "fastk_period", 14)
				slowK := paramInt(p, "slowk_period", 3)
				slowD := paramInt(p, "slowd_period", 3)
				lookback := fastK + slowK + slowD - 3
				if len(w.Candles) <= lookback {
					return nil
				}
				k, _ := talib.Stoch(w.Highs(), w.Lows(), w.Closes(),
					fastK, slowK, talib.SMA, slowD, talib.SMA)
				return trimWarmup(k, lookback)
			},
			"bbands": func(w market.Window, p map[string]float64) []float64 {
				period := paramInt(p, "period", 20)
				if len(w.Candles) < period {
					return nil
				}
				dev := paramFloat(p, "nbdev", 2)
				upper, _, _ := talib.BBands(w.Closes(), period, dev, dev, talib.SMA)
				return trimWarmup(upper, period-1)
			},
		},
	}
}

// trimWarmup drops the lookback region the talib port fills with zeros, then
// filters NaN/Inf, so the last sample is always a real value.
func trimWarmup(src []float64, lookback int) []float64 {
	if lookback < 0 {
		lookback = 0
	}
	if len(src) <= lookback {
		return nil
	}
	out := make([]float64, 0, len(src)-lookback)
	for _, v := range src[lookback:] {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		out = append(out, v)
	}
	return out
}
