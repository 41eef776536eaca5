package market

// Candle is one OHLCV bar. Timestamps are unix milliseconds.
type Candle struct {
	OpenTime  int64   `json:"open_time"`
	CloseTime int64   `json:"close_time"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

// Window is the market-data slice one evaluation pass works on: bars in
// ascending OpenTime order with a fixed sampling interval.
type Window struct {
	Asset    string
	Interval string
	Candles  []Candle
}

// Closes returns the close-price column of the window.
func (w Window) Closes() []float64 {
	out := make([]float64, len(w.Candles))
	for i, c := range w.Candles {
		out[i] = c.Close
	}
	return out
}

func (w Window) Highs() []float64 {
	out := make([]float64, len(w.Candles))
	for i, c := range w.Candles {
		out[i] = c.High
	}
	return out
}

func (w Window) Lows() []float64 {
	out := make([]float64, len(w.Candles))
	for i, c := range w.Candles {
		out[i] = c.Low
	}
	return out
}

func (w Window) Volumes() []float64 {
	out := make([]float64, len(w.Candles))
	for i, c := range w.Candles {
		out[i] = c.Volume
	}
	return out
}
