package indicator

import "genstrat/internal/market"

// NewBuiltinProvider is the fallback backend: hand-computed series the TA-Lib
// port does not cover.
func NewBuiltinProvider() Provider {
	return &registryProvider{
		name: "builtin",
		table: map[string]ComputeFunc{
			"vwap":          computeVWAP,
			"typical_price": computeTypicalPrice,
			"median_price": func(w market.Window, _ map[string]float64) []float64 {
				out := make([]float64, len(w.Candles))
				for i, c := range w.Candles {
					out[i] = (c.High + c.Low) / 2
				}
				return out
			},
			"volume": func(w market.Window, _ map[string]float64) []float64 {
				return w.Volumes()
			},
		},
	}
}

func computeTypicalPrice(w market.Window, _ map[string]float64) []float64 {
	out := make([]float64, len(w.Candles))
	for i, c := range w.Candles {
		out[i] = (c.High + c.Low + c.Close) / 3
	}
	return out
}

func computeVWAP(w market.Window, _ map[string]float64) []float64 {
	out := make([]float64, len(w.Candles))
	var cumPV, cumVol float64
	for i, c := range w.Candles {
		typical := (c.High + c.Low + c.Close) / 3
		cumPV += typical * c.Volume
		cumVol += c.Volume
		if cumVol > 0 {
			out[i] = cumPV / cumVol
		} else {
			out[i] = typical
		}
	}
	return out
}
