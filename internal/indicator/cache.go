package indicator

import (
	"errors"
	"fmt"

	"genstrat/internal/market"
)

// priceNames are literal references to the raw close column; they bypass the
// provider chain entirely.
var priceNames = map[string]bool{
	"price": true,
	"close": true,
}

// Cache memoizes indicator series for one asset's window during a single
// evaluation pass. Construct one per pass and discard it afterwards; entries
// are never shared across assets or passes.
type Cache struct {
	window market.Window
	chain  []Provider
	series map[string][]float64
}

func NewCache(window market.Window, providers ...Provider) *Cache {
	if len(providers) == 0 {
		providers = []Provider{NewTALibProvider(), NewBuiltinProvider()}
	}
	return &Cache{
		window: window,
		chain:  providers,
		series: make(map[string][]float64),
	}
}

// GetOrCompute returns the series for (name, params), computing it at most
// once per distinct canonical key. Providers are tried in chain order; a
// provider signals ErrIndicatorNotFound to pass to the next.
func (c *Cache) GetOrCompute(name string, params map[string]float64) ([]float64, error) {
	if c == nil {
		return nil, fmt.Errorf("indicator cache not initialized")
	}
	key := CacheKey(name, params)
	if cached, ok := c.series[key]; ok {
		return cached, nil
	}
	if priceNames[canonicalName(name)] {
		closes := c.window.Closes()
		c.series[key] = closes
		return closes, nil
	}
	for _, provider := range c.chain {
		out, err := provider.Compute(c.window, name, params)
		if err == nil {
			c.series[key] = out
			return out, nil
		}
		if errors.Is(err, ErrIndicatorNotFound) {
			continue
		}
		return nil, fmt.Errorf("provider %s: %w", provider.Name(), err)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedIndicator, canonicalName(name))
}

// Window exposes the pass's market data for callers that need raw bars.
func (c *Cache) Window() market.Window {
	if c == nil {
		return market.Window{}
	}
	return c.window
}
