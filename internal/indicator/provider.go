package indicator

import (
	"errors"
	"sort"
	"strconv"
	"strings"

	"genstrat/internal/market"
)

var (
	// ErrIndicatorNotFound is returned by a provider that does not recognize
	// the requested name; the cache then tries the next provider in the chain.
	ErrIndicatorNotFound = errors.New("indicator not found")
	// ErrUnsupportedIndicator is returned once every provider in the chain has
	// been exhausted.
	ErrUnsupportedIndicator = errors.New("unsupported indicator")
)

// Provider computes one named indicator series over a market-data window.
// Multi-column indicators are reduced to their first column before returning.
type Provider interface {
	Name() string
	Compute(w market.Window, name string, params map[string]float64) ([]float64, error)
}

// ComputeFunc is a single registered indicator computation.
type ComputeFunc func(w market.Window, params map[string]float64) []float64

// registryProvider resolves indicator names through an explicit table built at
// startup. No reflection, no dynamic lookup.
type registryProvider struct {
	name  string
	table map[string]ComputeFunc
}

func (p *registryProvider) Name() string { return p.name }

func (p *registryProvider) Compute(w market.Window, name string, params map[string]float64) ([]float64, error) {
	fn, ok := p.table[canonicalName(name)]
	if !ok {
		return nil, ErrIndicatorNotFound
	}
	return fn(w, params), nil
}

func canonicalName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// CacheKey canonicalizes an (indicator, params) pair: parameters are rendered
// in sorted key order so logically equal maps share one cache entry.
func CacheKey(name string, params map[string]float64) string {
	var b strings.Builder
	b.WriteString(canonicalName(name))
	if len(params) == 0 {
		return b.String()
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return strings.ToLower(keys[i]) < strings.ToLower(keys[j])
	})
	for _, k := range keys {
		b.WriteString("|")
		b.WriteString(strings.ToLower(strings.TrimSpace(k)))
		b.WriteString("=")
		b.WriteString(strconv.FormatFloat(params[k], 'g', -1, 64))
	}
	return b.String()
}

func paramInt(params map[string]float64, key string, def int) int {
	if params == nil {
		return def
	}
	if v, ok := params[key]; ok && v > 0 {
		return int(v)
	}
	return def
}

func paramFloat(params map[string]float64, key string, def float64) float64 {
	if params == nil {
		return def
	}
	if v, ok := params[key]; ok && v != 0 {
		return v
	}
	return def
}
