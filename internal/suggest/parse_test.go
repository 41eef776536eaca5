package suggest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCandidatesPlainArray(t *testing.T) {
	raw := `[{"asset":"BTC/USDT","side":"buy","amount":0.5,"price":40000,"budget_allocation":20000}]`
	got, err := parseCandidates(raw)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "BTC/USDT", got[0].Asset)
	assert.Equal(t, "buy", got[0].Side)
	assert.Equal(t, 0.5, got[0].Amount)
	assert.Equal(t, 40000.0, got[0].EntryPrice)
}

func TestParseCandidatesSurvivesFences(t *testing.T) {
	raw := "```json\n[{\"asset\":\"eth/usdt\",\"side\":\"SELL\",\"amount\":\"2\",\"price\":\"2500.5\"}]\n```"
	got, err := parseCandidates(raw)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "ETH/USDT", got[0].Asset)
	assert.Equal(t, "sell", got[0].Side)
	assert.Equal(t, 2.0, got[0].Amount, "string-typed numbers are coerced")
	assert.Equal(t, 2500.5, got[0].EntryPrice)
}

func TestParseCandidatesSurroundingProse(t *testing.T) {
	raw := `Here are my suggestions:
[{"asset":"BTC/USDT","side":"buy","amount":1,"price":100}]
Let me know if you want adjustments.`
	got, err := parseCandidates(raw)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestParseCandidatesEntryPriceAlias(t *testing.T) {
	raw := `[{"asset":"BTC/USDT","side":"buy","amount":1,"entry_price":123}]`
	got, err := parseCandidates(raw)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 123.0, got[0].EntryPrice)
}

func TestParseCandidatesSkipsMalformedEntries(t *testing.T) {
	raw := `[
	  {"asset":"BTC/USDT","side":"buy","amount":1,"price":100},
	  {"side":"buy","amount":1},
	  {"asset":"ETH/USDT","side":"hold","amount":1}
	]`
	got, err := parseCandidates(raw)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "BTC/USDT", got[0].Asset)
}

func TestParseCandidatesErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"no array", "I could not find any trades worth taking."},
		{"broken json", "[{\"asset\":"},
		{"all malformed", `[{"side":"buy"}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseCandidates(tt.raw)
			assert.Error(t, err)
		})
	}
}
