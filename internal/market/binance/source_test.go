package binance

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToExchangeSymbol(t *testing.T) {
	assert.Equal(t, "BTCUSDT", toExchangeSymbol("BTC/USDT"))
	assert.Equal(t, "BTCUSDT", toExchangeSymbol(" btc/usdt "))
	assert.Equal(t, "ETHUSDT", toExchangeSymbol("ETHUSDT"))
	assert.Equal(t, "", toExchangeSymbol("  "))
}

func TestParseFloat(t *testing.T) {
	assert.Equal(t, 123.45, parseFloat("123.45"))
	assert.Equal(t, 123.45, parseFloat(" 123.45 "))
	assert.Equal(t, 0.0, parseFloat("not-a-number"))
	assert.Equal(t, 0.0, parseFloat(""))
}
