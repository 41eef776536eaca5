package market

import "context"

// Ticker is a point-in-time quote for one asset.
type Ticker struct {
	Asset      string  `json:"asset"`
	Last       float64 `json:"last"`
	High       float64 `json:"high"`
	Low        float64 `json:"low"`
	BaseVolume float64 `json:"base_volume"`
}

// Snapshot maps asset -> latest ticker; handed to the suggestion service.
type Snapshot map[string]Ticker

// Source supplies market data. Implementations must return candles in
// ascending OpenTime order.
type Source interface {
	FetchOHLCV(ctx context.Context, asset, interval string, limit int, marketType string) ([]Candle, error)

	FetchTicker(ctx context.Context, asset string) (Ticker, error)

	Close() error
}
