package binance

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"genstrat/internal/market"

	gobinance "github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/futures"
)

const maxHistoryLimit = 1500

// Config carries endpoint overrides; zero values use the SDK defaults.
type Config struct {
	RESTBaseURL        string
	FuturesRESTBaseURL string
	HTTPTimeout        time.Duration
}

func (c Config) withDefaults() Config {
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = 15 * time.Second
	}
	return c
}

// Source implements market.Source on top of the go-binance SDK. Spot and
// margin requests go through the spot client, futures through the futures
// client.
type Source struct {
	cfg     Config
	spot    *gobinance.Client
	futures *futures.Client
}

func New(cfg Config) *Source {
	final := cfg.withDefaults()
	httpClient := &http.Client{Timeout: final.HTTPTimeout}

	spot := gobinance.NewClient("", "")
	if url := strings.TrimSpace(final.RESTBaseURL); url != "" {
		spot.BaseURL = url
	}
	spot.HTTPClient = httpClient

	fut := futures.NewClient("", "")
	if url := strings.TrimSpace(final.FuturesRESTBaseURL); url != "" {
		fut.BaseURL = url
	}
	fut.HTTPClient = httpClient

	return &Source{cfg: final, spot: spot, futures: fut}
}

func (s *Source) FetchOHLCV(ctx context.Context, asset, interval string, limit int, marketType string) ([]market.Candle, error) {
	if s == nil {
		return nil, fmt.Errorf("binance source not initialized")
	}
	if limit <= 0 {
		limit = 100
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	symbol := toExchangeSymbol(asset)
	if symbol == "" {
		return nil, fmt.Errorf("asset is required")
	}
	interval = strings.ToLower(strings.TrimSpace(interval))
	if interval == "" {
		return nil, fmt.Errorf("interval is required")
	}
	if strings.EqualFold(strings.TrimSpace(marketType), "futures") {
		return s.fetchFuturesKlines(ctx, symbol, interval, limit)
	}
	return s.fetchSpotKlines(ctx, symbol, interval, limit)
}

func (s *Source) fetchSpotKlines(ctx context.Context, symbol, interval string, limit int) ([]market.Candle, error) {
	kls, err := s.spot.NewKlinesService().Symbol(symbol).Interval(interval).Limit(limit).Do(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]market.Candle, 0, len(kls))
	for _, kl := range kls {
		if kl == nil {
			continue
		}
		out = append(out, market.Candle{
			OpenTime:  kl.OpenTime,
			CloseTime: kl.CloseTime,
			Open:      parseFloat(kl.Open),
			High:      parseFloat(kl.High),
			Low:       parseFloat(kl.Low),
			Close:     parseFloat(kl.Close),
			Volume:    parseFloat(kl.Volume),
		})
	}
	return out, nil
}

func (s *Source) fetchFuturesKlines(ctx context.Context, symbol, interval string, limit int) ([]market.Candle, error) {
	kls, err := s.futures.NewKlinesService().Symbol(symbol).Interval(interval).Limit(limit).Do(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]market.Candle, 0, len(kls))
	for _, kl := range kls {
		if kl == nil {
			continue
		}
		out = append(out, market.Candle{
			OpenTime:  kl.OpenTime,
			CloseTime: kl.CloseTime,
			Open:      parseFloat(kl.Open),
			High:      parseFloat(kl.High),
			Low:       parseFloat(kl.Low),
			Close:     parseFloat(kl.Close),
			Volume:    parseFloat(kl.Volume),
		})
	}
	return out, nil
}

func (s *Source) FetchTicker(ctx context.Context, asset string) (market.Ticker, error) {
	if s == nil {
		return market.Ticker{}, fmt.Errorf("binance source not initialized")
	}
	symbol := toExchangeSymbol(asset)
	if symbol == "" {
		return market.Ticker{}, fmt.Errorf("asset is required")
	}
	stats, err := s.spot.NewListPriceChangeStatsService().Symbol(symbol).Do(ctx)
	if err != nil {
		return market.Ticker{}, err
	}
	if len(stats) == 0 || stats[0] == nil {
		return market.Ticker{}, fmt.Errorf("no ticker for %s", asset)
	}
	st := stats[0]
	return market.Ticker{
		Asset:      strings.ToUpper(strings.TrimSpace(asset)),
		Last:       parseFloat(st.LastPrice),
		High:       parseFloat(st.HighPrice),
		Low:        parseFloat(st.LowPrice),
		BaseVolume: parseFloat(st.Volume),
	}, nil
}

// FetchDepth returns the summed base volume resting on each side of the top
// of book. Callers use it as a liquidity gate before sizing an order.
func (s *Source) FetchDepth(ctx context.Context, asset, marketType string, limit int) (bidVolume, askVolume float64, err error) {
	if s == nil {
		return 0, 0, fmt.Errorf("binance source not initialized")
	}
	symbol := toExchangeSymbol(asset)
	if symbol == "" {
		return 0, 0, fmt.Errorf("asset is required")
	}
	if limit <= 0 {
		limit = 20
	}
	if strings.EqualFold(strings.TrimSpace(marketType), "futures") {
		res, err := s.futures.NewDepthService().Symbol(symbol).Limit(limit).Do(ctx)
		if err != nil {
			return 0, 0, err
		}
		for _, b := range res.Bids {
			bidVolume += parseFloat(b.Quantity)
		}
		for _, a := range res.Asks {
			askVolume += parseFloat(a.Quantity)
		}
		return bidVolume, askVolume, nil
	}
	res, err := s.spot.NewDepthService().Symbol(symbol).Limit(limit).Do(ctx)
	if err != nil {
		return 0, 0, err
	}
	for _, b := range res.Bids {
		bidVolume += parseFloat(b.Quantity)
	}
	for _, a := range res.Asks {
		askVolume += parseFloat(a.Quantity)
	}
	return bidVolume, askVolume, nil
}

func (s *Source) Close() error { return nil }

// toExchangeSymbol converts "BTC/USDT" to the slash-free form Binance expects.
func toExchangeSymbol(asset string) string {
	asset = strings.ToUpper(strings.TrimSpace(asset))
	return strings.ReplaceAll(asset, "/", "")
}

func parseFloat(raw string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0
	}
	return v
}
