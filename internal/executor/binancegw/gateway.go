package binancegw

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	gobinance "github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/futures"

	"genstrat/internal/executor"
	"genstrat/internal/logger"
)

// Config carries credentials and endpoint overrides for the order gateway.
type Config struct {
	APIKey             string
	APISecret          string
	RESTBaseURL        string
	FuturesRESTBaseURL string
	HTTPTimeout        time.Duration
}

// Gateway implements executor.OrderGateway against Binance. Spot and margin
// requests go through the spot client, futures through the futures client,
// mirroring the market-data source.
type Gateway struct {
	spot    *gobinance.Client
	futures *futures.Client
}

var _ executor.OrderGateway = (*Gateway)(nil)

func New(cfg Config) *Gateway {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	httpClient := &http.Client{Timeout: timeout}

	spot := gobinance.NewClient(cfg.APIKey, cfg.APISecret)
	if url := strings.TrimSpace(cfg.RESTBaseURL); url != "" {
		spot.BaseURL = url
	}
	spot.HTTPClient = httpClient

	fut := futures.NewClient(cfg.APIKey, cfg.APISecret)
	if url := strings.TrimSpace(cfg.FuturesRESTBaseURL); url != "" {
		fut.BaseURL = url
	}
	fut.HTTPClient = httpClient

	return &Gateway{spot: spot, futures: fut}
}

func (g *Gateway) CreateOrder(ctx context.Context, req executor.OrderRequest) (executor.Ack, error) {
	if g == nil {
		return executor.Ack{}, fmt.Errorf("gateway not initialized")
	}
	symbol := strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(req.Asset)), "/", "")
	if symbol == "" {
		return executor.Ack{}, fmt.Errorf("asset is required")
	}
	if strings.EqualFold(strings.TrimSpace(req.MarketType), "futures") {
		return g.createFuturesOrder(ctx, symbol, req)
	}
	return g.createSpotOrder(ctx, symbol, req)
}

func (g *Gateway) createFuturesOrder(ctx context.Context, symbol string, req executor.OrderRequest) (executor.Ack, error) {
	if req.Leverage > 1 && !req.ReduceOnly {
		lev := int(req.Leverage)
		if _, err := g.futures.NewChangeLeverageService().Symbol(symbol).Leverage(lev).Do(ctx); err != nil {
			logger.Warnf("gateway: set leverage %dx on %s failed: %v", lev, symbol, err)
		}
	}

	svc := g.futures.NewCreateOrderService().
		Symbol(symbol).
		Side(futuresSide(req.Side)).
		Quantity(req.Quantity)
	if req.ClientOrderID != "" {
		svc = svc.NewClientOrderID(req.ClientOrderID)
	}
	if req.ReduceOnly {
		svc = svc.ReduceOnly(true)
	}

	switch strings.ToLower(strings.TrimSpace(req.OrderType)) {
	case "", "market":
		svc = svc.Type(futures.OrderTypeMarket)
	case "limit":
		svc = svc.Type(futures.OrderTypeLimit).
			TimeInForce(futures.TimeInForceTypeGTC).
			Price(req.Price)
	case "stop":
		svc = svc.Type(futures.OrderTypeStopMarket).StopPrice(req.StopPrice)
	case "take_profit":
		svc = svc.Type(futures.OrderTypeTakeProfitMarket).StopPrice(req.StopPrice)
	case "trailing_stop":
		// StopPrice carries the callback percentage for trailing orders.
		svc = svc.Type(futures.OrderTypeTrailingStopMarket).CallbackRate(req.StopPrice)
	default:
		return executor.Ack{}, fmt.Errorf("unsupported futures order type %q", req.OrderType)
	}

	res, err := svc.Do(ctx)
	if err != nil {
		return executor.Ack{}, err
	}
	return executor.Ack{
		ID:        strconv.FormatInt(res.OrderID, 10),
		Timestamp: res.UpdateTime,
		Status:    string(res.Status),
		AvgPrice:  res.AvgPrice,
	}, nil
}

func (g *Gateway) createSpotOrder(ctx context.Context, symbol string, req executor.OrderRequest) (executor.Ack, error) {
	svc := g.spot.NewCreateOrderService().
		Symbol(symbol).
		Side(spotSide(req.Side)).
		Quantity(req.Quantity)
	if req.ClientOrderID != "" {
		svc = svc.NewClientOrderID(req.ClientOrderID)
	}

	switch strings.ToLower(strings.TrimSpace(req.OrderType)) {
	case "", "market":
		svc = svc.Type(gobinance.OrderTypeMarket)
	case "limit":
		svc = svc.Type(gobinance.OrderTypeLimit).
			TimeInForce(gobinance.TimeInForceTypeGTC).
			Price(req.Price)
	case "stop":
		svc = svc.Type(gobinance.OrderTypeStopLossLimit).
			TimeInForce(gobinance.TimeInForceTypeGTC).
			StopPrice(req.StopPrice).
			Price(req.StopPrice)
	case "take_profit":
		svc = svc.Type(gobinance.OrderTypeTakeProfitLimit).
			TimeInForce(gobinance.TimeInForceTypeGTC).
			StopPrice(req.StopPrice).
			Price(req.StopPrice)
	case "trailing_stop":
		return executor.Ack{}, fmt.Errorf("trailing stop is not available on spot")
	default:
		return executor.Ack{}, fmt.Errorf("unsupported spot order type %q", req.OrderType)
	}

	res, err := svc.Do(ctx)
	if err != nil {
		return executor.Ack{}, err
	}
	return executor.Ack{
		ID:        strconv.FormatInt(res.OrderID, 10),
		Timestamp: res.TransactTime,
		Status:    string(res.Status),
		AvgPrice:  spotFillPrice(res),
	}, nil
}

// spotFillPrice is the quantity-weighted average over the response fills;
// spot has no AvgPrice field. Falls back to the order price.
func spotFillPrice(res *gobinance.CreateOrderResponse) string {
	var notional, qty float64
	for _, fill := range res.Fills {
		p, errP := strconv.ParseFloat(fill.Price, 64)
		q, errQ := strconv.ParseFloat(fill.Quantity, 64)
		if errP != nil || errQ != nil {
			continue
		}
		notional += p * q
		qty += q
	}
	if qty > 0 {
		return strconv.FormatFloat(notional/qty, 'f', -1, 64)
	}
	return res.Price
}

func futuresSide(side string) futures.SideType {
	if strings.EqualFold(strings.TrimSpace(side), "sell") {
		return futures.SideTypeSell
	}
	return futures.SideTypeBuy
}

func spotSide(side string) gobinance.SideType {
	if strings.EqualFold(strings.TrimSpace(side), "sell") {
		return gobinance.SideTypeSell
	}
	return gobinance.SideTypeBuy
}
