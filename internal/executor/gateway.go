package executor

import "context"

// OrderRequest is what we hand the exchange adapter. Prices and quantities
// travel as strings so the adapter controls precision end to end.
type OrderRequest struct {
	Asset      string
	Side       string // buy / sell
	OrderType  string // market / limit / stop / take_profit / trailing_stop
	MarketType string // spot / futures / margin
	Quantity   string
	Price      string // limit price, empty for market orders
	StopPrice  string // trigger price for stop / take_profit orders
	Leverage   float64
	ReduceOnly bool
	// ClientOrderID is our idempotency token for the exchange.
	ClientOrderID string
}

// Ack is the gateway's confirmation. ID and Timestamp are stored on the trade
// record verbatim. AvgPrice is the average fill price when the exchange
// reports one, empty otherwise.
type Ack struct {
	ID        string
	Timestamp int64
	Status    string
	AvgPrice  string
}

// OrderGateway places orders on an exchange. Implementations must be safe for
// concurrent use.
type OrderGateway interface {
	CreateOrder(ctx context.Context, req OrderRequest) (Ack, error)
}
