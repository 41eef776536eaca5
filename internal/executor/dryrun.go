package executor

import (
	"context"
	"time"

	"genstrat/internal/logger"
)

// DryRunGateway acknowledges every order without touching an exchange. Trades
// still move through the full lifecycle, which makes it the default for local
// runs and rehearsals.
type DryRunGateway struct{}

var _ OrderGateway = DryRunGateway{}

func (DryRunGateway) CreateOrder(_ context.Context, req OrderRequest) (Ack, error) {
	logger.Infof("dry-run order: %s %s %s qty=%s type=%s reduce_only=%v",
		req.MarketType, req.Side, req.Asset, req.Quantity, req.OrderType, req.ReduceOnly)
	return Ack{
		ID:        "dry-" + req.ClientOrderID,
		Timestamp: time.Now().UnixMilli(),
		Status:    "FILLED",
		AvgPrice:  req.Price,
	}, nil
}
