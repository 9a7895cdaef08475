package interfaces

import (
	"context"

	marketdata "github.com/Dmurillo722/moby/internal/domain/entity/marketdata"
)

// MarketDataRepository stores bar history and serves the close-price
// series the factor analyzers consume.
type MarketDataRepository interface {
	AddBar(ctx context.Context, bar *marketdata.Bar) error
	AddBars(ctx context.Context, bars []marketdata.Bar) error

	// GetRecentCloses returns up to limit close prices for a symbol,
	// ordered oldest to newest.
	GetRecentCloses(ctx context.Context, symbol string, limit int) ([]float64, error)
	// GetCloseSeries returns recent closes for several symbols at once,
	// each ordered oldest to newest.
	GetCloseSeries(ctx context.Context, symbols []string, limit int) (map[string][]float64, error)

	Close()
}
