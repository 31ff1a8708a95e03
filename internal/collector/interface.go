package collector

import (
	"context"
	"time"

	"github.com/newthinker/cyclewatch/internal/core"
	"github.com/newthinker/cyclewatch/internal/series"
)

// MarketDataProvider supplies the raw series the cycle engine consumes
type MarketDataProvider interface {
	// Name returns the provider identifier (e.g., "coingecko", "binance")
	Name() string

	// PriceSeries returns daily prices of asset quoted in currency over [from, to]
	PriceSeries(ctx context.Context, asset, currency string, from, to time.Time) (series.TimeSeries, error)

	// VolumeSeries returns daily traded volume over [from, to]
	VolumeSeries(ctx context.Context, asset, currency string, from, to time.Time) (series.TimeSeries, error)

	// Point returns the price and volume at a specific instant
	Point(ctx context.Context, asset, currency string, at time.Time) (*core.Point, error)
}

// Chart is a price and volume history fetched in one request
type Chart struct {
	Price  series.TimeSeries
	Volume series.TimeSeries
}

// ChartProvider is implemented by providers that return price and volume together.
// Callers needing both should prefer it over two separate series requests.
type ChartProvider interface {
	Chart(ctx context.Context, asset, currency string, from, to time.Time) (*Chart, error)
}

// FetchChart uses ChartProvider when available and falls back to two requests
func FetchChart(ctx context.Context, p MarketDataProvider, asset, currency string, from, to time.Time) (*Chart, error) {
	if cp, ok := p.(ChartProvider); ok {
		return cp.Chart(ctx, asset, currency, from, to)
	}

	price, err := p.PriceSeries(ctx, asset, currency, from, to)
	if err != nil {
		return nil, err
	}
	volume, err := p.VolumeSeries(ctx, asset, currency, from, to)
	if err != nil {
		return nil, err
	}
	return &Chart{Price: price, Volume: volume}, nil
}

// Coin describes a listed asset
type Coin struct {
	ID     string `json:"id"`
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}

// MarketTicker is a market snapshot of one asset
type MarketTicker struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Price         float64   `json:"price"`
	Volume24h     float64   `json:"volume_24h"`
	ChangePercent float64   `json:"change_percent_24h"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Lister is implemented by providers that can enumerate coins and snapshot markets
type Lister interface {
	Coins(ctx context.Context) ([]Coin, error)
	Markets(ctx context.Context, ids []string, currency string) ([]MarketTicker, error)
}
