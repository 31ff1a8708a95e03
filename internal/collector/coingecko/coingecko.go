package coingecko

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/newthinker/cyclewatch/internal/collector"
	"github.com/newthinker/cyclewatch/internal/core"
	"github.com/newthinker/cyclewatch/internal/httpclient"
	"github.com/newthinker/cyclewatch/internal/series"
)

const (
	baseURL = "https://api.coingecko.com/api/v3"
)

// Config holds CoinGecko connection settings
type Config struct {
	APIKey         string
	BaseURL        string
	Timeout        time.Duration
	RequestsPerSec float64
	MaxRetries     int
	Observer       httpclient.Observer
}

// CoinGecko implements collector.MarketDataProvider against the public API
type CoinGecko struct {
	client  *httpclient.Client
	baseURL string
}

// New creates a new CoinGecko provider
func New(cfg Config) *CoinGecko {
	headers := map[string]string{}
	if cfg.APIKey != "" {
		headers["x-cg-demo-api-key"] = cfg.APIKey
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = baseURL
	}
	if cfg.RequestsPerSec <= 0 {
		// The keyless tier allows roughly 30 calls per minute.
		cfg.RequestsPerSec = 0.5
	}

	return &CoinGecko{
		client: httpclient.New(httpclient.Options{
			Name:           "coingecko",
			Timeout:        cfg.Timeout,
			RequestsPerSec: cfg.RequestsPerSec,
			MaxRetries:     cfg.MaxRetries,
			Headers:        headers,
			Observer:       cfg.Observer,
		}),
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
	}
}

// NewWithBaseURL creates a CoinGecko provider with custom base URL (for testing)
func NewWithBaseURL(apiKey, url string) *CoinGecko {
	return New(Config{APIKey: apiKey, BaseURL: url, RequestsPerSec: 100, MaxRetries: -1})
}

func (c *CoinGecko) Name() string {
	return "coingecko"
}

// marketChart is the /market_chart/range payload: [[ms, value], ...] per field
type marketChart struct {
	Prices       [][]float64 `json:"prices"`
	TotalVolumes [][]float64 `json:"total_volumes"`
}

// Chart fetches price and total volume history in one request
func (c *CoinGecko) Chart(ctx context.Context, asset, currency string, from, to time.Time) (*collector.Chart, error) {
	coinID := collector.CoinID(asset)
	q := url.Values{}
	q.Set("vs_currency", strings.ToLower(currency))
	q.Set("from", fmt.Sprintf("%d", from.Unix()))
	q.Set("to", fmt.Sprintf("%d", to.Unix()))
	endpoint := fmt.Sprintf("%s/coins/%s/market_chart/range?%s", c.baseURL, url.PathEscape(coinID), q.Encode())

	var chart marketChart
	if err := c.client.GetJSON(ctx, endpoint, &chart); err != nil {
		return nil, c.wrap(coinID, "fetching market chart", err)
	}

	price, err := toSeries(chart.Prices)
	if err != nil {
		return nil, fmt.Errorf("coingecko prices for %s: %w", coinID, err)
	}
	volume, err := toSeries(chart.TotalVolumes)
	if err != nil {
		return nil, fmt.Errorf("coingecko volumes for %s: %w", coinID, err)
	}

	return &collector.Chart{Price: price.Daily(), Volume: volume.Daily()}, nil
}

// PriceSeries fetches daily prices
func (c *CoinGecko) PriceSeries(ctx context.Context, asset, currency string, from, to time.Time) (series.TimeSeries, error) {
	chart, err := c.Chart(ctx, asset, currency, from, to)
	if err != nil {
		return series.TimeSeries{}, err
	}
	return chart.Price, nil
}

// VolumeSeries fetches daily total volumes
func (c *CoinGecko) VolumeSeries(ctx context.Context, asset, currency string, from, to time.Time) (series.TimeSeries, error) {
	chart, err := c.Chart(ctx, asset, currency, from, to)
	if err != nil {
		return series.TimeSeries{}, err
	}
	return chart.Volume, nil
}

type historyResponse struct {
	ID         string `json:"id"`
	MarketData *struct {
		CurrentPrice map[string]float64 `json:"current_price"`
		TotalVolume  map[string]float64 `json:"total_volume"`
	} `json:"market_data"`
}

// Point fetches the daily snapshot of price and volume for the date of at
func (c *CoinGecko) Point(ctx context.Context, asset, currency string, at time.Time) (*core.Point, error) {
	coinID := collector.CoinID(asset)
	vs := strings.ToLower(currency)
	endpoint := fmt.Sprintf("%s/coins/%s/history?date=%s&localization=false",
		c.baseURL, url.PathEscape(coinID), at.UTC().Format("02-01-2006"))

	var resp historyResponse
	if err := c.client.GetJSON(ctx, endpoint, &resp); err != nil {
		return nil, c.wrap(coinID, "fetching history", err)
	}
	if resp.MarketData == nil {
		return nil, core.Errorf(core.ErrNoData, "coingecko has no market data for %s on %s",
			coinID, at.UTC().Format(time.DateOnly))
	}

	price, ok := resp.MarketData.CurrentPrice[vs]
	if !ok {
		return nil, core.Errorf(core.ErrNoData, "coingecko has no %s price for %s", vs, coinID)
	}

	return &core.Point{
		Asset:    coinID,
		Currency: vs,
		Price:    price,
		Volume:   resp.MarketData.TotalVolume[vs],
		Time:     at,
		Source:   "coingecko",
	}, nil
}

// Coins lists every coin id CoinGecko knows
func (c *CoinGecko) Coins(ctx context.Context) ([]collector.Coin, error) {
	var coins []collector.Coin
	if err := c.client.GetJSON(ctx, c.baseURL+"/coins/list", &coins); err != nil {
		return nil, c.wrap("", "listing coins", err)
	}
	return coins, nil
}

type marketEntry struct {
	ID                       string    `json:"id"`
	Name                     string    `json:"name"`
	CurrentPrice             float64   `json:"current_price"`
	TotalVolume              float64   `json:"total_volume"`
	PriceChangePercentage24h float64   `json:"price_change_percentage_24h"`
	LastUpdated              time.Time `json:"last_updated"`
}

// Markets snapshots price, 24h volume and 24h change for the given coins
func (c *CoinGecko) Markets(ctx context.Context, ids []string, currency string) ([]collector.MarketTicker, error) {
	resolved := make([]string, len(ids))
	for i, id := range ids {
		resolved[i] = collector.CoinID(id)
	}

	q := url.Values{}
	q.Set("vs_currency", strings.ToLower(currency))
	q.Set("ids", strings.Join(resolved, ","))

	var entries []marketEntry
	if err := c.client.GetJSON(ctx, c.baseURL+"/coins/markets?"+q.Encode(), &entries); err != nil {
		return nil, c.wrap(strings.Join(resolved, ","), "fetching markets", err)
	}

	tickers := make([]collector.MarketTicker, len(entries))
	for i, e := range entries {
		tickers[i] = collector.MarketTicker{
			ID:            e.ID,
			Name:          e.Name,
			Price:         e.CurrentPrice,
			Volume24h:     e.TotalVolume,
			ChangePercent: e.PriceChangePercentage24h,
			UpdatedAt:     e.LastUpdated,
		}
	}
	return tickers, nil
}

func (c *CoinGecko) wrap(coinID, action string, err error) error {
	var statusErr *httpclient.StatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
		return core.Errorf(core.ErrAssetNotFound, "coingecko: %s", coinID)
	}
	return core.WrapError(core.ErrProviderFailed, fmt.Errorf("coingecko %s: %w", action, err))
}

func toSeries(pairs [][]float64) (series.TimeSeries, error) {
	obs := make([]core.Observation, 0, len(pairs))
	for _, p := range pairs {
		if len(p) < 2 {
			continue
		}
		obs = append(obs, core.Observation{
			Time:  time.UnixMilli(int64(p[0])).UTC(),
			Value: p[1],
		})
	}
	return series.New(obs)
}
