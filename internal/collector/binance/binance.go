package binance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/newthinker/cyclewatch/internal/collector"
	"github.com/newthinker/cyclewatch/internal/core"
	"github.com/newthinker/cyclewatch/internal/httpclient"
	"github.com/newthinker/cyclewatch/internal/series"
)

const (
	baseURL = "https://api.binance.com"

	// klinesLimit is the maximum number of klines Binance returns per request
	klinesLimit = 1000
)

// Config holds Binance connection settings
type Config struct {
	BaseURL        string
	Timeout        time.Duration
	RequestsPerSec float64
	MaxRetries     int
	Observer       httpclient.Observer
}

// Binance implements collector.MarketDataProvider from daily spot klines.
// Volume is the quote asset volume so it is denominated in the requested currency.
type Binance struct {
	client  *httpclient.Client
	baseURL string
}

// New creates a new Binance provider
func New(cfg Config) *Binance {
	if cfg.BaseURL == "" {
		cfg.BaseURL = baseURL
	}
	return &Binance{
		client: httpclient.New(httpclient.Options{
			Name:           "binance",
			Timeout:        cfg.Timeout,
			RequestsPerSec: cfg.RequestsPerSec,
			MaxRetries:     cfg.MaxRetries,
			Observer:       cfg.Observer,
		}),
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
	}
}

// NewWithBaseURL creates a Binance provider with custom base URL (for testing)
func NewWithBaseURL(url string) *Binance {
	return New(Config{BaseURL: url, RequestsPerSec: 100, MaxRetries: -1})
}

func (b *Binance) Name() string {
	return "binance"
}

// kline is one parsed daily candle
type kline struct {
	openTime    time.Time
	close       float64
	quoteVolume float64
}

// Chart fetches daily close prices and quote volumes over [from, to]
func (b *Binance) Chart(ctx context.Context, asset, currency string, from, to time.Time) (*collector.Chart, error) {
	symbol := collector.Pair(asset, currency)
	klines, err := b.klines(ctx, symbol, from, to)
	if err != nil {
		return nil, err
	}

	prices := make([]core.Observation, len(klines))
	volumes := make([]core.Observation, len(klines))
	for i, k := range klines {
		prices[i] = core.Observation{Time: k.openTime, Value: k.close}
		volumes[i] = core.Observation{Time: k.openTime, Value: k.quoteVolume}
	}

	price, err := series.New(prices)
	if err != nil {
		return nil, fmt.Errorf("binance prices for %s: %w", symbol, err)
	}
	volume, err := series.New(volumes)
	if err != nil {
		return nil, fmt.Errorf("binance volumes for %s: %w", symbol, err)
	}
	return &collector.Chart{Price: price, Volume: volume}, nil
}

// PriceSeries fetches daily close prices
func (b *Binance) PriceSeries(ctx context.Context, asset, currency string, from, to time.Time) (series.TimeSeries, error) {
	chart, err := b.Chart(ctx, asset, currency, from, to)
	if err != nil {
		return series.TimeSeries{}, err
	}
	return chart.Price, nil
}

// VolumeSeries fetches daily quote volumes
func (b *Binance) VolumeSeries(ctx context.Context, asset, currency string, from, to time.Time) (series.TimeSeries, error) {
	chart, err := b.Chart(ctx, asset, currency, from, to)
	if err != nil {
		return series.TimeSeries{}, err
	}
	return chart.Volume, nil
}

// Point returns the daily candle covering at
func (b *Binance) Point(ctx context.Context, asset, currency string, at time.Time) (*core.Point, error) {
	symbol := collector.Pair(asset, currency)
	dayStart := at.UTC().Truncate(24 * time.Hour)

	klines, err := b.klines(ctx, symbol, dayStart, dayStart.Add(24*time.Hour-time.Millisecond))
	if err != nil {
		return nil, err
	}
	if len(klines) == 0 {
		return nil, core.Errorf(core.ErrNoData, "binance has no kline for %s on %s",
			symbol, dayStart.Format(time.DateOnly))
	}

	k := klines[0]
	return &core.Point{
		Asset:    collector.CoinID(asset),
		Currency: strings.ToLower(currency),
		Price:    k.close,
		Volume:   k.quoteVolume,
		Time:     at,
		Source:   "binance",
	}, nil
}

// klines pages through /api/v3/klines until the range is covered
func (b *Binance) klines(ctx context.Context, symbol string, from, to time.Time) ([]kline, error) {
	var out []kline
	start := from
	for !start.After(to) {
		q := url.Values{}
		q.Set("symbol", symbol)
		q.Set("interval", "1d")
		q.Set("startTime", strconv.FormatInt(start.UnixMilli(), 10))
		q.Set("endTime", strconv.FormatInt(to.UnixMilli(), 10))
		q.Set("limit", strconv.Itoa(klinesLimit))

		var raw [][]json.RawMessage
		if err := b.client.GetJSON(ctx, b.baseURL+"/api/v3/klines?"+q.Encode(), &raw); err != nil {
			return nil, b.wrap(symbol, err)
		}

		for _, r := range raw {
			k, err := parseKline(r)
			if err != nil {
				return nil, core.WrapError(core.ErrProviderFailed, fmt.Errorf("binance %s: %w", symbol, err))
			}
			out = append(out, k)
		}

		if len(raw) < klinesLimit {
			break
		}
		start = out[len(out)-1].openTime.Add(24 * time.Hour)
	}
	return out, nil
}

// parseKline reads open time, close and quote volume from a kline row:
// [openTime, open, high, low, close, volume, closeTime, quoteVolume, ...]
func parseKline(row []json.RawMessage) (kline, error) {
	if len(row) < 8 {
		return kline{}, fmt.Errorf("kline has %d fields", len(row))
	}

	var openTime int64
	if err := json.Unmarshal(row[0], &openTime); err != nil {
		return kline{}, fmt.Errorf("open time: %w", err)
	}
	closePrice, err := parseDecimal(row[4])
	if err != nil {
		return kline{}, fmt.Errorf("close: %w", err)
	}
	quoteVolume, err := parseDecimal(row[7])
	if err != nil {
		return kline{}, fmt.Errorf("quote volume: %w", err)
	}

	return kline{
		openTime:    time.UnixMilli(openTime).UTC(),
		close:       closePrice,
		quoteVolume: quoteVolume,
	}, nil
}

// parseDecimal parses Binance's string encoded decimals
func parseDecimal(raw json.RawMessage) (float64, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, err
	}
	return strconv.ParseFloat(s, 64)
}

func (b *Binance) wrap(symbol string, err error) error {
	var statusErr *httpclient.StatusError
	// Binance answers 400 with code -1121 for an unknown symbol
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusBadRequest &&
		strings.Contains(statusErr.Body, "-1121") {
		return core.Errorf(core.ErrAssetNotFound, "binance: %s", symbol)
	}
	return core.WrapError(core.ErrProviderFailed, fmt.Errorf("binance klines %s: %w", symbol, err))
}
