package coingecko

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/newthinker/cyclewatch/internal/collector"
	"github.com/newthinker/cyclewatch/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ collector.MarketDataProvider = (*CoinGecko)(nil)
var _ collector.ChartProvider = (*CoinGecko)(nil)
var _ collector.Lister = (*CoinGecko)(nil)

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func TestCoinGecko_Name(t *testing.T) {
	c := New(Config{})
	if c.Name() != "coingecko" {
		t.Errorf("expected 'coingecko', got '%s'", c.Name())
	}
}

func TestCoinGecko_Chart(t *testing.T) {
	var gotPath, gotQuery, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotKey = r.Header.Get("x-cg-demo-api-key")
		// two samples on day 2; the later one wins after daily resampling
		fmt.Fprintf(w, `{
			"prices": [[%d, 100], [%d, 110], [%d, 120]],
			"total_volumes": [[%d, 1000], [%d, 1100], [%d, 1200]]
		}`,
			day(1).UnixMilli(), day(2).UnixMilli(), day(2).Add(6*time.Hour).UnixMilli(),
			day(1).UnixMilli(), day(2).UnixMilli(), day(2).Add(6*time.Hour).UnixMilli())
	}))
	defer srv.Close()

	c := NewWithBaseURL("demo-key", srv.URL)
	chart, err := c.Chart(t.Context(), "BTC", "USD", day(1), day(3))
	require.NoError(t, err)

	assert.Equal(t, "/coins/bitcoin/market_chart/range", gotPath)
	assert.Contains(t, gotQuery, "vs_currency=usd")
	assert.Contains(t, gotQuery, fmt.Sprintf("from=%d", day(1).Unix()))
	assert.Equal(t, "demo-key", gotKey)

	assert.Equal(t, []float64{100, 120}, chart.Price.Values())
	assert.Equal(t, []float64{1000, 1200}, chart.Volume.Values())
}

func TestCoinGecko_PriceAndVolumeSeries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"prices": [[%d, 42]], "total_volumes": [[%d, 7]]}`,
			day(5).UnixMilli(), day(5).UnixMilli())
	}))
	defer srv.Close()

	c := NewWithBaseURL("", srv.URL)

	price, err := c.PriceSeries(t.Context(), "bitcoin", "usd", day(1), day(5))
	require.NoError(t, err)
	assert.Equal(t, []float64{42}, price.Values())

	volume, err := c.VolumeSeries(t.Context(), "bitcoin", "usd", day(1), day(5))
	require.NoError(t, err)
	assert.Equal(t, []float64{7}, volume.Values())
}

func TestCoinGecko_Point(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`{
			"id": "bitcoin",
			"market_data": {
				"current_price": {"usd": 43000.5, "eur": 39000},
				"total_volume": {"usd": 2.5e10}
			}
		}`))
	}))
	defer srv.Close()

	c := NewWithBaseURL("", srv.URL)
	p, err := c.Point(t.Context(), "bitcoin", "USD", day(9))
	require.NoError(t, err)

	assert.Contains(t, gotQuery, "date=09-01-2024")
	assert.Equal(t, "bitcoin", p.Asset)
	assert.Equal(t, 43000.5, p.Price)
	assert.Equal(t, 2.5e10, p.Volume)
	assert.Equal(t, "coingecko", p.Source)
	assert.True(t, p.IsValid())
}

func TestCoinGecko_Point_NoMarketData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id": "bitcoin"}`))
	}))
	defer srv.Close()

	c := NewWithBaseURL("", srv.URL)
	_, err := c.Point(t.Context(), "bitcoin", "usd", day(1))
	assert.True(t, errors.Is(err, core.ErrNoData))
}

func TestCoinGecko_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"coin not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewWithBaseURL("", srv.URL)
	_, err := c.Chart(t.Context(), "nope", "usd", day(1), day(2))
	assert.True(t, errors.Is(err, core.ErrAssetNotFound))
}

func TestCoinGecko_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewWithBaseURL("", srv.URL)
	_, err := c.Chart(t.Context(), "bitcoin", "usd", day(1), day(2))
	assert.True(t, errors.Is(err, core.ErrProviderFailed))
}

func TestCoinGecko_Coins(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/coins/list", r.URL.Path)
		w.Write([]byte(`[{"id":"bitcoin","symbol":"btc","name":"Bitcoin"},{"id":"ethereum","symbol":"eth","name":"Ethereum"}]`))
	}))
	defer srv.Close()

	c := NewWithBaseURL("", srv.URL)
	coins, err := c.Coins(t.Context())
	require.NoError(t, err)
	require.Len(t, coins, 2)
	assert.Equal(t, collector.Coin{ID: "bitcoin", Symbol: "btc", Name: "Bitcoin"}, coins[0])
}

func TestCoinGecko_Markets(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/coins/markets", r.URL.Path)
		assert.Equal(t, "bitcoin,ethereum", r.URL.Query().Get("ids"))
		w.Write([]byte(`[{
			"id": "bitcoin",
			"name": "Bitcoin",
			"current_price": 43000,
			"total_volume": 1.2e10,
			"price_change_percentage_24h": -2.5,
			"last_updated": "2024-01-09T12:00:00.000Z"
		}]`))
	}))
	defer srv.Close()

	c := NewWithBaseURL("", srv.URL)
	tickers, err := c.Markets(t.Context(), []string{"BTC", "ethereum"}, "usd")
	require.NoError(t, err)
	require.Len(t, tickers, 1)
	assert.Equal(t, "bitcoin", tickers[0].ID)
	assert.Equal(t, 43000.0, tickers[0].Price)
	assert.Equal(t, -2.5, tickers[0].ChangePercent)
	assert.Equal(t, 9, tickers[0].UpdatedAt.Day())
}
