package cycle

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/newthinker/cyclewatch/internal/core"
	"github.com/newthinker/cyclewatch/internal/series"
	"github.com/newthinker/cyclewatch/internal/signal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMarket struct {
	mu       sync.Mutex
	price    series.TimeSeries
	volume   series.TimeSeries
	point    *core.Point
	err      map[string]error
	from, to time.Time
}

func (f *fakeMarket) Name() string { return "fake" }

func (f *fakeMarket) PriceSeries(ctx context.Context, asset, currency string, from, to time.Time) (series.TimeSeries, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.from, f.to = from, to
	if err := f.err[asset]; err != nil {
		return series.TimeSeries{}, err
	}
	return f.price, nil
}

func (f *fakeMarket) VolumeSeries(ctx context.Context, asset, currency string, from, to time.Time) (series.TimeSeries, error) {
	return f.volume, nil
}

func (f *fakeMarket) Point(ctx context.Context, asset, currency string, at time.Time) (*core.Point, error) {
	if f.point == nil {
		return nil, core.ErrNoData
	}
	p := *f.point
	p.Time = at
	return &p, nil
}

type fakeSentiment struct {
	history series.TimeSeries
	err     error
}

func (f *fakeSentiment) Name() string { return "fake" }

func (f *fakeSentiment) Score(ctx context.Context, at time.Time) (signal.Sentiment, error) {
	return signal.Unset(), nil
}

func (f *fakeSentiment) History(ctx context.Context, days int) (series.TimeSeries, error) {
	return f.history, f.err
}

type fakeRecorder struct {
	mu       sync.Mutex
	statuses []string
	records  int
}

func (r *fakeRecorder) RecordEvaluation(asset, status string, duration float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, status)
}

func (r *fakeRecorder) RecordResult(record signal.AnalysisRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records++
}

var now = time.Date(2024, 1, 3, 15, 0, 0, 0, time.UTC)

func newService(t *testing.T, market *fakeMarket, cfg ServiceConfig) *Service {
	t.Helper()
	cfg.Market = market
	if cfg.Clock == nil {
		cfg.Clock = FixedClock(now)
	}
	svc, err := NewService(newEngine(t, 2, 5), cfg)
	require.NoError(t, err)
	return svc
}

func TestNewService_RequiresMarket(t *testing.T) {
	_, err := NewService(newEngine(t, 2, 5), ServiceConfig{})
	assert.True(t, errors.Is(err, core.ErrConfigMissing))
}

func TestService_Resolve(t *testing.T) {
	svc := newService(t, &fakeMarket{}, ServiceConfig{HistoryDays: 10})

	req, err := svc.Resolve(Request{Asset: "BTC"})
	require.NoError(t, err)

	assert.Equal(t, "bitcoin", req.Asset)
	assert.Equal(t, "usd", req.Currency)
	assert.Equal(t, now, req.To)
	assert.Equal(t, now.AddDate(0, 0, -10), req.From)
}

func TestService_Resolve_Invalid(t *testing.T) {
	svc := newService(t, &fakeMarket{}, ServiceConfig{})

	tests := []struct {
		name string
		req  Request
	}{
		{"empty asset", Request{}},
		{"bad asset", Request{Asset: "bit coin!"}},
		{"inverted range", Request{Asset: "bitcoin", From: now, To: now.AddDate(0, 0, -1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Resolve(tt.req)
			assert.True(t, errors.Is(err, core.ErrInvalidParameter))
		})
	}
}

func TestService_Analyze(t *testing.T) {
	market := &fakeMarket{price: daily(t, 100, 200, 300), volume: daily(t, 10, 20, 30)}
	history, err := series.FromValues([]time.Time{d0.AddDate(0, 0, 2)}, []float64{72})
	require.NoError(t, err)
	rec := &fakeRecorder{}

	svc := newService(t, market, ServiceConfig{
		Sentiment: &fakeSentiment{history: history},
		Metrics:   rec,
	})

	res, err := svc.Analyze(t.Context(), Request{Asset: "bitcoin", Currency: "usd"})
	require.NoError(t, err)

	assert.Equal(t, now, market.to)
	assert.Equal(t, now.AddDate(0, 0, -2), market.from)
	assert.Equal(t, 250.0, res.Record.RollingMean)

	v, ok := res.Record.Sentiment.Value()
	assert.True(t, ok)
	assert.Equal(t, 72.0, v)

	assert.Equal(t, []string{"ok"}, rec.statuses)
	assert.Equal(t, 1, rec.records)
}

func TestService_Analyze_SentimentFailureDegrades(t *testing.T) {
	market := &fakeMarket{price: daily(t, 100, 200), volume: daily(t, 1, 1)}
	svc := newService(t, market, ServiceConfig{
		Sentiment: &fakeSentiment{err: errors.New("timeout")},
	})

	res, err := svc.Analyze(t.Context(), Request{Asset: "bitcoin"})
	require.NoError(t, err)
	assert.False(t, res.Record.Sentiment.IsSet())
}

func TestService_Analyze_FetchPoint(t *testing.T) {
	market := &fakeMarket{
		price:  daily(t, 100, 100),
		volume: daily(t, 10, 10),
		point:  &core.Point{Price: 120, Volume: 10},
	}
	svc := newService(t, market, ServiceConfig{})

	res, err := svc.Analyze(t.Context(), Request{Asset: "bitcoin", FetchPoint: true})
	require.NoError(t, err)

	assert.Equal(t, now, res.Record.At)
	assert.Equal(t, 120.0, res.Record.CurrentPrice)
	assert.InDelta(t, 20.0, res.Record.DiffRollingPct, 1e-9)
}

func TestService_Analyze_ProviderError(t *testing.T) {
	market := &fakeMarket{err: map[string]error{"bitcoin": core.Errorf(core.ErrProviderFailed, "boom")}}
	rec := &fakeRecorder{}
	svc := newService(t, market, ServiceConfig{Metrics: rec})

	res, err := svc.Analyze(t.Context(), Request{Asset: "bitcoin"})
	assert.Nil(t, res)
	assert.True(t, errors.Is(err, core.ErrProviderFailed))
	assert.Equal(t, []string{"PROVIDER_FAILED"}, rec.statuses)
	assert.Equal(t, 0, rec.records)
}

func TestService_Analyze_EmptyHistory(t *testing.T) {
	svc := newService(t, &fakeMarket{}, ServiceConfig{})

	_, err := svc.Analyze(t.Context(), Request{Asset: "bitcoin"})
	assert.True(t, errors.Is(err, core.ErrEmptySeries))
}

func TestService_EvaluateMany(t *testing.T) {
	market := &fakeMarket{
		price:  daily(t, 100, 200),
		volume: daily(t, 1, 1),
		err:    map[string]error{"ethereum": core.Errorf(core.ErrAssetNotFound, "ethereum")},
	}
	svc := newService(t, market, ServiceConfig{Concurrency: 2})

	outcomes := svc.EvaluateMany(t.Context(), []Request{
		{Asset: "bitcoin"},
		{Asset: "ethereum"},
		{Asset: "solana"},
	})
	require.Len(t, outcomes, 3)

	assert.NoError(t, outcomes[0].Err)
	assert.Equal(t, "bitcoin", outcomes[0].Result.Record.Asset)
	assert.True(t, errors.Is(outcomes[1].Err, core.ErrAssetNotFound))
	assert.Nil(t, outcomes[1].Result)
	assert.NoError(t, outcomes[2].Err)
	assert.Equal(t, "solana", outcomes[2].Request.Asset)
}

func TestService_EvaluateMany_Canceled(t *testing.T) {
	svc := newService(t, &fakeMarket{price: daily(t, 1), volume: daily(t, 1)}, ServiceConfig{})

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	outcomes := svc.EvaluateMany(ctx, []Request{{Asset: "bitcoin"}})
	require.Len(t, outcomes, 1)
	// the select may still win the semaphore; the fake market ignores ctx
	if outcomes[0].Err != nil {
		assert.True(t, errors.Is(outcomes[0].Err, context.Canceled))
	}
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, "ok", StatusOf(nil))
	assert.Equal(t, "EMPTY_SERIES", StatusOf(core.ErrEmptySeries))
	assert.Equal(t, "canceled", StatusOf(context.Canceled))
	assert.Equal(t, "error", StatusOf(errors.New("x")))
}
