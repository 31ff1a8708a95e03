package cycle

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/newthinker/cyclewatch/internal/collector"
	"github.com/newthinker/cyclewatch/internal/core"
	"github.com/newthinker/cyclewatch/internal/sentiment"
	"github.com/newthinker/cyclewatch/internal/signal"
	"go.uber.org/zap"
)

const defaultConcurrency = 4

// Recorder receives evaluation metrics
type Recorder interface {
	RecordEvaluation(asset, status string, duration float64)
	RecordResult(record signal.AnalysisRecord)
}

// Request selects the asset and date range of one evaluation.
// Zero dates default to the clock: To = now, From = To - history days.
type Request struct {
	Asset    string    `json:"asset"`
	Currency string    `json:"currency"`
	From     time.Time `json:"from,omitempty"`
	To       time.Time `json:"to,omitempty"`

	// FetchPoint asks the provider for the price and volume at To
	// instead of using the last observations of the series.
	FetchPoint bool `json:"fetch_point,omitempty"`
}

// Outcome is the result of one request of a batch
type Outcome struct {
	Request Request
	Result  *Result
	Err     error
}

// ServiceConfig holds the collaborators of a Service
type ServiceConfig struct {
	Market      collector.MarketDataProvider
	Sentiment   sentiment.Provider
	Clock       Clock
	HistoryDays int
	Concurrency int
	Metrics     Recorder
	Logger      *zap.Logger
}

// Service fetches data from the configured providers and runs the engine
type Service struct {
	engine      *Engine
	market      collector.MarketDataProvider
	sentiment   sentiment.Provider
	clock       Clock
	historyDays int
	concurrency int
	metrics     Recorder
	logger      *zap.Logger
}

// NewService creates a service around engine
func NewService(engine *Engine, cfg ServiceConfig) (*Service, error) {
	if engine == nil {
		return nil, core.Errorf(core.ErrConfigMissing, "engine is required")
	}
	if cfg.Market == nil {
		return nil, core.Errorf(core.ErrConfigMissing, "market data provider is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock{}
	}
	if cfg.HistoryDays <= 0 {
		cfg.HistoryDays = engine.Options().Window
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Service{
		engine:      engine,
		market:      cfg.Market,
		sentiment:   cfg.Sentiment,
		clock:       cfg.Clock,
		historyDays: cfg.HistoryDays,
		concurrency: cfg.Concurrency,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger,
	}, nil
}

// Engine returns the wrapped engine
func (s *Service) Engine() *Engine {
	return s.engine
}

// Resolve fills the defaults of req and validates it
func (s *Service) Resolve(req Request) (Request, error) {
	if err := collector.ValidateAsset(req.Asset); err != nil {
		return req, core.WrapError(core.ErrInvalidParameter, err)
	}
	req.Asset = collector.CoinID(req.Asset)
	req.Currency = strings.ToLower(strings.TrimSpace(req.Currency))
	if req.Currency == "" {
		req.Currency = "usd"
	}
	if req.To.IsZero() {
		req.To = s.clock.Now()
	}
	if req.From.IsZero() {
		req.From = req.To.AddDate(0, 0, -s.historyDays)
	}
	if !req.From.Before(req.To) {
		return req, core.Errorf(core.ErrInvalidParameter, "from %s is not before to %s",
			req.From.Format(time.DateOnly), req.To.Format(time.DateOnly))
	}
	return req, nil
}

// Analyze fetches the series for req and evaluates them
func (s *Service) Analyze(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	result, err := s.analyze(ctx, req)
	s.record(req.Asset, start, result, err)
	return result, err
}

func (s *Service) analyze(ctx context.Context, req Request) (*Result, error) {
	req, err := s.Resolve(req)
	if err != nil {
		return nil, err
	}

	log := s.logger.With(
		zap.String("asset", req.Asset),
		zap.String("currency", req.Currency),
		zap.String("provider", s.market.Name()),
	)
	log.Info("analyzing",
		zap.Time("from", req.From),
		zap.Time("to", req.To),
	)

	chart, err := collector.FetchChart(ctx, s.market, req.Asset, req.Currency, req.From, req.To)
	if err != nil {
		return nil, fmt.Errorf("fetching %s history: %w", req.Asset, err)
	}

	in := Input{
		Asset:    req.Asset,
		Currency: req.Currency,
		Price:    chart.Price,
		Volume:   chart.Volume,
	}

	if req.FetchPoint {
		point, err := s.market.Point(ctx, req.Asset, req.Currency, req.To)
		if err != nil {
			return nil, fmt.Errorf("fetching %s point: %w", req.Asset, err)
		}
		in.Current = point
	}

	if s.sentiment != nil {
		in.Sentiment = sentiment.Lookup(ctx, s.sentiment, s.sentimentDays(req.To), log)
	}

	result, err := s.engine.Evaluate(in)
	if err != nil {
		return nil, err
	}

	log.Info("analysis complete",
		zap.String("regime", string(result.Regime())),
		zap.Float64("diff_rolling_percent", result.Record.DiffRollingPct),
		zap.Float64("diff_band_percent", result.Record.DiffBandPct),
	)
	return result, nil
}

// EvaluateMany analyzes independent requests concurrently. Outcomes keep the
// order of reqs and one failure does not cancel the others.
func (s *Service) EvaluateMany(ctx context.Context, reqs []Request) []Outcome {
	outcomes := make([]Outcome, len(reqs))
	sem := make(chan struct{}, s.concurrency)

	var wg sync.WaitGroup
	for i, req := range reqs {
		wg.Add(1)
		go func(i int, req Request) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				outcomes[i] = Outcome{Request: req, Err: ctx.Err()}
				return
			}

			result, err := s.Analyze(ctx, req)
			outcomes[i] = Outcome{Request: req, Result: result, Err: err}
		}(i, req)
	}
	wg.Wait()

	return outcomes
}

// sentimentDays covers the span from to back from today
func (s *Service) sentimentDays(to time.Time) int {
	days := int(math.Ceil(s.clock.Now().Sub(to).Hours()/24)) + 1
	if days < 1 {
		days = 1
	}
	return days
}

func (s *Service) record(asset string, start time.Time, result *Result, err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordEvaluation(collector.CoinID(asset), StatusOf(err), time.Since(start).Seconds())
	if result != nil {
		s.metrics.RecordResult(result.Record)
	}
}

// StatusOf maps an evaluation error to a metrics label: "ok", the error code, or "error"
func StatusOf(err error) string {
	if err == nil {
		return "ok"
	}
	var coreErr *core.Error
	if errors.As(err, &coreErr) {
		return coreErr.Code
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "canceled"
	}
	return "error"
}
