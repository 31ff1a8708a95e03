// Package app assembles the engine, its data providers and the report
// publication pipeline.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/newthinker/cyclewatch/internal/advisor"
	"github.com/newthinker/cyclewatch/internal/alert"
	"github.com/newthinker/cyclewatch/internal/config"
	"github.com/newthinker/cyclewatch/internal/core"
	"github.com/newthinker/cyclewatch/internal/cycle"
	"github.com/newthinker/cyclewatch/internal/notifier"
	"github.com/newthinker/cyclewatch/internal/report"
	"go.uber.org/zap"
)

// Deps are the collaborators of an App. Only Service is required.
type Deps struct {
	Service   *cycle.Service
	Advisor   advisor.Generator
	Provider  string // name of the LLM behind Advisor
	Store     *report.Store
	Notifiers *notifier.Registry
	Alerts    *alert.Evaluator
	Clock     cycle.Clock
}

// AnalyzeOptions controls the optional steps after an evaluation
type AnalyzeOptions struct {
	Advise   bool
	Language string
	Publish  bool
}

// App is the main application orchestrator
type App struct {
	cfg       *config.Config
	logger    *zap.Logger
	service   *cycle.Service
	advisor   advisor.Generator
	provider  string
	store     *report.Store
	notifiers *notifier.Registry
	alerts    *alert.Evaluator
	clock     cycle.Clock

	mu        sync.RWMutex
	runs      int
	lastRun   time.Time
	lastError string
}

// New creates a new App instance
func New(cfg *config.Config, deps Deps, logger *zap.Logger) (*App, error) {
	if deps.Service == nil {
		return nil, core.Errorf(core.ErrConfigMissing, "app needs a cycle service")
	}
	if cfg == nil {
		cfg = config.Defaults()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Notifiers == nil {
		deps.Notifiers = notifier.NewRegistry()
	}
	if deps.Clock == nil {
		deps.Clock = cycle.SystemClock{}
	}

	return &App{
		cfg:       cfg,
		logger:    logger,
		service:   deps.Service,
		advisor:   deps.Advisor,
		provider:  deps.Provider,
		store:     deps.Store,
		notifiers: deps.Notifiers,
		alerts:    deps.Alerts,
		clock:     deps.Clock,
	}, nil
}

// Service returns the cycle service
func (a *App) Service() *cycle.Service {
	return a.service
}

// Store returns the report store, nil when archiving is disabled
func (a *App) Store() *report.Store {
	return a.store
}

// CanAdvise reports whether an LLM provider is configured
func (a *App) CanAdvise() bool {
	return a.advisor != nil
}

// Analyze evaluates one request and packages the result as a report.
// Advice failures are recorded on the report and do not fail the call.
func (a *App) Analyze(ctx context.Context, req cycle.Request, opts AnalyzeOptions) (*report.Report, *cycle.Result, error) {
	result, err := a.service.Analyze(ctx, req)
	if err != nil {
		return nil, nil, err
	}

	rep := report.New(result, a.clock.Now())
	if opts.Advise {
		a.advise(ctx, rep, opts.Language)
	}

	if opts.Publish && a.store != nil {
		if _, err := a.store.Save(ctx, rep); err != nil {
			return rep, result, fmt.Errorf("publishing report: %w", err)
		}
	}
	return rep, result, nil
}

func (a *App) advise(ctx context.Context, rep *report.Report, language string) {
	if a.advisor == nil {
		rep.SetAdvice("", "", core.Errorf(core.ErrConfigMissing, "no LLM provider configured"))
		return
	}
	if language == "" {
		language = a.cfg.LLM.Language
	}

	text, err := a.advisor.Advise(ctx, rep.Record, language)
	if err != nil {
		a.logger.Warn("advice unavailable",
			zap.String("asset", rep.Asset),
			zap.Error(err),
		)
	}
	rep.SetAdvice(text, a.provider, err)
}

// RunScheduled evaluates every scheduled asset, checks alert rules, publishes
// the reports and notifies once with all of them. It fails only when no asset succeeded.
func (a *App) RunScheduled(ctx context.Context) error {
	assets := a.cfg.Schedule.Assets
	if len(assets) == 0 {
		return core.Errorf(core.ErrConfigMissing, "no scheduled assets")
	}

	reqs := make([]cycle.Request, len(assets))
	for i, asset := range assets {
		reqs[i] = cycle.Request{Asset: asset, Currency: a.cfg.Market.Currency}
	}

	var (
		reports []*report.Report
		errs    []error
	)
	for _, out := range a.service.EvaluateMany(ctx, reqs) {
		if out.Err != nil {
			a.logger.Error("scheduled evaluation failed",
				zap.String("asset", out.Request.Asset),
				zap.Error(out.Err),
			)
			errs = append(errs, fmt.Errorf("%s: %w", out.Request.Asset, out.Err))
			continue
		}

		rep := report.New(out.Result, a.clock.Now())
		if a.alerts != nil {
			rep.Alerts = a.alerts.Evaluate(rep.Record)
			for _, al := range rep.Alerts {
				a.logger.Warn("alert fired",
					zap.String("rule", al.Rule),
					zap.String("asset", al.Asset),
					zap.Float64("value", al.Value),
				)
			}
		}
		if a.cfg.Schedule.Advise {
			a.advise(ctx, rep, "")
		}
		if a.store != nil {
			if _, err := a.store.Save(ctx, rep); err != nil {
				a.logger.Error("failed to publish report",
					zap.String("asset", rep.Asset),
					zap.Error(err),
				)
			}
		}
		reports = append(reports, rep)
	}

	for name, err := range a.notifiers.NotifyAllBatch(ctx, reports) {
		a.logger.Error("notification failed",
			zap.String("notifier", name),
			zap.Error(err),
		)
	}

	a.mu.Lock()
	a.runs++
	a.lastRun = a.clock.Now()
	a.lastError = ""
	if len(errs) > 0 {
		a.lastError = errors.Join(errs...).Error()
	}
	a.mu.Unlock()

	a.logger.Info("scheduled run complete",
		zap.Int("reports", len(reports)),
		zap.Int("failures", len(errs)),
	)

	if len(reports) == 0 {
		return errors.Join(errs...)
	}
	return nil
}

// GetStats returns application statistics
func (a *App) GetStats() map[string]any {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := map[string]any{
		"scheduled_runs": a.runs,
		"assets":         a.cfg.Schedule.Assets,
		"notifiers":      a.notifiers.Len(),
		"archive":        a.store != nil,
		"advisor":        a.provider,
	}
	if a.alerts != nil {
		stats["alert_rules"] = a.alerts.Len()
	}
	if !a.lastRun.IsZero() {
		stats["last_run"] = a.lastRun
	}
	if a.lastError != "" {
		stats["last_error"] = a.lastError
	}
	return stats
}
