package app

import (
	"fmt"
	"strings"

	"github.com/newthinker/cyclewatch/internal/advisor"
	"github.com/newthinker/cyclewatch/internal/alert"
	"github.com/newthinker/cyclewatch/internal/collector"
	"github.com/newthinker/cyclewatch/internal/collector/binance"
	"github.com/newthinker/cyclewatch/internal/collector/coingecko"
	"github.com/newthinker/cyclewatch/internal/config"
	"github.com/newthinker/cyclewatch/internal/core"
	"github.com/newthinker/cyclewatch/internal/cycle"
	"github.com/newthinker/cyclewatch/internal/httpclient"
	"github.com/newthinker/cyclewatch/internal/llm/factory"
	"github.com/newthinker/cyclewatch/internal/metrics"
	"github.com/newthinker/cyclewatch/internal/notifier"
	"github.com/newthinker/cyclewatch/internal/notifier/email"
	"github.com/newthinker/cyclewatch/internal/notifier/telegram"
	"github.com/newthinker/cyclewatch/internal/notifier/webhook"
	"github.com/newthinker/cyclewatch/internal/report"
	"github.com/newthinker/cyclewatch/internal/sentiment"
	"github.com/newthinker/cyclewatch/internal/sentiment/feargreed"
	"github.com/newthinker/cyclewatch/internal/storage/archive"
	"go.uber.org/zap"
)

// Build wires an App from configuration. reg may be nil to disable metrics.
func Build(cfg *config.Config, reg *metrics.Registry, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var observer httpclient.Observer
	var recorder cycle.Recorder
	if reg != nil {
		observer = reg
		recorder = reg
	}

	market, err := NewMarket(cfg.Market, observer)
	if err != nil {
		return nil, err
	}

	engine, err := cycle.NewEngine(cycle.Options{
		Window:           cfg.Engine.Window,
		Multiplier:       cfg.Engine.Multiplier,
		VolumeWindowDays: cfg.Engine.VolumeWindowDays,
		IncludeHalvings:  cfg.Engine.Halvings,
	}, logger.Named("engine"))
	if err != nil {
		return nil, err
	}

	svc, err := cycle.NewService(engine, cycle.ServiceConfig{
		Market:      market,
		Sentiment:   NewSentiment(cfg.Sentiment, observer),
		HistoryDays: cfg.Engine.HistoryDays,
		Concurrency: cfg.Engine.Concurrency,
		Metrics:     recorder,
		Logger:      logger.Named("service"),
	})
	if err != nil {
		return nil, err
	}

	deps := Deps{Service: svc}

	if cfg.LLM.Provider != "" {
		provider, err := factory.New(cfg.LLM)
		if err != nil {
			return nil, err
		}
		adv, err := advisor.New(provider, advisor.Config{
			Language:    cfg.LLM.Language,
			MaxTokens:   cfg.LLM.MaxTokens,
			Temperature: cfg.LLM.Temperature,
		}, logger.Named("advisor"))
		if err != nil {
			return nil, err
		}
		deps.Advisor = adv
		deps.Provider = provider.Name()
	}

	if cfg.Archive.Enabled {
		storage, err := NewArchive(cfg.Archive)
		if err != nil {
			return nil, err
		}
		deps.Store = report.NewStore(storage, logger.Named("archive"))
	}

	if cfg.Alerts.Enabled {
		var recorder alert.Recorder
		if reg != nil {
			recorder = reg
		}
		alerts, err := NewAlerts(cfg.Alerts, recorder)
		if err != nil {
			return nil, err
		}
		deps.Alerts = alerts
	}

	notifiers, err := NewNotifiers(cfg.Notifiers)
	if err != nil {
		return nil, err
	}
	deps.Notifiers = notifiers

	return New(cfg, deps, logger)
}

// NewAlerts builds the alert evaluator from configured rules
func NewAlerts(cfg config.AlertsConfig, recorder alert.Recorder) (*alert.Evaluator, error) {
	rules := make([]alert.Rule, len(cfg.Rules))
	for i, r := range cfg.Rules {
		rules[i] = alert.Rule{
			Name:     r.Name,
			Expr:     r.Expr,
			For:      r.For,
			Severity: r.Severity,
			Message:  r.Message,
		}
	}
	return alert.NewEvaluator(rules, cfg.Cooldown, recorder)
}

// NewMarkets registers every supported market data provider. BaseURL only
// applies to the configured provider.
func NewMarkets(cfg config.MarketConfig, observer httpclient.Observer) *collector.Registry {
	baseURL := func(name string) string {
		if cfg.Provider == name {
			return cfg.BaseURL
		}
		return ""
	}

	reg := collector.NewRegistry()
	reg.Register(coingecko.New(coingecko.Config{
		APIKey:         cfg.APIKey,
		BaseURL:        baseURL("coingecko"),
		Timeout:        cfg.Timeout,
		RequestsPerSec: cfg.RequestsPerSec,
		MaxRetries:     cfg.MaxRetries,
		Observer:       observer,
	}))
	reg.Register(binance.New(binance.Config{
		BaseURL:        baseURL("binance"),
		Timeout:        cfg.Timeout,
		RequestsPerSec: cfg.RequestsPerSec,
		MaxRetries:     cfg.MaxRetries,
		Observer:       observer,
	}))
	return reg
}

// NewMarket creates the configured market data provider
func NewMarket(cfg config.MarketConfig, observer httpclient.Observer) (collector.MarketDataProvider, error) {
	name := cfg.Provider
	if name == "" {
		name = "coingecko"
	}

	markets := NewMarkets(cfg, observer)
	p, ok := markets.Get(name)
	if !ok {
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown market provider %q (available: %s)",
			name, strings.Join(markets.Names(), ", ")))
	}
	return p, nil
}

// NewSentiment creates the Fear and Greed provider, or nil when disabled
func NewSentiment(cfg config.SentimentConfig, observer httpclient.Observer) sentiment.Provider {
	if !cfg.Enabled {
		return nil
	}
	return feargreed.New(feargreed.Config{
		Endpoint: cfg.Endpoint,
		Timeout:  cfg.Timeout,
		Observer: observer,
	})
}

// NewArchive creates the configured archive backend
func NewArchive(cfg config.ArchiveConfig) (archive.Storage, error) {
	switch cfg.Type {
	case "", "localfs":
		return archive.NewLocalFS(cfg.Path)
	case "s3":
		return archive.NewS3(archive.S3Config{
			Bucket:    cfg.S3.Bucket,
			Endpoint:  cfg.S3.Endpoint,
			Region:    cfg.S3.Region,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Prefix:    cfg.S3.Prefix,
		})
	default:
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown archive type: %q", cfg.Type))
	}
}

// NewNotifiers registers every enabled notifier
func NewNotifiers(cfgs map[string]config.NotifierConfig) (*notifier.Registry, error) {
	reg := notifier.NewRegistry()
	for name, c := range cfgs {
		if !c.Enabled {
			continue
		}

		var n notifier.Notifier
		switch name {
		case "telegram":
			n = telegram.New(c.BotToken, c.ChatID)
		case "webhook":
			n = webhook.New(c.URL, c.Headers)
		case "email":
			n = email.New(c.Host, c.Port, c.Username, c.Password, c.From, c.To)
		default:
			return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown notifier: %q", name))
		}

		if err := n.Init(notifier.Config{Type: name}); err != nil {
			return nil, err
		}
		if err := reg.Register(n); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
