package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/newthinker/cyclewatch/internal/core"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

type Config struct {
	Engine    EngineConfig              `mapstructure:"engine"`
	Market    MarketConfig              `mapstructure:"market"`
	Sentiment SentimentConfig           `mapstructure:"sentiment"`
	LLM       LLMConfig                 `mapstructure:"llm"`
	Archive   ArchiveConfig             `mapstructure:"archive"`
	Server    ServerConfig              `mapstructure:"server"`
	Schedule  ScheduleConfig            `mapstructure:"schedule"`
	Notifiers map[string]NotifierConfig `mapstructure:"notifiers"`
	Alerts    AlertsConfig              `mapstructure:"alerts"`
	Metrics   MetricsConfig             `mapstructure:"metrics"`
	Log       LogConfig                 `mapstructure:"log"`
}

// EngineConfig holds the cycle indicator parameters.
type EngineConfig struct {
	Window           int     `mapstructure:"window"`
	Multiplier       float64 `mapstructure:"multiplier"`
	VolumeWindowDays int     `mapstructure:"volume_window_days"`
	HistoryDays      int     `mapstructure:"history_days"`
	Halvings         bool    `mapstructure:"halvings"`
	Concurrency      int     `mapstructure:"concurrency"`
}

// MarketConfig selects the market data provider.
type MarketConfig struct {
	Provider       string        `mapstructure:"provider"` // "coingecko" or "binance"
	Asset          string        `mapstructure:"asset"`
	Currency       string        `mapstructure:"currency"`
	APIKey         string        `mapstructure:"api_key"`
	BaseURL        string        `mapstructure:"base_url"`
	RequestsPerSec float64       `mapstructure:"requests_per_sec"`
	MaxRetries     int           `mapstructure:"max_retries"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

// SentimentConfig holds the Fear and Greed Index source.
type SentimentConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Endpoint string        `mapstructure:"endpoint"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type LLMConfig struct {
	Provider    string       `mapstructure:"provider"`
	Language    string       `mapstructure:"language"`
	MaxTokens   int          `mapstructure:"max_tokens"`
	Temperature float64      `mapstructure:"temperature"`
	Claude      ClaudeConfig `mapstructure:"claude"`
	OpenAI      OpenAIConfig `mapstructure:"openai"`
	Ollama      OllamaConfig `mapstructure:"ollama"`
}

type ClaudeConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

type OpenAIConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

type OllamaConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Model    string `mapstructure:"model"`
}

// ArchiveConfig selects where rendered reports are published.
type ArchiveConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Type    string   `mapstructure:"type"` // "localfs" or "s3"
	Path    string   `mapstructure:"path"` // For localfs
	S3      S3Config `mapstructure:"s3"`   // For S3
}

type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

type ServerConfig struct {
	Host   string `mapstructure:"host"`
	Port   int    `mapstructure:"port"`
	APIKey string `mapstructure:"api_key"`
}

// ScheduleConfig runs evaluations periodically while serving.
type ScheduleConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Cron    string   `mapstructure:"cron"`
	Assets  []string `mapstructure:"assets"`
	Advise  bool     `mapstructure:"advise"`
}

// NotifierConfig configures one report channel; the map key names it
// ("telegram", "webhook" or "email").
type NotifierConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	URL      string `mapstructure:"url"`
	// Email notifier fields
	Host     string   `mapstructure:"host"`
	Port     int      `mapstructure:"port"`
	Username string   `mapstructure:"username"`
	Password string   `mapstructure:"password"`
	From     string   `mapstructure:"from"`
	To       []string `mapstructure:"to"`
	// Webhook notifier fields
	Headers map[string]string `mapstructure:"headers"`
}

// AlertsConfig holds threshold rules checked against every scheduled report.
type AlertsConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Cooldown time.Duration `mapstructure:"cooldown"`
	Rules    []AlertRule   `mapstructure:"rules"`
}

// AlertRule defines a single alert rule.
type AlertRule struct {
	Name     string        `mapstructure:"name"`
	Expr     string        `mapstructure:"expr"`
	For      time.Duration `mapstructure:"for"`
	Severity string        `mapstructure:"severity"`
	Message  string        `mapstructure:"message"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// Load reads configuration from file on top of Defaults
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v, Defaults())

	// Support environment variable overrides
	v.SetEnvPrefix("CYCLEWATCH")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("reading config: %w", err))
	}

	// Expand environment variables in string values
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
			v.Set(key, os.Getenv(envKey))
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unmarshaling config: %w", err))
	}

	return &cfg, nil
}

// setDefaults registers every default so env overrides apply to keys absent from the file
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("engine.window", d.Engine.Window)
	v.SetDefault("engine.multiplier", d.Engine.Multiplier)
	v.SetDefault("engine.volume_window_days", d.Engine.VolumeWindowDays)
	v.SetDefault("engine.history_days", d.Engine.HistoryDays)
	v.SetDefault("engine.halvings", d.Engine.Halvings)
	v.SetDefault("engine.concurrency", d.Engine.Concurrency)
	v.SetDefault("market.provider", d.Market.Provider)
	v.SetDefault("market.asset", d.Market.Asset)
	v.SetDefault("market.currency", d.Market.Currency)
	v.SetDefault("market.api_key", d.Market.APIKey)
	v.SetDefault("market.base_url", d.Market.BaseURL)
	v.SetDefault("market.requests_per_sec", d.Market.RequestsPerSec)
	v.SetDefault("market.max_retries", d.Market.MaxRetries)
	v.SetDefault("market.timeout", d.Market.Timeout)
	v.SetDefault("sentiment.enabled", d.Sentiment.Enabled)
	v.SetDefault("sentiment.endpoint", d.Sentiment.Endpoint)
	v.SetDefault("sentiment.timeout", d.Sentiment.Timeout)
	v.SetDefault("llm.provider", d.LLM.Provider)
	v.SetDefault("llm.language", d.LLM.Language)
	v.SetDefault("llm.max_tokens", d.LLM.MaxTokens)
	v.SetDefault("llm.temperature", d.LLM.Temperature)
	v.SetDefault("llm.claude.api_key", "")
	v.SetDefault("llm.openai.api_key", "")
	v.SetDefault("llm.ollama.endpoint", "")
	v.SetDefault("archive.enabled", d.Archive.Enabled)
	v.SetDefault("archive.type", d.Archive.Type)
	v.SetDefault("archive.path", d.Archive.Path)
	v.SetDefault("archive.s3.access_key", "")
	v.SetDefault("archive.s3.secret_key", "")
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.api_key", d.Server.APIKey)
	v.SetDefault("schedule.enabled", d.Schedule.Enabled)
	v.SetDefault("schedule.cron", d.Schedule.Cron)
	v.SetDefault("alerts.enabled", d.Alerts.Enabled)
	v.SetDefault("alerts.cooldown", d.Alerts.Cooldown)
	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.path", d.Metrics.Path)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.development", d.Log.Development)
}

// Defaults returns a config with sensible defaults
func Defaults() *Config {
	return &Config{
		Engine: EngineConfig{
			Window:           730,
			Multiplier:       5,
			VolumeWindowDays: 30,
			HistoryDays:      730,
			Concurrency:      4,
		},
		Market: MarketConfig{
			Provider:   "coingecko",
			Asset:      "bitcoin",
			Currency:   "usd",
			MaxRetries: 3,
			Timeout:    10 * time.Second,
		},
		Sentiment: SentimentConfig{
			Enabled:  true,
			Endpoint: "https://api.alternative.me/fng/",
			Timeout:  10 * time.Second,
		},
		LLM: LLMConfig{
			Language:    "English",
			MaxTokens:   400,
			Temperature: 0.7,
		},
		Archive: ArchiveConfig{
			Type: "localfs",
			Path: "./data/reports",
		},
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Schedule: ScheduleConfig{
			Cron: "0 0 * * *",
		},
		Alerts: AlertsConfig{
			Cooldown: 24 * time.Hour,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	// Engine validation
	if c.Engine.Window <= 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("engine.window must be positive, got %d", c.Engine.Window))
	}
	if c.Engine.Multiplier <= 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("engine.multiplier must be positive, got %g", c.Engine.Multiplier))
	}
	if c.Engine.VolumeWindowDays <= 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("engine.volume_window_days must be positive, got %d", c.Engine.VolumeWindowDays))
	}
	if c.Engine.HistoryDays < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("engine.history_days cannot be negative, got %d", c.Engine.HistoryDays))
	}

	// Market validation
	switch c.Market.Provider {
	case "coingecko", "binance":
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown market provider: %q", c.Market.Provider))
	}

	// Server validation
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("port must be between 1 and 65535, got %d", c.Server.Port))
	}

	// LLM validation - if provider set, check config exists
	if c.LLM.Provider != "" {
		switch c.LLM.Provider {
		case "claude":
			if c.LLM.Claude.APIKey == "" {
				return core.WrapError(core.ErrConfigMissing,
					fmt.Errorf("claude api_key required when provider is claude"))
			}
		case "openai":
			if c.LLM.OpenAI.APIKey == "" {
				return core.WrapError(core.ErrConfigMissing,
					fmt.Errorf("openai api_key required when provider is openai"))
			}
		case "ollama":
			if c.LLM.Ollama.Endpoint == "" {
				return core.WrapError(core.ErrConfigMissing,
					fmt.Errorf("ollama endpoint required when provider is ollama"))
			}
		default:
			return core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("unknown llm provider: %q", c.LLM.Provider))
		}
	}

	// Archive validation
	if c.Archive.Enabled {
		switch c.Archive.Type {
		case "localfs":
			if c.Archive.Path == "" {
				return core.WrapError(core.ErrConfigMissing,
					fmt.Errorf("archive.path required for localfs archive"))
			}
		case "s3":
			if c.Archive.S3.Bucket == "" {
				return core.WrapError(core.ErrConfigMissing,
					fmt.Errorf("archive.s3.bucket required for s3 archive"))
			}
		default:
			return core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("unknown archive type: %q", c.Archive.Type))
		}
	}

	// Schedule validation
	if c.Schedule.Enabled {
		if _, err := cron.ParseStandard(c.Schedule.Cron); err != nil {
			return core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("invalid schedule.cron %q: %w", c.Schedule.Cron, err))
		}
		if len(c.Schedule.Assets) == 0 {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("schedule.assets required when schedule is enabled"))
		}
	}

	// Notifier validation
	for name, n := range c.Notifiers {
		if !n.Enabled {
			continue
		}
		switch name {
		case "telegram":
			if n.BotToken == "" || n.ChatID == "" {
				return core.WrapError(core.ErrConfigMissing,
					fmt.Errorf("notifiers.telegram requires bot_token and chat_id"))
			}
		case "webhook":
			if n.URL == "" {
				return core.WrapError(core.ErrConfigMissing,
					fmt.Errorf("notifiers.webhook requires url"))
			}
		case "email":
			if n.Host == "" || n.From == "" || len(n.To) == 0 {
				return core.WrapError(core.ErrConfigMissing,
					fmt.Errorf("notifiers.email requires host, from and to"))
			}
		default:
			return core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("unknown notifier: %q", name))
		}
	}

	// Alert validation; expressions are parsed when the evaluator is built
	if c.Alerts.Enabled {
		for i, r := range c.Alerts.Rules {
			if r.Name == "" || r.Expr == "" {
				return core.WrapError(core.ErrConfigMissing,
					fmt.Errorf("alerts.rules[%d] requires name and expr", i))
			}
		}
		if c.Alerts.Cooldown < 0 {
			return core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("alerts.cooldown cannot be negative, got %v", c.Alerts.Cooldown))
		}
	}

	return nil
}
