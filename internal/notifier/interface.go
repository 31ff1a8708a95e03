// Package notifier delivers published reports to external channels.
package notifier

import (
	"context"

	"github.com/newthinker/cyclewatch/internal/report"
)

// Config holds notifier configuration
type Config struct {
	Type   string         `mapstructure:"type"`
	Params map[string]any `mapstructure:"params"`
}

// Notifier defines the interface for report notification
type Notifier interface {
	// Name returns the unique identifier for this notifier
	Name() string

	// Init initializes the notifier with configuration
	Init(cfg Config) error

	// Send delivers a single report
	Send(ctx context.Context, r *report.Report) error

	// SendBatch delivers the reports of one scheduled run together
	SendBatch(ctx context.Context, reports []*report.Report) error
}
