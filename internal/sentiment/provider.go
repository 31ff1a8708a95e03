// Package sentiment defines the external sentiment score source consumed by
// the cycle engine.
package sentiment

import (
	"context"
	"time"

	"github.com/newthinker/cyclewatch/internal/series"
	"github.com/newthinker/cyclewatch/internal/signal"
	"go.uber.org/zap"
)

// Provider supplies a daily sentiment score
type Provider interface {
	Name() string

	// Score returns the score published for the UTC day of at, or an unset
	// score when that day has none
	Score(ctx context.Context, at time.Time) (signal.Sentiment, error)

	// History returns the daily scores of the last days days, oldest first
	History(ctx context.Context, days int) (series.TimeSeries, error)
}

// Lookup fetches days of history once and returns a function resolving a date
// to its score. A provider failure is logged and degrades every lookup to unset.
func Lookup(ctx context.Context, p Provider, days int, logger *zap.Logger) func(time.Time) signal.Sentiment {
	if p == nil {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	history, err := p.History(ctx, days)
	if err != nil {
		logger.Warn("sentiment unavailable, continuing without it",
			zap.String("provider", p.Name()),
			zap.Error(err),
		)
		return func(time.Time) signal.Sentiment { return signal.Unset() }
	}

	return func(at time.Time) signal.Sentiment {
		if v, ok := history.Lookup(at); ok {
			return signal.SentimentOf(v)
		}
		return signal.Unset()
	}
}
