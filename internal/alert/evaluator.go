package alert

import (
	"sync"
	"time"

	"github.com/newthinker/cyclewatch/internal/signal"
)

// Alert is one fired rule.
type Alert struct {
	Rule     string    `json:"rule"`
	Asset    string    `json:"asset"`
	Severity string    `json:"severity"`
	Message  string    `json:"message"`
	Value    float64   `json:"value"`
	At       time.Time `json:"at"`
}

// Recorder counts fired alerts.
type Recorder interface {
	RecordAlert(rule, severity string)
}

// Evaluator checks analysis records against rules. State is kept per rule
// and asset, and time is taken from the record so replays are deterministic.
type Evaluator struct {
	rules    []Rule
	cooldown time.Duration
	metrics  Recorder

	// Track pending alerts (waiting for "for" duration)
	pending map[string]time.Time
	// Track last fired time for cooldown
	lastFired map[string]time.Time

	mu sync.Mutex
}

// NewEvaluator validates rules and creates an evaluator.
func NewEvaluator(rules []Rule, cooldown time.Duration, metrics Recorder) (*Evaluator, error) {
	for _, r := range rules {
		if err := r.Validate(); err != nil {
			return nil, err
		}
	}
	return &Evaluator{
		rules:     rules,
		cooldown:  cooldown,
		metrics:   metrics,
		pending:   make(map[string]time.Time),
		lastFired: make(map[string]time.Time),
	}, nil
}

// Len returns the number of rules.
func (e *Evaluator) Len() int {
	return len(e.rules)
}

// Evaluate returns the rules that fire for rec.
func (e *Evaluator) Evaluate(rec signal.AnalysisRecord) []Alert {
	e.mu.Lock()
	defer e.mu.Unlock()

	metrics := Metrics(rec)
	now := rec.At

	var fired []Alert
	for _, rule := range e.rules {
		key := rule.Name + "/" + rec.Asset

		value, ok := rule.Evaluate(metrics)
		if !ok {
			delete(e.pending, key)
			continue
		}

		if rule.For > 0 {
			since, isPending := e.pending[key]
			if !isPending {
				e.pending[key] = now
				continue
			}
			if now.Sub(since) < rule.For {
				continue
			}
		}

		if last, hasFired := e.lastFired[key]; hasFired && now.Sub(last) < e.cooldown {
			continue
		}

		fired = append(fired, Alert{
			Rule:     rule.Name,
			Asset:    rec.Asset,
			Severity: rule.Severity,
			Message:  rule.FormatMessage(rec.Asset, value),
			Value:    value,
			At:       now,
		})
		if e.metrics != nil {
			e.metrics.RecordAlert(rule.Name, rule.Severity)
		}

		e.lastFired[key] = now
		delete(e.pending, key)
	}
	return fired
}
