package alert

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/newthinker/cyclewatch/internal/core"
	"github.com/newthinker/cyclewatch/internal/signal"
)

var exprPattern = regexp.MustCompile(`^(\w+)\s*(>=|<=|==|!=|>|<)\s*(-?[\d.]+)$`)

// Rule fires when a record field crosses a threshold, e.g.
// "diff_band_percent > -10" or "sentiment_score < 20".
type Rule struct {
	Name     string
	Expr     string
	For      time.Duration // the condition must hold this long, measured on record time
	Severity string
	Message  string
}

type condition struct {
	metric    string
	op        string
	threshold float64
}

func (r Rule) parse() (condition, error) {
	matches := exprPattern.FindStringSubmatch(strings.TrimSpace(r.Expr))
	if len(matches) != 4 {
		return condition{}, core.Errorf(core.ErrConfigInvalid, "alert %q: cannot parse expression %q", r.Name, r.Expr)
	}
	threshold, err := strconv.ParseFloat(matches[3], 64)
	if err != nil {
		return condition{}, core.Errorf(core.ErrConfigInvalid, "alert %q: bad threshold %q", r.Name, matches[3])
	}
	return condition{metric: matches[1], op: matches[2], threshold: threshold}, nil
}

// Validate checks the rule expression and that it names a known field.
func (r Rule) Validate() error {
	if r.Name == "" {
		return core.Errorf(core.ErrConfigMissing, "alert rule without a name")
	}
	c, err := r.parse()
	if err != nil {
		return err
	}
	if !knownMetric(c.metric) {
		return core.Errorf(core.ErrConfigInvalid, "alert %q: unknown field %q", r.Name, c.metric)
	}
	return nil
}

// Evaluate reports whether the rule holds for metrics, and the observed value.
// A missing metric never triggers.
func (r Rule) Evaluate(metrics map[string]float64) (float64, bool) {
	c, err := r.parse()
	if err != nil {
		return 0, false
	}

	value, exists := metrics[c.metric]
	if !exists {
		return 0, false
	}

	switch c.op {
	case ">":
		return value, value > c.threshold
	case "<":
		return value, value < c.threshold
	case ">=":
		return value, value >= c.threshold
	case "<=":
		return value, value <= c.threshold
	case "==":
		return value, value == c.threshold
	case "!=":
		return value, value != c.threshold
	default:
		return value, false
	}
}

// FormatMessage renders a fired rule for one asset.
func (r Rule) FormatMessage(asset string, value float64) string {
	severity := r.Severity
	if severity == "" {
		severity = "info"
	}
	msg := r.Message
	if msg == "" {
		msg = r.Expr
	}
	return fmt.Sprintf("[%s] %s (%s): %s, observed %.2f",
		strings.ToUpper(severity), r.Name, asset, msg, value)
}

// Metrics flattens the numeric fields of rec. An unset sentiment is left out.
func Metrics(rec signal.AnalysisRecord) map[string]float64 {
	fields := rec.Fields()
	m := make(map[string]float64, len(fields))
	for _, f := range fields {
		if v, ok := f.Value.(float64); ok {
			m[f.Key] = v
		}
	}
	return m
}

func knownMetric(name string) bool {
	for _, f := range (signal.AnalysisRecord{}).Fields() {
		if f.Key == name {
			return true
		}
	}
	return false
}
