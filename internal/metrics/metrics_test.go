package metrics

import (
	"testing"

	"github.com/newthinker/cyclewatch/internal/signal"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestNewRegistry(t *testing.T) {
	reg := NewRegistry()
	if reg == nil {
		t.Fatal("expected non-nil registry")
	}
}

func TestRegistry_HTTPMetrics(t *testing.T) {
	reg := NewRegistry()

	// Verify HTTP metrics are registered
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}

	// Should have go runtime metrics at minimum
	if len(mfs) == 0 {
		t.Error("expected some metrics to be registered")
	}
}

func TestRegistry_RecordRequest(t *testing.T) {
	reg := NewRegistry()

	reg.RecordRequest("GET", "/api/v1/analysis", 200, 0.05)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}

	found := false
	for _, mf := range mfs {
		if mf.GetName() == "http_requests_total" {
			found = true
			break
		}
	}
	if !found {
		t.Error("expected http_requests_total metric")
	}
}

func TestRegistry_RecordRequest_StatusCodes(t *testing.T) {
	tests := []struct {
		status   int
		expected string
	}{
		{100, "1xx"},
		{200, "2xx"},
		{201, "2xx"},
		{301, "3xx"},
		{400, "4xx"},
		{404, "4xx"},
		{500, "5xx"},
		{503, "5xx"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			reg := NewRegistry()
			reg.RecordRequest("GET", "/test", tt.status, 0.01)

			mfs, err := reg.Gather()
			if err != nil {
				t.Fatalf("gather failed: %v", err)
			}

			found := false
			for _, mf := range mfs {
				if mf.GetName() == "http_requests_total" {
					for _, m := range mf.GetMetric() {
						for _, label := range m.GetLabel() {
							if label.GetName() == "status" && label.GetValue() == tt.expected {
								found = true
							}
						}
					}
				}
			}
			if !found {
				t.Errorf("expected status label %s for status code %d", tt.expected, tt.status)
			}
		})
	}
}

func TestRegistry_InFlight(t *testing.T) {
	reg := NewRegistry()

	reg.InFlightInc()
	reg.InFlightInc()
	reg.InFlightDec()

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}

	found := false
	for _, mf := range mfs {
		if mf.GetName() == "http_requests_in_flight" {
			found = true
			for _, m := range mf.GetMetric() {
				if m.GetGauge().GetValue() != 1 {
					t.Errorf("expected in-flight gauge to be 1, got %v", m.GetGauge().GetValue())
				}
			}
		}
	}
	if !found {
		t.Error("expected http_requests_in_flight metric")
	}
}

func TestRegistry_DurationHistogram(t *testing.T) {
	reg := NewRegistry()

	reg.RecordRequest("POST", "/api/v1/analysis", 200, 0.123)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}

	found := false
	for _, mf := range mfs {
		if mf.GetName() == "http_request_duration_seconds" {
			found = true
			for _, m := range mf.GetMetric() {
				hist := m.GetHistogram()
				if hist.GetSampleCount() != 1 {
					t.Errorf("expected sample count 1, got %d", hist.GetSampleCount())
				}
				if hist.GetSampleSum() < 0.12 || hist.GetSampleSum() > 0.13 {
					t.Errorf("expected sample sum ~0.123, got %v", hist.GetSampleSum())
				}
			}
		}
	}
	if !found {
		t.Error("expected http_request_duration_seconds metric")
	}
}

// Ensure the registry implements prometheus.Gatherer interface
func TestRegistry_ImplementsGatherer(t *testing.T) {
	reg := NewRegistry()
	var _ prometheus.Gatherer = reg
}

func findMetric(t *testing.T, reg *Registry, name string, labels map[string]string) *dto.Metric {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			matched := 0
			for _, label := range m.GetLabel() {
				if v, ok := labels[label.GetName()]; ok && v == label.GetValue() {
					matched++
				}
			}
			if matched == len(labels) {
				return m
			}
		}
	}
	return nil
}

func TestRegistry_RecordEvaluation(t *testing.T) {
	reg := NewRegistry()

	reg.RecordEvaluation("bitcoin", "ok", 1.5)
	reg.RecordEvaluation("bitcoin", "ok", 0.5)
	reg.RecordEvaluation("bitcoin", "EMPTY_SERIES", 0.1)

	m := findMetric(t, reg, "cyclewatch_evaluations_total", map[string]string{"asset": "bitcoin", "status": "ok"})
	if m == nil {
		t.Fatal("expected cyclewatch_evaluations_total{status=ok}")
	}
	if m.GetCounter().GetValue() != 2 {
		t.Errorf("expected 2 ok evaluations, got %v", m.GetCounter().GetValue())
	}

	h := findMetric(t, reg, "cyclewatch_evaluation_duration_seconds", nil)
	if h == nil || h.GetHistogram().GetSampleCount() != 3 {
		t.Error("expected 3 duration samples")
	}
}

func TestRegistry_RecordResult(t *testing.T) {
	reg := NewRegistry()

	reg.RecordResult(signal.AnalysisRecord{
		Asset:        "bitcoin",
		Currency:     "usd",
		CurrentPrice: 90,
		RollingMean:  100,
		Band:         500,
		VolumeMean:   10,
		Sentiment:    signal.SentimentOf(25),
	})

	price := findMetric(t, reg, "cyclewatch_latest_value", map[string]string{"asset": "bitcoin", "series": "price"})
	if price == nil || price.GetGauge().GetValue() != 90 {
		t.Errorf("expected price gauge 90, got %v", price)
	}
	acc := findMetric(t, reg, "cyclewatch_accumulation", map[string]string{"asset": "bitcoin"})
	if acc == nil || acc.GetGauge().GetValue() != 1 {
		t.Error("expected accumulation gauge 1")
	}
	dist := findMetric(t, reg, "cyclewatch_distribution", map[string]string{"asset": "bitcoin"})
	if dist == nil || dist.GetGauge().GetValue() != 0 {
		t.Error("expected distribution gauge 0")
	}
	if findMetric(t, reg, "cyclewatch_latest_sentiment", map[string]string{"asset": "bitcoin"}) == nil {
		t.Error("expected sentiment gauge")
	}

	// an unset score removes the stale gauge
	reg.RecordResult(signal.AnalysisRecord{Asset: "bitcoin", Currency: "usd", CurrentPrice: 90, RollingMean: 100, Band: 500})
	if findMetric(t, reg, "cyclewatch_latest_sentiment", map[string]string{"asset": "bitcoin"}) != nil {
		t.Error("expected sentiment gauge to be removed")
	}
}

func TestRegistry_ObserveProviderRequest(t *testing.T) {
	reg := NewRegistry()

	reg.ObserveProviderRequest("coingecko", "ok")
	reg.ObserveProviderRequest("coingecko", "4xx")

	m := findMetric(t, reg, "cyclewatch_provider_requests_total", map[string]string{"provider": "coingecko", "outcome": "4xx"})
	if m == nil || m.GetCounter().GetValue() != 1 {
		t.Error("expected one 4xx coingecko request")
	}
}

func TestRegistry_RecordScheduledRun(t *testing.T) {
	reg := NewRegistry()

	reg.RecordScheduledRun("error")

	if findMetric(t, reg, "cyclewatch_scheduled_runs_total", map[string]string{"status": "error"}) == nil {
		t.Error("expected cyclewatch_scheduled_runs_total{status=error}")
	}
}

func TestRegistry_RecordAlert(t *testing.T) {
	reg := NewRegistry()

	reg.RecordAlert("near_top", "warning")
	reg.RecordAlert("near_top", "warning")

	m := findMetric(t, reg, "cyclewatch_alerts_fired_total", map[string]string{"rule": "near_top", "severity": "warning"})
	if m == nil || m.GetCounter().GetValue() != 2 {
		t.Error("expected two near_top alerts")
	}
}
