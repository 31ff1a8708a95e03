package notifier

import (
	"context"
	"errors"
	"testing"

	"github.com/newthinker/cyclewatch/internal/report"
)

type mockNotifier struct {
	name       string
	sendCalled int
	batchCalls int
	shouldFail bool
}

func (m *mockNotifier) Name() string { return m.name }

func (m *mockNotifier) Init(cfg Config) error { return nil }

func (m *mockNotifier) Send(ctx context.Context, r *report.Report) error {
	m.sendCalled++
	if m.shouldFail {
		return errors.New("send failed")
	}
	return nil
}

func (m *mockNotifier) SendBatch(ctx context.Context, reports []*report.Report) error {
	m.batchCalls++
	if m.shouldFail {
		return errors.New("batch send failed")
	}
	return nil
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()

	mock := &mockNotifier{name: "test"}
	if err := r.Register(mock); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Duplicate registration should fail
	if err := r.Register(mock); err == nil {
		t.Error("expected error for duplicate registration")
	}
	if r.Len() != 1 {
		t.Errorf("expected 1 notifier, got %d", r.Len())
	}
}

func TestRegistry_Get(t *testing.T) {
	r := NewRegistry()
	r.Register(&mockNotifier{name: "webhook"})

	n, err := r.Get("webhook")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n.Name() != "webhook" {
		t.Errorf("expected webhook, got %s", n.Name())
	}

	if _, err := r.Get("missing"); err == nil {
		t.Error("expected error for missing notifier")
	}
}

func TestRegistry_GetAllSorted(t *testing.T) {
	r := NewRegistry()
	r.Register(&mockNotifier{name: "webhook"})
	r.Register(&mockNotifier{name: "email"})
	r.Register(&mockNotifier{name: "telegram"})

	all := r.GetAll()
	want := []string{"email", "telegram", "webhook"}
	for i, n := range all {
		if n.Name() != want[i] {
			t.Errorf("GetAll()[%d] = %s, want %s", i, n.Name(), want[i])
		}
	}
}

func TestRegistry_NotifyAll(t *testing.T) {
	r := NewRegistry()
	ok := &mockNotifier{name: "ok"}
	bad := &mockNotifier{name: "bad", shouldFail: true}
	r.Register(ok)
	r.Register(bad)

	errs := r.NotifyAll(context.Background(), &report.Report{Asset: "bitcoin"})

	if ok.sendCalled != 1 || bad.sendCalled != 1 {
		t.Errorf("expected every notifier to be called once, got ok=%d bad=%d", ok.sendCalled, bad.sendCalled)
	}
	if len(errs) != 1 || errs["bad"] == nil {
		t.Errorf("expected only the failing notifier in errors, got %v", errs)
	}
}

func TestRegistry_NotifyAllBatch(t *testing.T) {
	r := NewRegistry()
	mock := &mockNotifier{name: "test"}
	r.Register(mock)

	errs := r.NotifyAllBatch(context.Background(), nil)
	if len(errs) != 0 || mock.batchCalls != 0 {
		t.Errorf("empty batch should not reach notifiers, got %d calls", mock.batchCalls)
	}

	errs = r.NotifyAllBatch(context.Background(), []*report.Report{{Asset: "bitcoin"}, {Asset: "ethereum"}})
	if len(errs) != 0 {
		t.Errorf("unexpected errors: %v", errs)
	}
	if mock.batchCalls != 1 {
		t.Errorf("expected one batch call, got %d", mock.batchCalls)
	}
}
