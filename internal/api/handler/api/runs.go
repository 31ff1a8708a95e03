// internal/api/handler/api/runs.go
package api

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/newthinker/cyclewatch/internal/api/job"
	"github.com/newthinker/cyclewatch/internal/api/response"
	"github.com/newthinker/cyclewatch/internal/core"
	"go.uber.org/zap"
)

const (
	runJobType     = "scheduled_run"
	defaultTimeout = 10 * time.Minute
)

// ScheduledRunner defines the interface needed from app.App.
type ScheduledRunner interface {
	RunScheduled(ctx context.Context) error
	GetStats() map[string]any
}

// RunsHandler starts scheduled runs in the background and reports on them.
type RunsHandler struct {
	jobs    *job.Store
	app     ScheduledRunner
	timeout time.Duration
	logger  *zap.Logger

	mu sync.Mutex
}

// NewRunsHandler creates a runs handler. A zero timeout uses ten minutes.
func NewRunsHandler(jobs *job.Store, app ScheduledRunner, timeout time.Duration, logger *zap.Logger) *RunsHandler {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RunsHandler{jobs: jobs, app: app, timeout: timeout, logger: logger}
}

// Create starts a run unless one is already in progress.
func (h *RunsHandler) Create(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.jobs.Running(runJobType) {
		response.Error(w, http.StatusConflict,
			core.Errorf(core.ErrInvalidParameter, "a scheduled run is already in progress"))
		return
	}

	j := h.jobs.Create(runJobType)
	go h.run(j.ID)

	response.JSON(w, http.StatusAccepted, map[string]any{
		"job_id": j.ID,
		"status": j.Status,
	})
}

func (h *RunsHandler) run(jobID string) {
	h.jobs.Update(jobID, func(j *job.Job) {
		j.Status = job.StatusRunning
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	if err := h.app.RunScheduled(ctx); err != nil {
		h.logger.Error("triggered run failed", zap.String("job_id", jobID), zap.Error(err))

		var coreErr *core.Error
		if !errors.As(err, &coreErr) {
			coreErr = core.WrapError(core.ErrProviderFailed, err)
		}
		h.jobs.Update(jobID, func(j *job.Job) {
			j.Status = job.StatusFailed
			j.Error = coreErr
		})
		return
	}

	stats := h.app.GetStats()
	h.jobs.Update(jobID, func(j *job.Job) {
		j.Status = job.StatusComplete
		j.Result = stats
	})
}

// Get returns the status of run {id}.
func (h *RunsHandler) Get(w http.ResponseWriter, r *http.Request) {
	j, err := h.jobs.Get(r.PathValue("id"))
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, j)
}

// List returns recent runs, newest first.
func (h *RunsHandler) List(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, h.jobs.List())
}
