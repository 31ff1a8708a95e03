// internal/api/handler/api/status.go
package api

import (
	"net/http"

	"github.com/newthinker/cyclewatch/internal/api/response"
)

// StatsProvider defines the interface needed from app.App.
type StatsProvider interface {
	GetStats() map[string]any
}

// StatusHandler reports liveness and application statistics.
type StatusHandler struct {
	app     StatsProvider
	version string
}

// NewStatusHandler creates a status handler.
func NewStatusHandler(app StatsProvider, version string) *StatusHandler {
	return &StatusHandler{app: app, version: version}
}

// Health always answers ok while the process serves requests.
func (h *StatusHandler) Health(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Status returns the version and run statistics.
func (h *StatusHandler) Status(w http.ResponseWriter, r *http.Request) {
	stats := h.app.GetStats()
	stats["version"] = h.version
	response.JSON(w, http.StatusOK, stats)
}
