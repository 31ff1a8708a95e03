// internal/api/handler/api/reports.go
package api

import (
	"net/http"
	"time"

	"github.com/newthinker/cyclewatch/internal/api/response"
	"github.com/newthinker/cyclewatch/internal/core"
	"github.com/newthinker/cyclewatch/internal/report"
)

// ReportsHandler serves published reports from the archive.
type ReportsHandler struct {
	store *report.Store
}

// NewReportsHandler creates a reports handler. A nil store answers every
// request with 503.
func NewReportsHandler(store *report.Store) *ReportsHandler {
	return &ReportsHandler{store: store}
}

func (h *ReportsHandler) available(w http.ResponseWriter) bool {
	if h.store == nil {
		response.Fail(w, core.Errorf(core.ErrConfigMissing, "report archive is disabled"))
		return false
	}
	return true
}

// List returns the dates with a published report for {asset}.
func (h *ReportsHandler) List(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}
	asset := r.PathValue("asset")

	days, err := h.store.List(r.Context(), asset)
	if err != nil {
		response.Fail(w, err)
		return
	}

	dates := make([]string, len(days))
	for i, d := range days {
		dates[i] = d.Format(time.DateOnly)
	}
	response.JSON(w, http.StatusOK, map[string]any{
		"asset": asset,
		"dates": dates,
		"count": len(dates),
	})
}

// Latest returns the most recent report for {asset}.
func (h *ReportsHandler) Latest(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}
	rep, err := h.store.Latest(r.Context(), r.PathValue("asset"))
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, rep)
}

// Get returns the report for {asset} on {date}.
func (h *ReportsHandler) Get(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}
	day, err := time.Parse(time.DateOnly, r.PathValue("date"))
	if err != nil {
		response.Fail(w, core.WrapError(core.ErrInvalidParameter, err))
		return
	}
	rep, err := h.store.Get(r.Context(), r.PathValue("asset"), day)
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, rep)
}
