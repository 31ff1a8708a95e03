// internal/api/handler/api/analysis.go
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/newthinker/cyclewatch/internal/api/response"
	"github.com/newthinker/cyclewatch/internal/app"
	"github.com/newthinker/cyclewatch/internal/core"
	"github.com/newthinker/cyclewatch/internal/cycle"
	"github.com/newthinker/cyclewatch/internal/report"
)

// Analyzer defines the interface needed from app.App.
type Analyzer interface {
	Analyze(ctx context.Context, req cycle.Request, opts app.AnalyzeOptions) (*report.Report, *cycle.Result, error)
}

// AnalysisRequest is the request body of POST /api/v1/analysis.
type AnalysisRequest struct {
	Asset    string `json:"asset"`
	Currency string `json:"currency,omitempty"`
	From     string `json:"from,omitempty"`
	To       string `json:"to,omitempty"`
	Point    bool   `json:"point,omitempty"`
	Advise   bool   `json:"advise,omitempty"`
	Language string `json:"language,omitempty"`
	Publish  bool   `json:"publish,omitempty"`
}

func (r AnalysisRequest) resolve() (cycle.Request, app.AnalyzeOptions, error) {
	from, err := parseTime("from", r.From)
	if err != nil {
		return cycle.Request{}, app.AnalyzeOptions{}, err
	}
	to, err := parseTime("to", r.To)
	if err != nil {
		return cycle.Request{}, app.AnalyzeOptions{}, err
	}
	req := cycle.Request{
		Asset:      r.Asset,
		Currency:   r.Currency,
		From:       from,
		To:         to,
		FetchPoint: r.Point,
	}
	opts := app.AnalyzeOptions{
		Advise:   r.Advise,
		Language: r.Language,
		Publish:  r.Publish,
	}
	return req, opts, nil
}

// AnalysisHandler evaluates assets on demand.
type AnalysisHandler struct {
	app Analyzer
}

// NewAnalysisHandler creates a new analysis handler.
func NewAnalysisHandler(app Analyzer) *AnalysisHandler {
	return &AnalysisHandler{app: app}
}

// Get evaluates the asset named by the query string.
func (h *AnalysisHandler) Get(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	body := AnalysisRequest{
		Asset:    q.Get("asset"),
		Currency: q.Get("currency"),
		From:     q.Get("from"),
		To:       q.Get("to"),
		Language: q.Get("language"),
	}

	var err error
	for name, dst := range map[string]*bool{
		"point":   &body.Point,
		"advise":  &body.Advise,
		"publish": &body.Publish,
	} {
		if *dst, err = parseBool(q, name); err != nil {
			response.Fail(w, err)
			return
		}
	}

	h.run(w, r, body)
}

// Create evaluates the asset described by a JSON body.
func (h *AnalysisHandler) Create(w http.ResponseWriter, r *http.Request) {
	var body AnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Fail(w, core.WrapError(core.ErrInvalidParameter, err))
		return
	}
	h.run(w, r, body)
}

func (h *AnalysisHandler) run(w http.ResponseWriter, r *http.Request, body AnalysisRequest) {
	req, opts, err := body.resolve()
	if err != nil {
		response.Fail(w, err)
		return
	}

	rep, _, err := h.app.Analyze(r.Context(), req, opts)
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, rep)
}
