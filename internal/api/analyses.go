package api

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/banshee-data/risk.report/internal/analysis"
	"github.com/banshee-data/risk.report/internal/httputil"
	"github.com/banshee-data/risk.report/internal/report"
	"github.com/banshee-data/risk.report/internal/risk"
	"github.com/banshee-data/risk.report/internal/security"
)

// analyzeBody is the POST /api/analyses payload. Omitted cap and stride use
// the configured defaults.
type analyzeBody struct {
	Footage  analysis.Footage  `json:"footage"`
	FrameCap *int              `json:"frame_cap,omitempty"`
	Stride   *int              `json:"stride,omitempty"`
	Location analysis.Location `json:"location"`
}

func (s *Server) handleAnalyses(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listAnalyses(w, r)
	case http.MethodPost:
		s.createAnalysis(w, r)
	default:
		httputil.MethodNotAllowed(w)
	}
}

func (s *Server) listAnalyses(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var level risk.Level
	if v := q.Get("level"); v != "" {
		parsed, err := risk.ParseLevel(strings.ToUpper(v))
		if err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
		level = parsed
	}
	limit := 0
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			httputil.BadRequest(w, "Invalid 'limit' parameter")
			return
		}
		limit = n
	}

	all, err := s.history.List(r.Context())
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to list analyses: %v", err))
		return
	}

	out := make([]*analysis.RiskAnalysis, 0, len(all))
	for _, a := range all {
		if level == "" || a.RiskLevel == level {
			out = append(out, a)
		}
	}
	// limit keeps the most recent entries, still oldest first.
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	httputil.WriteJSONOK(w, out)
}

func (s *Server) createAnalysis(w http.ResponseWriter, r *http.Request) {
	var body analyzeBody
	if err := httputil.DecodeJSON(r, &body); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	req := analysis.AnalyzeRequest{
		Request: analysis.Request{
			Footage:  body.Footage,
			FrameCap: s.cfg.GetFrameCap(),
			Stride:   s.cfg.GetStride(),
		},
		Location: body.Location,
	}
	if body.FrameCap != nil {
		req.FrameCap = *body.FrameCap
	}
	if body.Stride != nil {
		req.Stride = *body.Stride
	}

	a, err := s.manager.Analyze(r.Context(), req)
	if err != nil {
		writeAnalysisError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, a)
}

// handleAnalysis serves /api/analyses/{id} and its chart sub-resources.
func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/analyses/")
	id, sub, _ := strings.Cut(rest, "/")
	if id == "" {
		httputil.NotFound(w, "analysis id is required")
		return
	}

	a, err := s.history.Get(r.Context(), id)
	if err != nil {
		writeAnalysisError(w, err)
		return
	}

	switch sub {
	case "":
		httputil.WriteJSONOK(w, a)
	case "chart":
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := report.RenderAnalysisPage(w, a); err != nil {
			log.Printf("[api] chart for %s: %v", id, err)
		}
	case "plot.png":
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", security.SanitizeFilename(a.Source)+".png"))
		if err := report.WriteScorePlot(w, a); err != nil {
			log.Printf("[api] plot for %s: %v", id, err)
		}
	default:
		httputil.NotFound(w, "unknown resource")
	}
}

func (s *Server) handleHistoryChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	all, err := s.history.List(r.Context())
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to list analyses: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := report.RenderHistoryPage(w, all); err != nil {
		log.Printf("[api] history chart: %v", err)
	}
}

// writeAnalysisError maps run and history errors to HTTP statuses.
func writeAnalysisError(w http.ResponseWriter, err error) {
	var inputErr *analysis.InputError
	var sourceErr *analysis.SourceError
	switch {
	case errors.As(err, &inputErr):
		httputil.BadRequest(w, inputErr.Error())
	case errors.Is(err, analysis.ErrNotFound):
		httputil.NotFound(w, err.Error())
	case errors.Is(err, analysis.ErrInvalidFootage):
		httputil.WriteJSONError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, analysis.ErrCancelled):
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &sourceErr):
		httputil.WriteJSONError(w, http.StatusBadGateway, sourceErr.Error())
	default:
		httputil.InternalServerError(w, err.Error())
	}
}
