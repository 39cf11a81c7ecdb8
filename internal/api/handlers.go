package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/baxromumarov/uni-recruit/internal/classify"
	"github.com/baxromumarov/uni-recruit/internal/core"
	"github.com/baxromumarov/uni-recruit/internal/observability"
	"github.com/baxromumarov/uni-recruit/internal/store"
	"github.com/baxromumarov/uni-recruit/internal/urlutil"
)

const maxExtractBody = 4 << 20

type jobView struct {
	School     string `json:"school"`
	Title      string `json:"title"`
	URL        string `json:"url"`
	Category   string `json:"category"`
	Label      string `json:"label"`
	ObservedOn string `json:"observed_on"`
}

func viewJob(school, title, url string, c classify.Category, observed string) jobView {
	return jobView{
		School:     school,
		Title:      title,
		URL:        url,
		Category:   string(c),
		Label:      c.Label(),
		ObservedOn: observed,
	}
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r, 50)
	q := r.URL.Query()

	filter := store.JobFilter{
		School: strings.TrimSpace(q.Get("school")),
		Limit:  limit,
		Offset: offset,
	}
	if v := strings.TrimSpace(q.Get("category")); v != "" {
		c, ok := classify.ParseCategory(v)
		if !ok {
			respondError(w, http.StatusBadRequest, "unknown category: "+v)
			return
		}
		filter.Category = c
	}

	jobs, total, err := s.reader.ListJobs(r.Context(), filter)
	if err != nil {
		observability.IncError(observability.ErrorStore, "api")
		respondError(w, http.StatusInternalServerError, "Failed to fetch jobs: "+err.Error())
		return
	}

	items := make([]jobView, 0, len(jobs))
	for _, j := range jobs {
		items = append(items, viewJob(j.School, j.Title, j.URL, j.Category, j.ObservedOn.Format("2006-01-02")))
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"items":  items,
		"limit":  limit,
		"offset": offset,
		"total":  total,
	})
}

func (s *Server) handleListSources(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r, 50)

	sources, total, err := s.reader.ListSources(r.Context(), limit, offset)
	if err != nil {
		observability.IncError(observability.ErrorStore, "api")
		respondError(w, http.StatusInternalServerError, "Failed to fetch sources: "+err.Error())
		return
	}
	if sources == nil {
		sources = []store.Source{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"items":  sources,
		"limit":  limit,
		"offset": offset,
		"total":  total,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	meta, err := s.reader.Metadata(r.Context())
	if err != nil {
		observability.IncError(observability.ErrorStore, "api")
		respondError(w, http.StatusInternalServerError, "Failed to read metadata: "+err.Error())
		return
	}

	payload := map[string]any{
		"stats":    observability.Snapshot(),
		"metadata": meta,
	}
	if s.runner != nil {
		payload["active_run"] = s.runner.Active()
		reports := map[string]core.RunReport{}
		for _, kind := range []core.RunKind{core.RunJobs, core.RunSources} {
			if rep, ok := s.runner.LastReport(kind); ok {
				reports[string(kind)] = rep
			}
		}
		payload["last_reports"] = reports
	}
	respondJSON(w, http.StatusOK, payload)
}

type ExtractRequest struct {
	HTML    string `json:"html"`
	BaseURL string `json:"base_url"`
	School  string `json:"school"`
}

// handleExtract runs the extractor over posted HTML without touching storage.
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	var req ExtractRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxExtractBody)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !urlutil.IsHTTP(req.BaseURL) {
		respondError(w, http.StatusBadRequest, "base_url must be an absolute http(s) URL")
		return
	}

	jobs, err := s.extractor.Extract(req.HTML, req.BaseURL, req.School)
	if err != nil {
		observability.IncError(observability.ClassifyPageError(err), "api")
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	items := make([]jobView, 0, len(jobs))
	for _, j := range jobs {
		items = append(items, viewJob(j.School, j.Title, j.URL, j.Category, j.ObservedOn.Format("2006-01-02")))
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"items": items,
		"total": len(items),
	})
}

func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	if s.runner == nil {
		respondError(w, http.StatusServiceUnavailable, "runs are disabled")
		return
	}

	kind := core.RunKind(chi.URLParam(r, "kind"))
	if kind != core.RunJobs && kind != core.RunSources {
		respondError(w, http.StatusNotFound, "unknown run kind")
		return
	}

	// the run outlives the request
	err := s.runner.Start(context.WithoutCancel(r.Context()), kind)
	var unknown *core.UnknownRunError
	switch {
	case errors.Is(err, core.ErrRunInProgress):
		respondError(w, http.StatusConflict, err.Error())
		return
	case errors.Is(err, core.ErrRunnerClosed):
		respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	case errors.As(err, &unknown):
		respondError(w, http.StatusNotFound, err.Error())
		return
	case err != nil:
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]string{
		"status": "started",
		"kind":   string(kind),
	})
}

func parsePagination(r *http.Request, defaultLimit int) (int, int) {
	q := r.URL.Query()
	limit := defaultLimit
	offset := 0

	if v := q.Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}

	if v := q.Get("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			offset = parsed
		}
	}

	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > 500 {
		limit = 500
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
