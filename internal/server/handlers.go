package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/blog-pipeline/internal/ingest"
	"github.com/sells-group/blog-pipeline/internal/model"
	"github.com/sells-group/blog-pipeline/internal/pipeline"
	"github.com/sells-group/blog-pipeline/internal/runner"
	"github.com/sells-group/blog-pipeline/internal/store"
)

const (
	maxBodyBytes     = 10 << 20
	defaultListLimit = 50
)

type errorBody struct {
	Error string `json:"error"`
}

type acceptedBody struct {
	RunID  string `json:"run_id"`
	Status string `json:"status"`
}

type startRequest struct {
	Sources  []model.SourceContent `json:"sources,omitempty"`
	Locators []ingest.Locator      `json:"locators,omitempty"`
	Config   model.BlogConfig      `json:"config"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := req.Config.WithDefaults().Validate(); err != nil {
		badRequest(w, err.Error())
		return
	}

	sources := req.Sources
	if len(req.Locators) > 0 {
		if s.opts.Ingester == nil {
			badRequest(w, "source ingestion is not configured")
			return
		}
		for _, loc := range req.Locators {
			if err := checkRemoteLocator(loc); err != nil {
				badRequest(w, err.Error())
				return
			}
		}
		got, err := s.opts.Ingester.IngestAll(r.Context(), req.Locators)
		if err != nil {
			writeError(w, err)
			return
		}
		sources = append(sources, got...)
	}
	if len(sources) == 0 {
		badRequest(w, "sources or locators are required")
		return
	}

	if wantWait(r) {
		runID, err := s.runs.Start(r.Context(), sources, req.Config)
		if runID == "" {
			writeError(w, err)
			return
		}
		s.respondAfterRun(w, r, runID, err)
		return
	}

	runID, _, err := s.runs.StartAsync(r.Context(), sources, req.Config)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, acceptedBody{RunID: runID, Status: "accepted"})
}

// checkRemoteLocator rejects locators that would read the server's own
// filesystem. Over HTTP only http(s) pages and videos can be ingested.
func checkRemoteLocator(loc ingest.Locator) error {
	if loc.Type == model.SourceTypePDF {
		return eris.New("pdf locators are only accepted by the CLI")
	}
	u, err := url.Parse(loc.Value)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return eris.Errorf("locator %q is not an http(s) url", loc.Value)
	}
	return nil
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	runs, err := s.runs.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	if runs == nil {
		runs = []runner.Status{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.runs.GetStatus(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	state, err := s.runs.GetState(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.runs.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleOutlineDecision(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")
	var review model.OutlineReview
	if !decodeBody(w, r, &review) {
		return
	}
	if err := review.Validate(); err != nil {
		badRequest(w, err.Error())
		return
	}

	if wantWait(r) {
		s.respondAfterRun(w, r, runID, s.runs.ResumeOutline(r.Context(), runID, review))
		return
	}
	if _, err := s.runs.ResumeOutlineAsync(r.Context(), runID, review); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, acceptedBody{RunID: runID, Status: "accepted"})
}

func (s *Server) handlePublishDecision(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")
	var review model.PublishReview
	if !decodeBody(w, r, &review) {
		return
	}
	if err := review.Validate(); err != nil {
		badRequest(w, err.Error())
		return
	}

	if wantWait(r) {
		s.respondAfterRun(w, r, runID, s.runs.ResumePublish(r.Context(), runID, review))
		return
	}
	if _, err := s.runs.ResumePublishAsync(r.Context(), runID, review); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, acceptedBody{RunID: runID, Status: "accepted"})
}

func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")
	if wantWait(r) {
		s.respondAfterRun(w, r, runID, s.runs.Retry(r.Context(), runID))
		return
	}
	if _, err := s.runs.RetryAsync(r.Context(), runID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, acceptedBody{RunID: runID, Status: "accepted"})
}

// respondAfterRun writes the run's status after a synchronous execution. A
// node failure still yields the status, which then reports the run stuck.
func (s *Server) respondAfterRun(w http.ResponseWriter, r *http.Request, runID string, runErr error) {
	var nodeErr *pipeline.NodeError
	if runErr != nil && !errors.As(runErr, &nodeErr) {
		writeError(w, runErr)
		return
	}
	st, err := s.runs.GetStatus(r.Context(), runID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func parseFilter(r *http.Request) (store.CheckpointFilter, error) {
	q := r.URL.Query()
	filter := store.CheckpointFilter{Limit: defaultListLimit}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return filter, errors.New("limit must be a positive integer")
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return filter, errors.New("offset must be a non-negative integer")
		}
		filter.Offset = n
	}
	if v := q.Get("updated_after"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, errors.New("updated_after must be an RFC 3339 timestamp")
		}
		filter.UpdatedAfter = t
	}
	return filter, nil
}

func wantWait(r *http.Request) bool {
	wait, _ := strconv.ParseBool(r.URL.Query().Get("wait"))
	return wait
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		badRequest(w, "invalid request body")
		return false
	}
	return true
}

func statusCode(err error) int {
	switch {
	case errors.Is(err, runner.ErrRunNotFound):
		return http.StatusNotFound
	case errors.Is(err, runner.ErrRunBusy),
		errors.Is(err, runner.ErrNotInterrupted),
		errors.Is(err, runner.ErrWrongGate):
		return http.StatusConflict
	case errors.Is(err, runner.ErrNoSources):
		return http.StatusBadRequest
	case errors.Is(err, ingest.ErrNoSources):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	code := statusCode(err)
	if code == http.StatusInternalServerError {
		zap.L().Error("server: request failed", zap.Error(err))
	}
	writeJSON(w, code, errorBody{Error: err.Error()})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("server: encode response", zap.Error(err))
	}
}
