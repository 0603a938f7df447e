package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"orderrpa/internal/history"
	"orderrpa/internal/logger"
	"orderrpa/internal/orders"
	"orderrpa/internal/pipeline"
	"orderrpa/internal/scheduler"
)

// Runs is the subset of the scheduler the API drives.
type Runs interface {
	Trigger(ctx context.Context) (pipeline.Result, error)
	Next() time.Time
	Entries(n int) []time.Time
	Interval() time.Duration
}

type Server struct {
	store   history.Store
	runs    Runs
	metrics http.Handler
}

func New(store history.Store, runs Runs, metrics http.Handler) *Server {
	return &Server{store: store, runs: runs, metrics: metrics}
}

func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLog)

	r.Get("/healthz", s.health)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}
	r.Get("/runs", s.listRuns)
	r.Get("/runs/latest", s.latestRun)
	r.Get("/runs/{id}", s.getRun)
	r.Post("/runs", s.triggerRun)
	r.Get("/schedule", s.schedule)
	return r
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// listRuns returns history newest first, capped by ?limit (default 50).
func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if q := r.URL.Query().Get("limit"); q != "" {
		v, err := strconv.Atoi(q)
		if err != nil || v <= 0 {
			HttpError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = v
	}
	var all []history.RunRecord
	if err := s.store.Range(func(rec history.RunRecord) error {
		all = append(all, rec)
		return nil
	}); err != nil {
		logger.Error("list runs", "error", err)
		HttpError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	out := make([]history.RunRecord, 0, limit)
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, all[i])
	}
	WriteJSON(w, http.StatusOK, out)
}

func (s *Server) latestRun(w http.ResponseWriter, _ *http.Request) {
	rec, err := s.store.Latest()
	s.writeRun(w, rec, err)
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	rec, err := s.store.Get(chi.URLParam(r, "id"))
	s.writeRun(w, rec, err)
}

func (s *Server) writeRun(w http.ResponseWriter, rec history.RunRecord, err error) {
	switch {
	case errors.Is(err, history.ErrNotFound):
		HttpError(w, http.StatusNotFound, "run not found")
	case err != nil:
		logger.Error("get run", "error", err)
		HttpError(w, http.StatusInternalServerError, "failed to get run")
	default:
		WriteJSON(w, http.StatusOK, rec)
	}
}

type triggerResponse struct {
	RunID      string `json:"runId"`
	ReportPath string `json:"reportPath,omitempty"`
	Urgent     int    `json:"urgent"`
	Error      string `json:"error,omitempty"`
}

// triggerRun executes a run synchronously. The run outlives a dropped client.
func (s *Server) triggerRun(w http.ResponseWriter, r *http.Request) {
	res, err := s.runs.Trigger(context.WithoutCancel(r.Context()))
	body := triggerResponse{RunID: res.RunID, ReportPath: res.ReportPath, Urgent: res.Urgent}
	if err == nil {
		WriteJSON(w, http.StatusAccepted, body)
		return
	}
	body.Error = err.Error()
	switch {
	case errors.Is(err, scheduler.ErrRunInProgress):
		WriteJSON(w, http.StatusConflict, body)
	case errors.Is(err, orders.ErrEmptyDataset):
		WriteJSON(w, http.StatusUnprocessableEntity, body)
	case errors.Is(err, orders.ErrSourceUnavailable):
		WriteJSON(w, http.StatusServiceUnavailable, body)
	default:
		WriteJSON(w, http.StatusInternalServerError, body)
	}
}

func (s *Server) schedule(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]any{
		"interval": s.runs.Interval().String(),
		"upcoming": s.runs.Entries(5),
	}
	if next := s.runs.Next(); !next.IsZero() {
		resp["next"] = next
	}
	WriteJSON(w, http.StatusOK, resp)
}

func requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start).String(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func HttpError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, map[string]string{"error": msg})
}
