// Package api provides the admin/inspection HTTP surface for cortexd:
// JSON views over incidents and runbook graduation state, an incident
// dismiss endpoint, the session preamble endpoint, and the Prometheus
// /metrics handler. Compression reports are not served. There is no inference-serving API in
// this build — cortexd observes and repairs the agent, it does not
// serve model calls.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cortexd/cortexd/internal/domain"
	"github.com/cortexd/cortexd/internal/incident"
	"github.com/cortexd/cortexd/internal/runbook"
	"github.com/cortexd/cortexd/internal/session"
)

// Server is the cortexd admin HTTP API server.
type Server struct {
	incidents      *incident.Manager
	runbooks       *runbook.Registry
	sessions       *session.Preserver
	metricsEnabled bool
}

// NewServer creates a new admin API server.
func NewServer(incidents *incident.Manager, runbooks *runbook.Registry, sessions *session.Preserver) *Server {
	return &Server{incidents: incidents, runbooks: runbooks, sessions: sessions}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Route("/incidents", func(r chi.Router) {
		r.Get("/", s.handleListIncidents)
		r.Get("/{id}", s.handleGetIncident)
		r.Post("/{id}/dismiss", s.handleDismissIncident)
	})

	r.Get("/runbooks/{id}/stats", s.handleRunbookStats)
	r.Get("/session/preamble", s.handleSessionPreamble)

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) handleListIncidents(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"
	incidents, err := s.incidents.List(activeOnly)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, incidents)
}

func (s *Server) handleGetIncident(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	inc, err := s.incidents.Get(id)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, inc)
}

func (s *Server) handleDismissIncident(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	inc, err := s.incidents.Get(id)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err := s.incidents.Dismiss(inc.AnomalyType, inc.TargetID); err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "dismissed"})
}

func (s *Server) handleRunbookStats(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	stats, err := s.runbooks.Stats(id)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleSessionPreamble(w http.ResponseWriter, r *http.Request) {
	var topics []string
	if t := r.URL.Query().Get("topics"); t != "" {
		topics = splitCSV(t)
	}
	scored, preamble, err := s.sessions.Restore(topics)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Preamble string                `json:"preamble"`
		Sessions []domain.ScoredSession `json:"sessions"`
	}{Preamble: preamble, Sessions: scored})
}

func splitCSV(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}
