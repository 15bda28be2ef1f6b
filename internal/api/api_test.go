package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cortexd/cortexd/internal/domain"
	"github.com/cortexd/cortexd/internal/incident"
	"github.com/cortexd/cortexd/internal/infra/store"
	"github.com/cortexd/cortexd/internal/runbook"
	"github.com/cortexd/cortexd/internal/session"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	st, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	incidents := incident.New(st, incident.DefaultConfig())
	runbooks := runbook.NewRegistry(st, runbook.DefaultDefinitions())
	sessions := session.NewPreserver(t.TempDir(), st, session.DefaultConfig())

	return NewServer(incidents, runbooks, sessions)
}

func TestHandleListIncidentsReturnsEmptyArray(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/incidents/", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Body.String() != "null\n" && rec.Body.String() != "[]\n" {
		t.Fatalf("expected empty list body, got %q", rec.Body.String())
	}
}

func TestHandleGetIncidentNotFound(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/incidents/does-not-exist", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHandleGetIncidentFound(t *testing.T) {
	s := newTestServer(t)
	inc, err := s.incidents.UpsertIncident(domain.Anomaly{Type: domain.AnomalyProcessDown, TargetID: "svc-1", Severity: domain.SeverityCritical})
	if err != nil {
		t.Fatalf("upsert incident: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/incidents/"+inc.ID, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandleSessionPreambleEmpty(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/session/preamble", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}
