// Package incident implements the de-duplicated incident state machine:
// Detected → Diagnosing → Remediating → Verifying → Resolved, with escape
// hatches to RemediationFailed/Escalated/SelfResolved/Dismissed.
package incident

import (
	"fmt"
	"sync"
	"time"

	"github.com/cortexd/cortexd/internal/domain"
	"github.com/cortexd/cortexd/internal/infra/metrics"
	"github.com/cortexd/cortexd/internal/infra/store"
	"github.com/google/uuid"
)

// Config tunes the manager's behavior.
type Config struct {
	MaxAttempts   int
	DismissWindow time.Duration
	Now           func() time.Time
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:   3,
		DismissWindow: 24 * time.Hour,
		Now:           time.Now,
	}
}

// Manager owns the incident state machine, persisted through Store.
type Manager struct {
	mu        sync.Mutex
	store     *store.Store
	cfg       Config
	dismissed map[string]time.Time // key = anomalyType|targetID
}

func keyFor(anomalyType domain.AnomalyType, targetID string) string {
	return fmt.Sprintf("%s|%s", anomalyType, targetID)
}

// New constructs a Manager over st, defaulting the config's clock/attempts
// if left zero.
func New(st *store.Store, cfg Config) *Manager {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.DismissWindow <= 0 {
		cfg.DismissWindow = 24 * time.Hour
	}
	return &Manager{store: st, cfg: cfg, dismissed: make(map[string]time.Time)}
}

// IsDismissed reports whether (anomalyType, targetID) is within an active
// dismiss window.
func (m *Manager) IsDismissed(anomalyType domain.AnomalyType, targetID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	until, ok := m.dismissed[keyFor(anomalyType, targetID)]
	if !ok {
		return false
	}
	if m.cfg.Now().After(until) {
		delete(m.dismissed, keyFor(anomalyType, targetID))
		return false
	}
	return true
}

// Dismiss silences (anomalyType, targetID) for the configured dismiss
// window and, if an active incident exists, transitions it to Dismissed.
func (m *Manager) Dismiss(anomalyType domain.AnomalyType, targetID string) error {
	m.mu.Lock()
	m.dismissed[keyFor(anomalyType, targetID)] = m.cfg.Now().Add(m.cfg.DismissWindow)
	m.mu.Unlock()

	active, err := m.store.FindActiveIncident(anomalyType, targetID)
	if err != nil {
		return err
	}
	if active == nil {
		return nil
	}
	return m.transition(active, domain.IncidentDismissed, "dismissed by operator")
}

// UpsertIncident implements detection: if a non-terminal incident already
// exists for (a.Type, a.TargetID), its severity and UpdatedAt are refreshed
// in place; otherwise a new incident is created in the Detected state.
func (m *Manager) UpsertIncident(a domain.Anomaly) (*domain.Incident, error) {
	if m.IsDismissed(a.Type, a.TargetID) {
		return &domain.Incident{ID: "dismissed", State: domain.IncidentDismissed}, nil
	}

	existing, err := m.store.FindActiveIncident(a.Type, a.TargetID)
	if err != nil {
		return nil, err
	}
	now := m.cfg.Now()

	if existing != nil {
		existing.Severity = a.Severity
		existing.UpdatedAt = now
		if err := m.store.UpsertIncident(*existing); err != nil {
			return nil, err
		}
		return existing, nil
	}

	inc := domain.Incident{
		ID:          "INC-" + uuid.NewString(),
		AnomalyType: a.Type,
		TargetID:    a.TargetID,
		Severity:    a.Severity,
		State:       domain.IncidentDetected,
		DetectedAt:  now,
		UpdatedAt:   now,
		Audit: []domain.AuditEntry{
			{At: now, From: "", To: domain.IncidentDetected, Detail: a.Description},
		},
	}
	if err := m.store.UpsertIncident(inc); err != nil {
		return nil, err
	}
	metrics.IncidentsDetected.WithLabelValues(string(a.Type)).Inc()
	return &inc, nil
}

// Transition moves an incident to a new state, appending an audit entry.
// Transitioning a terminal incident fails with ErrIncidentTerminal. No
// transition check matrix is enforced beyond the terminal-state guard: any
// other from/to pair is recorded as requested, deliberately, for forensic
// clarity.
func (m *Manager) Transition(incidentID string, to domain.IncidentState, detail string) error {
	inc, err := m.store.GetIncident(incidentID)
	if err != nil {
		return err
	}
	return m.transition(inc, to, detail)
}

func (m *Manager) transition(inc *domain.Incident, to domain.IncidentState, detail string) error {
	if inc.State.IsTerminal() {
		return domain.ErrIncidentTerminal
	}

	now := m.cfg.Now()
	inc.Audit = append(inc.Audit, domain.AuditEntry{At: now, From: inc.State, To: to, Detail: detail})
	inc.State = to
	inc.UpdatedAt = now

	if to == domain.IncidentRemediating {
		inc.Attempts++
	}
	if to.IsTerminal() {
		t := now
		inc.ResolvedAt = &t
		if to == domain.IncidentResolved || to == domain.IncidentSelfResolved {
			mttr := now.Sub(inc.DetectedAt).Seconds()
			metrics.IncidentMTTR.Observe(mttr)
		}
	}

	return m.store.UpsertIncident(*inc)
}

// Get fetches a single incident.
func (m *Manager) Get(id string) (*domain.Incident, error) { return m.store.GetIncident(id) }

// List returns incidents, optionally restricted to non-terminal states.
func (m *Manager) List(activeOnly bool) ([]domain.Incident, error) {
	incidents, err := m.store.ListIncidents(activeOnly)
	if err == nil && activeOnly {
		metrics.IncidentsActive.Set(float64(len(incidents)))
	}
	return incidents, err
}
