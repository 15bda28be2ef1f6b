package session

import (
	"os"
	"time"

	"github.com/cortexd/cortexd/internal/domain"
	"gopkg.in/yaml.v3"
)

// legacyState mirrors domain.SessionState for YAML bundles authored
// outside this system (e.g. hand-written pinned-context files) — the
// primary on-disk format remains JSON per the snapshot writer; this
// reader exists solely to import such bundles once at migration time.
type legacyState struct {
	SessionID     string   `yaml:"session_id"`
	WorkingMemory string   `yaml:"working_memory"`
	Pins          []string `yaml:"pins"`
	HotTopics     []string `yaml:"hot_topics"`
}

// ImportLegacyYAML reads a YAML-authored pinned-context bundle and
// converts it into a domain.SessionState, stamping PinnedAt with now
// since legacy bundles carry no per-pin timestamp.
func ImportLegacyYAML(path string, now time.Time) (domain.SessionState, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return domain.SessionState{}, err
	}
	var legacy legacyState
	if err := yaml.Unmarshal(body, &legacy); err != nil {
		return domain.SessionState{}, err
	}

	state := domain.SessionState{
		SessionID:     legacy.SessionID,
		WorkingMemory: legacy.WorkingMemory,
		HotTopics:     legacy.HotTopics,
	}
	for _, p := range legacy.Pins {
		state.Pins = append(state.Pins, domain.PinnedContext{Content: p, PinnedAt: now})
	}
	return state, nil
}
