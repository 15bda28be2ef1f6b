// Package daemon manages the cortexd daemon lifecycle and configuration:
// wiring the store, bus, probes, and every cognitive subsystem behind
// one process, and the graceful start/stop sequence around them.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config holds all daemon configuration.
type Config struct {
	Node        NodeConfig        `toml:"node"`
	API         APIConfig         `toml:"api"`
	Store       StoreConfig       `toml:"store"`
	Logging     LoggingConfig     `toml:"logging"`
	Telemetry   TelemetryConfig   `toml:"telemetry"`
	Probes      ProbesConfig      `toml:"probes"`
	Incident    IncidentConfig    `toml:"incident"`
	Runbook     RunbookConfig     `toml:"runbook"`
	RTL         RTLConfig         `toml:"rtl"`
	Compression CompressionConfig `toml:"compression"`
	Session     SessionConfig     `toml:"session"`
	Bus         BusConfig         `toml:"bus"`
	Escalation  EscalationConfig  `toml:"escalation"`
}

// NodeConfig identifies this agent instance.
type NodeConfig struct {
	ID string `toml:"id"`
}

// APIConfig controls the admin/inspection HTTP server.
type APIConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// StoreConfig controls the embedded SQLite stores.
type StoreConfig struct {
	Dir string `toml:"dir"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level     string `toml:"level"`
	File      string `toml:"file"`
	MaxSizeMB int    `toml:"max_size_mb"`
	MaxFiles  int    `toml:"max_files"`
}

// TelemetryConfig controls observability.
type TelemetryConfig struct {
	Prometheus     bool `toml:"prometheus"`
	PrometheusPort int  `toml:"prometheus_port"`
}

// ProbesConfig controls the health-probe registry's polling cadence.
type ProbesConfig struct {
	DefaultPollIntervalMs int `toml:"default_poll_interval_ms"`
}

// IncidentConfig bounds the incident manager.
type IncidentConfig struct {
	MaxAttempts       int `toml:"max_attempts"`
	DismissWindowSecs int `toml:"dismiss_window_secs"`
}

// RunbookConfig controls runbook graduation and step execution.
type RunbookConfig struct {
	GraduationThreshold int `toml:"graduation_threshold"`
	VerifyWaitSecs      int `toml:"verify_wait_secs"`
}

// RTLConfig bounds the real-time learning pipeline's queue and relays.
type RTLConfig struct {
	QueueCapacity       int     `toml:"queue_capacity"`
	CorrectionRPS       float64 `toml:"correction_rps"`
	CorrectionBurst     int     `toml:"correction_burst"`
	SOPDir              string  `toml:"sop_dir"`
	GitDir              string  `toml:"git_dir"`
	RegressionRoot      string  `toml:"regression_root"`
	RecurrenceThreshold int     `toml:"recurrence_threshold"`
}

// CompressionConfig bounds the knowledge-compression engine.
type CompressionConfig struct {
	MinCompressionRatio float64 `toml:"min_compression_ratio"`
	MinClusterMembers   int     `toml:"min_cluster_members"`
	MaxClusterMembers   int     `toml:"max_cluster_members"`
	MinAvgSimilarity    float64 `toml:"min_avg_similarity"`
}

// SessionConfig bounds the session preserver's restore scan.
type SessionConfig struct {
	LookbackDays       int     `toml:"lookback_days"`
	RelevanceThreshold float64 `toml:"relevance_threshold"`
	MaxSessionsScored  int     `toml:"max_sessions_scored"`
	MaxInheritedPins   int     `toml:"max_inherited_pins"`
	DecayMinFloor      float64 `toml:"decay_min_floor"`
	Dir                string  `toml:"dir"`
}

// BusConfig controls the optional guaranteed-delivery channel.
type BusConfig struct {
	RedisAddr  string `toml:"redis_addr"`
	RedisTopic string `toml:"redis_topic"`
}

// EscalationConfig tunes the tier-selection confidence gate.
type EscalationConfig struct {
	ConfidenceThreshold float64 `toml:"confidence_threshold"`
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() Config {
	homeDir := cortexdHome()
	return Config{
		Node: NodeConfig{ID: "cortexd-local"},
		API:  APIConfig{Host: "127.0.0.1", Port: 8765},
		Store: StoreConfig{Dir: homeDir},
		Logging: LoggingConfig{
			Level:     "info",
			File:      filepath.Join(homeDir, "cortexd.log"),
			MaxSizeMB: 50,
			MaxFiles:  5,
		},
		Telemetry: TelemetryConfig{Prometheus: true, PrometheusPort: 9090},
		Probes:    ProbesConfig{DefaultPollIntervalMs: 5000},
		Incident:  IncidentConfig{MaxAttempts: 5, DismissWindowSecs: 3600},
		Runbook:   RunbookConfig{GraduationThreshold: 10, VerifyWaitSecs: 2},
		RTL: RTLConfig{
			QueueCapacity:       256,
			CorrectionRPS:       2,
			CorrectionBurst:     5,
			SOPDir:              filepath.Join(homeDir, "sop"),
			GitDir:              filepath.Join(homeDir, "sop"),
			RegressionRoot:      filepath.Join(homeDir, "regressions"),
			RecurrenceThreshold: 3,
		},
		Compression: CompressionConfig{
			MinCompressionRatio: 2.0,
			MinClusterMembers:   3,
			MaxClusterMembers:   25,
			MinAvgSimilarity:    0.35,
		},
		Session: SessionConfig{
			LookbackDays:       30,
			RelevanceThreshold: 0.3,
			MaxSessionsScored:  5,
			MaxInheritedPins:   10,
			DecayMinFloor:      0.1,
			Dir:                filepath.Join(homeDir, "sessions"),
		},
		Bus:        BusConfig{RedisTopic: "cortexd.events"},
		Escalation: EscalationConfig{ConfidenceThreshold: 0.7},
	}
}

// LoadConfig reads config from $CORTEXD_HOME/config.toml, falling back
// to defaults when absent.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	path := filepath.Join(cortexdHome(), "config.toml")

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// SaveConfig writes the config to $CORTEXD_HOME/config.toml.
func SaveConfig(cfg Config) error {
	path := filepath.Join(cortexdHome(), "config.toml")
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(cfg)
}

func cortexdHome() string {
	if env := os.Getenv("CORTEXD_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".cortexd")
}

// CortexdHome is exported for use by other packages.
func CortexdHome() string {
	return cortexdHome()
}
