package daemon

import "testing"

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.API.Host != "127.0.0.1" {
		t.Errorf("API.Host = %q, want %q", cfg.API.Host, "127.0.0.1")
	}
	if cfg.API.Port != 8765 {
		t.Errorf("API.Port = %d, want %d", cfg.API.Port, 8765)
	}
	if cfg.Compression.MinCompressionRatio != 2.0 {
		t.Errorf("Compression.MinCompressionRatio = %f, want 2.0", cfg.Compression.MinCompressionRatio)
	}
	if cfg.Session.LookbackDays != 30 {
		t.Errorf("Session.LookbackDays = %d, want 30", cfg.Session.LookbackDays)
	}
	if cfg.Runbook.GraduationThreshold != 10 {
		t.Errorf("Runbook.GraduationThreshold = %d, want 10", cfg.Runbook.GraduationThreshold)
	}
}

func TestLoadConfigFallsBackToDefaultsWhenMissing(t *testing.T) {
	t.Setenv("CORTEXD_HOME", t.TempDir())
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.RTL.RecurrenceThreshold != 3 {
		t.Errorf("RTL.RecurrenceThreshold = %d, want 3", cfg.RTL.RecurrenceThreshold)
	}
}

func TestSaveThenLoadConfigRoundTrips(t *testing.T) {
	t.Setenv("CORTEXD_HOME", t.TempDir())
	cfg := DefaultConfig()
	cfg.Node.ID = "test-node"

	if err := SaveConfig(cfg); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}

	loaded, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if loaded.Node.ID != "test-node" {
		t.Errorf("Node.ID = %q, want %q", loaded.Node.ID, "test-node")
	}
}
