package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaultsAndFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "orderbot.yaml")
	content := `
api_base_url: http://localhost:8000
error_threshold: 5
typing_delay: 200ms
operator_ids:
  - "573138777115"
greeting_keywords: ["hola"]
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.APIBaseURL != "http://localhost:8000" {
		t.Errorf("APIBaseURL = %q", cfg.APIBaseURL)
	}
	if cfg.ErrorThreshold != 5 {
		t.Errorf("ErrorThreshold = %d, want 5", cfg.ErrorThreshold)
	}
	if cfg.TypingDelay.D() != 200*time.Millisecond {
		t.Errorf("TypingDelay = %v", cfg.TypingDelay)
	}
	if len(cfg.OperatorIDs) != 1 || cfg.OperatorIDs[0] != "573138777115" {
		t.Errorf("OperatorIDs = %v", cfg.OperatorIDs)
	}
	// Defaults survive for keys the file does not set.
	if cfg.MessageCacheWindow.D() != 5*time.Minute {
		t.Errorf("MessageCacheWindow default lost: %v", cfg.MessageCacheWindow)
	}
	if cfg.AIFailureThreshold != 2 {
		t.Errorf("AIFailureThreshold default lost: %d", cfg.AIFailureThreshold)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("ORDERBOT_API_BASE_URL", "http://backend:9000")
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.APIBaseURL != "http://backend:9000" {
		t.Errorf("env override not applied: %q", cfg.APIBaseURL)
	}
}

func TestLoadRequiresAPIBase(t *testing.T) {
	t.Setenv("ORDERBOT_API_BASE_URL", "")
	if _, err := Load(""); err == nil {
		t.Error("expected error when api_base_url missing")
	}
}

func TestEnvOperatorList(t *testing.T) {
	t.Setenv("ORDERBOT_API_BASE_URL", "http://x")
	t.Setenv("ORDERBOT_OPERATOR_IDS", "111, 222 ,,333")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	want := []string{"111", "222", "333"}
	if len(cfg.OperatorIDs) != len(want) {
		t.Fatalf("OperatorIDs = %v", cfg.OperatorIDs)
	}
	for i := range want {
		if cfg.OperatorIDs[i] != want[i] {
			t.Errorf("OperatorIDs[%d] = %q, want %q", i, cfg.OperatorIDs[i], want[i])
		}
	}
}
