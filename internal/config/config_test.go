package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"sluice/internal/config"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, _, exists, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if exists {
		t.Fatal("expected config file to be reported missing")
	}
	if cfg.Ledger.Backend != "csv" {
		t.Fatalf("expected csv backend default, got %q", cfg.Ledger.Backend)
	}
	if cfg.Workflow.MaxWorkers != 4 {
		t.Fatalf("expected default max_workers 4, got %d", cfg.Workflow.MaxWorkers)
	}
}

func TestLoadParsesAndExpandsPaths(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[paths]
chunks_dir = "` + filepath.Join(dir, "chunks") + `"
ledger_path = "` + filepath.Join(dir, "ledger.csv") + `"
log_dir = "` + filepath.Join(dir, "logs") + `"
work_dir = "` + filepath.Join(dir, "work") + `"

[workflow]
max_workers = 2
status_interval = 5
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected resolved path %s, got %s (exists=%v)", path, resolved, exists)
	}
	if cfg.Workflow.MaxWorkers != 2 {
		t.Fatalf("expected max_workers 2, got %d", cfg.Workflow.MaxWorkers)
	}
	if !filepath.IsAbs(cfg.Paths.ChunksDir) {
		t.Fatalf("expected absolute chunks dir, got %q", cfg.Paths.ChunksDir)
	}
}

func TestLoadRejectsUnknownLedgerBackend(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("[ledger]\nbackend = \"postgres\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, _, _, err := config.Load(path)
	if err == nil || !strings.Contains(err.Error(), "ledger.backend") {
		t.Fatalf("expected ledger backend error, got %v", err)
	}
}

func TestLoadRejectsInvalidLanguage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("[speech]\nlanguage = \"zz-not-a-language!\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, _, _, err := config.Load(path)
	if err == nil || !strings.Contains(err.Error(), "speech.language") {
		t.Fatalf("expected language error, got %v", err)
	}
}

func TestValidatePipelineCredentials(t *testing.T) {
	cfg := config.Default()
	cfg.Delivery.Enabled = false
	if err := cfg.ValidatePipelineCredentials(); err == nil {
		t.Fatal("expected missing vdocipher key error")
	}
	cfg.VdoCipher.APIKey = "vdo-key"
	cfg.Speech.APIKey = "speech-key"
	if err := cfg.ValidatePipelineCredentials(); err != nil {
		t.Fatalf("expected credentials accepted, got %v", err)
	}
	cfg.Delivery.Enabled = true
	cfg.Delivery.Endpoint = "https://example.com/captions"
	if err := cfg.ValidatePipelineCredentials(); err == nil {
		t.Fatal("expected missing delivery token error")
	}
}

func TestEnsureDirectories(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Paths.ChunksDir = filepath.Join(dir, "chunks")
	cfg.Paths.LogDir = filepath.Join(dir, "logs")
	cfg.Paths.WorkDir = filepath.Join(dir, "work")
	cfg.Paths.LedgerPath = filepath.Join(dir, "state", "ledger.csv")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, p := range []string{cfg.Paths.ChunksDir, cfg.Paths.LogDir, cfg.Paths.WorkDir, filepath.Join(dir, "state")} {
		info, err := os.Stat(p)
		if err != nil || !info.IsDir() {
			t.Fatalf("expected directory %s to exist: %v", p, err)
		}
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "[workflow]") {
		t.Fatalf("sample config missing workflow section")
	}
}
