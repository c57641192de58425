package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and file location configuration.
type Paths struct {
	ChunksDir  string `toml:"chunks_dir"`
	LedgerPath string `toml:"ledger_path"`
	LogDir     string `toml:"log_dir"`
	WorkDir    string `toml:"work_dir"`
}

// Ledger selects the results ledger backend.
type Ledger struct {
	Backend string `toml:"backend"`
}

// Workflow contains coordinator timing and concurrency settings.
type Workflow struct {
	MaxWorkers     int `toml:"max_workers"`
	StatusInterval int `toml:"status_interval"`
	ActiveWindow   int `toml:"active_window"`
}

// Logging contains configuration for coordinator log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// VdoCipher contains configuration for the VdoCipher video API.
type VdoCipher struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Speech contains configuration for the speech-to-text API.
type Speech struct {
	APIKey   string `toml:"api_key"`
	BaseURL  string `toml:"base_url"`
	Model    string `toml:"model"`
	Language string `toml:"language"`
}

// Translation contains per-language feature toggles and model selection.
type Translation struct {
	EnableGrammarCorrection bool   `toml:"enable_grammar_correction"`
	EnableRussian           bool   `toml:"enable_russian"`
	EnableArabic            bool   `toml:"enable_arabic"`
	GrammarModel            string `toml:"grammar_model"`
	TranslationModel        string `toml:"translation_model"`
}

// Delivery contains configuration for the downstream caption delivery API.
type Delivery struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Token          string `toml:"token"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Config encapsulates all configuration values for sluice.
//
// Configuration sections by subsystem:
//   - Paths: chunk directory, ledger location, log and scratch directories
//   - Ledger: results ledger backend selection (csv or sqlite)
//   - Workflow: worker pool size and status reporting cadence
//   - Logging: coordinator log format, level, and retention
//   - VdoCipher / Speech / Translation / Delivery: processing pipeline
//     collaborator settings; the coordination core never reads these
type Config struct {
	Paths       Paths       `toml:"paths"`
	Ledger      Ledger      `toml:"ledger"`
	Workflow    Workflow    `toml:"workflow"`
	Logging     Logging     `toml:"logging"`
	VdoCipher   VdoCipher   `toml:"vdocipher"`
	Speech      Speech      `toml:"speech"`
	Translation Translation `toml:"translation"`
	Delivery    Delivery    `toml:"delivery"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/sluice/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("sluice.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for coordinator operation.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.ChunksDir, c.Paths.LogDir, c.Paths.WorkDir}
	if ledgerDir := filepath.Dir(c.Paths.LedgerPath); strings.TrimSpace(ledgerDir) != "" {
		dirs = append(dirs, ledgerDir)
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
