package testsupport

import (
	"path/filepath"
	"testing"

	"sluice/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories and dummy
// credentials per test. It defaults common fields and applies any provided
// options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.ChunksDir = filepath.Join(base, "chunks")
	cfgVal.Paths.LedgerPath = filepath.Join(base, "results.csv")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.WorkDir = filepath.Join(base, "work")
	cfgVal.VdoCipher.APIKey = "test"
	cfgVal.Speech.APIKey = "test"
	cfgVal.Delivery.Token = "test"
	cfgVal.Delivery.Endpoint = "http://127.0.0.1:0/deliver"
	cfgVal.Workflow.MaxWorkers = 2
	cfgVal.Workflow.StatusInterval = 0

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithLedgerBackend selects the ledger backend on the test config.
func WithLedgerBackend(backend string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Ledger.Backend = backend
	}
}

// WithMaxWorkers overrides the worker pool size on the test config.
func WithMaxWorkers(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Workflow.MaxWorkers = n
	}
}

// WithAPIBase points every pipeline collaborator at the given base URL,
// typically an httptest server.
func WithAPIBase(base string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.VdoCipher.BaseURL = base
		b.cfg.Speech.BaseURL = base
		b.cfg.Delivery.Endpoint = base + "/deliver"
	}
}
