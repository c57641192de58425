package testsupport

import (
	"context"
	"testing"

	"sluice/internal/config"
	"sluice/internal/ledger"
)

// MustOpenLedger opens the configured ledger backend for tests and registers
// cleanup.
func MustOpenLedger(t testing.TB, cfg *config.Config) ledger.Repository {
	t.Helper()

	repo, err := ledger.Open(cfg.Ledger.Backend, cfg.Paths.LedgerPath)
	if err != nil {
		t.Fatalf("ledger.Open: %v", err)
	}
	t.Cleanup(func() {
		repo.Close()
	})
	return repo
}

// SeedComplete records a fully complete row for each id.
func SeedComplete(t testing.TB, repo ledger.Repository, ids ...string) {
	t.Helper()

	flags := ledger.Flags{}
	for _, name := range ledger.RequiredFlags() {
		flags[name] = true
	}
	for _, id := range ids {
		if err := repo.Upsert(context.Background(), id, flags); err != nil {
			t.Fatalf("seed ledger row %s: %v", id, err)
		}
	}
}
