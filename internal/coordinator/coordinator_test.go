package coordinator_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"sluice/internal/chunk"
	"sluice/internal/coordinator"
	"sluice/internal/ledger"
	"sluice/internal/logging"
	"sluice/internal/tracker"
)

// countingRepo wraps a Repository and counts writes.
type countingRepo struct {
	ledger.Repository
	upserts atomic.Int64
}

func (c *countingRepo) Upsert(ctx context.Context, id string, flags ledger.Flags) error {
	c.upserts.Add(1)
	return c.Repository.Upsert(ctx, id, flags)
}

// fakeRunner records dispatched chunks and optionally fails some.
type fakeRunner struct {
	mu      sync.Mutex
	ran     []string
	fail    map[string]bool
	running atomic.Int64
	peak    atomic.Int64
}

func (f *fakeRunner) RunChunk(ctx context.Context, chunkPath string) error {
	current := f.running.Add(1)
	defer f.running.Add(-1)
	for {
		peak := f.peak.Load()
		if current <= peak || f.peak.CompareAndSwap(peak, current) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)

	name := chunk.Name(chunkPath)
	f.mu.Lock()
	f.ran = append(f.ran, name)
	f.mu.Unlock()
	if f.fail[name] {
		return errors.New("worker exited 1")
	}
	return chunk.WriteMarker(chunkPath, chunk.ModeStrict)
}

func setup(t *testing.T, chunks int) (*countingRepo, *tracker.Tracker, string) {
	t.Helper()
	dir := t.TempDir()
	base, err := ledger.OpenCSV(filepath.Join(dir, "results.csv"))
	if err != nil {
		t.Fatalf("OpenCSV: %v", err)
	}
	t.Cleanup(func() { base.Close() })
	repo := &countingRepo{Repository: base}

	chunksDir := filepath.Join(dir, "chunks")
	if err := os.MkdirAll(chunksDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	for i := 1; i <= chunks; i++ {
		path := filepath.Join(chunksDir, chunk.FileName(i))
		if err := os.WriteFile(path, []byte("vid-1\n"), 0o644); err != nil {
			t.Fatalf("write chunk: %v", err)
		}
	}
	return repo, tracker.New(repo, logging.NewNop()), chunksDir
}

func newCoordinator(t *testing.T, repo ledger.Repository, tr *tracker.Tracker, runner coordinator.ChunkRunner, chunksDir string, opts coordinator.Options) *coordinator.Coordinator {
	t.Helper()
	opts.ChunksDir = chunksDir
	if opts.MaxWorkers == 0 {
		opts.MaxWorkers = 2
	}
	coord, err := coordinator.New(repo, tr, runner, logging.NewNop(), opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return coord
}

func TestRunDispatchesAllChunksBounded(t *testing.T) {
	repo, tr, chunksDir := setup(t, 6)
	runner := &fakeRunner{}
	coord := newCoordinator(t, repo, tr, runner, chunksDir, coordinator.Options{MaxWorkers: 2})

	report, err := coord.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !report.Success() || report.Succeeded != 6 {
		t.Fatalf("report = %+v", report)
	}
	if len(runner.ran) != 6 {
		t.Fatalf("dispatched %d chunks, want 6", len(runner.ran))
	}
	if peak := runner.peak.Load(); peak > 2 {
		t.Fatalf("concurrency peaked at %d, limit 2", peak)
	}
}

func TestRunSkipsMarkedChunksWithZeroLedgerWrites(t *testing.T) {
	repo, tr, chunksDir := setup(t, 3)
	paths, err := chunk.Discover(chunksDir)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	for _, path := range paths {
		if err := chunk.WriteMarker(path, chunk.ModeStrict); err != nil {
			t.Fatalf("WriteMarker: %v", err)
		}
	}

	runner := &fakeRunner{}
	coord := newCoordinator(t, repo, tr, runner, chunksDir, coordinator.Options{})
	report, err := coord.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Skipped != 3 || report.Succeeded != 0 {
		t.Fatalf("report = %+v", report)
	}
	if len(runner.ran) != 0 {
		t.Fatalf("no chunks should have run, got %v", runner.ran)
	}
	if got := repo.upserts.Load(); got != 0 {
		t.Fatalf("expected zero ledger writes, got %d", got)
	}
}

func TestRunForceRerunsMarkedChunks(t *testing.T) {
	repo, tr, chunksDir := setup(t, 2)
	paths, err := chunk.Discover(chunksDir)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if err := chunk.WriteMarker(paths[0], chunk.ModeStrict); err != nil {
		t.Fatalf("WriteMarker: %v", err)
	}

	runner := &fakeRunner{}
	coord := newCoordinator(t, repo, tr, runner, chunksDir, coordinator.Options{Force: true})
	report, err := coord.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Skipped != 0 || report.Succeeded != 2 {
		t.Fatalf("report = %+v", report)
	}
}

func TestRunIsolatesChunkFailures(t *testing.T) {
	repo, tr, chunksDir := setup(t, 3)
	runner := &fakeRunner{fail: map[string]bool{"chunk_002": true}}
	coord := newCoordinator(t, repo, tr, runner, chunksDir, coordinator.Options{})

	report, err := coord.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Success() {
		t.Fatal("report should not be a success")
	}
	if report.Failed != 1 || report.Succeeded != 2 {
		t.Fatalf("report = %+v", report)
	}
	for _, result := range report.Results {
		if result.Chunk == "chunk_002" && result.Err == nil {
			t.Fatal("chunk_002 should carry its error")
		}
	}
}

func TestRunEmptyChunksDir(t *testing.T) {
	repo, tr, chunksDir := setup(t, 0)
	coord := newCoordinator(t, repo, tr, &fakeRunner{}, chunksDir, coordinator.Options{})
	if _, err := coord.Run(context.Background()); err == nil {
		t.Fatal("expected error for empty chunks directory")
	}
}

func TestCheckChunkAndUpdateMarkers(t *testing.T) {
	repo, tr, chunksDir := setup(t, 1)
	ctx := context.Background()

	flags := ledger.Flags{}
	for _, name := range ledger.RequiredFlags() {
		flags[name] = true
	}
	if err := repo.Upsert(ctx, "vid-1", flags); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	coord := newCoordinator(t, repo, tr, &fakeRunner{}, chunksDir, coordinator.Options{})
	status, err := coord.CheckChunk(ctx, "chunk_001", chunk.ModeStrict)
	if err != nil {
		t.Fatalf("CheckChunk: %v", err)
	}
	if !status.Complete {
		t.Fatalf("status = %+v", status)
	}

	refreshed, err := coord.UpdateMarkers(ctx, chunk.ModeStrict)
	if err != nil {
		t.Fatalf("UpdateMarkers: %v", err)
	}
	if len(refreshed.Marked) != 1 {
		t.Fatalf("refresh = %+v", refreshed)
	}
}
