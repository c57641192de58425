package tracker_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"sluice/internal/chunk"
	"sluice/internal/ledger"
	"sluice/internal/logging"
	"sluice/internal/tracker"
)

func setup(t *testing.T) (*tracker.Tracker, ledger.Repository, string) {
	t.Helper()
	dir := t.TempDir()
	repo, err := ledger.OpenCSV(filepath.Join(dir, "results.csv"))
	if err != nil {
		t.Fatalf("OpenCSV: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return tracker.New(repo, logging.NewNop()), repo, dir
}

func writeChunk(t *testing.T, dir, name string, ids ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	content := ""
	for _, id := range ids {
		content += id + "\n"
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write chunk %s: %v", name, err)
	}
	return path
}

func allFlags() ledger.Flags {
	flags := ledger.Flags{}
	for _, name := range ledger.RequiredFlags() {
		flags[name] = true
	}
	return flags
}

func TestCheckLenientVsStrict(t *testing.T) {
	tr, repo, dir := setup(t)
	ctx := context.Background()
	path := writeChunk(t, dir, "chunk_001.txt", "vid-1", "vid-2", "vid-3")

	// vid-1 fully done, vid-2 partial, vid-3 absent.
	if err := repo.Upsert(ctx, "vid-1", allFlags()); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := repo.Upsert(ctx, "vid-2", ledger.Flags{ledger.FlagUploaded: true}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	lenient, err := tr.Check(ctx, path, chunk.ModeLenient)
	if err != nil {
		t.Fatalf("Check lenient: %v", err)
	}
	if lenient.Satisfied != 2 || lenient.Complete {
		t.Fatalf("lenient status = %+v", lenient)
	}
	if len(lenient.Missing) != 1 || lenient.Missing[0] != "vid-3" {
		t.Fatalf("lenient missing = %v", lenient.Missing)
	}

	strict, err := tr.Check(ctx, path, chunk.ModeStrict)
	if err != nil {
		t.Fatalf("Check strict: %v", err)
	}
	if strict.Satisfied != 1 {
		t.Fatalf("strict status = %+v", strict)
	}
	if len(strict.Missing) != 2 || strict.Missing[0] != "vid-2" || strict.Missing[1] != "vid-3" {
		t.Fatalf("strict missing = %v", strict.Missing)
	}
}

func TestCheckEmptyChunkNeverComplete(t *testing.T) {
	tr, _, dir := setup(t)
	path := writeChunk(t, dir, "chunk_001.txt")

	status, err := tr.Check(context.Background(), path, chunk.ModeLenient)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if status.Complete {
		t.Fatal("empty chunk must not report complete")
	}
}

func TestShouldSkipTrustsStrictMarker(t *testing.T) {
	tr, _, dir := setup(t)
	path := writeChunk(t, dir, "chunk_001.txt", "vid-1")
	if err := chunk.WriteMarker(path, chunk.ModeStrict); err != nil {
		t.Fatalf("WriteMarker: %v", err)
	}

	skip, err := tr.ShouldSkip(context.Background(), path, chunk.ModeStrict)
	if err != nil {
		t.Fatalf("ShouldSkip: %v", err)
	}
	if !skip {
		t.Fatal("strict marker must be trusted without ledger lookup")
	}
}

func TestShouldSkipReverifiesLenientMarkerUnderStrict(t *testing.T) {
	tr, repo, dir := setup(t)
	ctx := context.Background()
	path := writeChunk(t, dir, "chunk_001.txt", "vid-1", "vid-2")
	if err := chunk.WriteMarker(path, chunk.ModeLenient); err != nil {
		t.Fatalf("WriteMarker: %v", err)
	}

	// Rows exist but vid-2 lacks flags: lenient-complete, strict-incomplete.
	if err := repo.Upsert(ctx, "vid-1", allFlags()); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := repo.Upsert(ctx, "vid-2", ledger.Flags{ledger.FlagUploaded: true}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	skip, err := tr.ShouldSkip(ctx, path, chunk.ModeLenient)
	if err != nil {
		t.Fatalf("ShouldSkip lenient: %v", err)
	}
	if !skip {
		t.Fatal("lenient run should trust lenient marker")
	}

	skip, err = tr.ShouldSkip(ctx, path, chunk.ModeStrict)
	if err != nil {
		t.Fatalf("ShouldSkip strict: %v", err)
	}
	if skip {
		t.Fatal("strict run must not trust unproven lenient marker")
	}

	// Finish vid-2; the marker should now be upgraded to strict.
	if err := repo.Upsert(ctx, "vid-2", allFlags()); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	skip, err = tr.ShouldSkip(ctx, path, chunk.ModeStrict)
	if err != nil {
		t.Fatalf("ShouldSkip after completion: %v", err)
	}
	if !skip {
		t.Fatal("strictly complete chunk should skip")
	}
	marker, err := chunk.ReadMarker(path)
	if err != nil {
		t.Fatalf("ReadMarker: %v", err)
	}
	if marker == nil || marker.Mode != chunk.ModeStrict {
		t.Fatalf("marker not upgraded to strict: %+v", marker)
	}
}

func TestRefreshMarkers(t *testing.T) {
	tr, repo, dir := setup(t)
	ctx := context.Background()

	done := writeChunk(t, dir, "chunk_001.txt", "vid-1")
	stale := writeChunk(t, dir, "chunk_002.txt", "vid-2")
	if err := repo.Upsert(ctx, "vid-1", allFlags()); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	// Stale marker on an incomplete chunk.
	if err := chunk.WriteMarker(stale, chunk.ModeStrict); err != nil {
		t.Fatalf("WriteMarker: %v", err)
	}

	report, err := tr.RefreshMarkers(ctx, dir, chunk.ModeStrict)
	if err != nil {
		t.Fatalf("RefreshMarkers: %v", err)
	}
	if report.Checked != 2 {
		t.Fatalf("checked = %d", report.Checked)
	}
	if len(report.Marked) != 1 || report.Marked[0] != "chunk_001" {
		t.Fatalf("marked = %v", report.Marked)
	}
	if len(report.Cleared) != 1 || report.Cleared[0] != "chunk_002" {
		t.Fatalf("cleared = %v", report.Cleared)
	}

	marker, err := chunk.ReadMarker(done)
	if err != nil || marker == nil {
		t.Fatalf("expected marker on complete chunk, got %v, %v", marker, err)
	}
	marker, err = chunk.ReadMarker(stale)
	if err != nil || marker != nil {
		t.Fatalf("expected stale marker cleared, got %v, %v", marker, err)
	}
}

func TestRefreshMarkersRestampsMismatchedMode(t *testing.T) {
	tr, repo, dir := setup(t)
	ctx := context.Background()

	path := writeChunk(t, dir, "chunk_001.txt", "vid-1")
	if err := repo.Upsert(ctx, "vid-1", allFlags()); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	// A lenient marker on a strictly-complete chunk must come out strict.
	if err := chunk.WriteMarker(path, chunk.ModeLenient); err != nil {
		t.Fatalf("WriteMarker: %v", err)
	}

	report, err := tr.RefreshMarkers(ctx, dir, chunk.ModeStrict)
	if err != nil {
		t.Fatalf("RefreshMarkers: %v", err)
	}
	if len(report.Marked) != 1 || report.Marked[0] != "chunk_001" {
		t.Fatalf("marked = %v", report.Marked)
	}

	marker, err := chunk.ReadMarker(path)
	if err != nil || marker == nil {
		t.Fatalf("ReadMarker: %v, %v", marker, err)
	}
	if marker.Mode != chunk.ModeStrict {
		t.Fatalf("marker mode = %s, want %s", marker.Mode, chunk.ModeStrict)
	}
}
