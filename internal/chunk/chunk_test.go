package chunk_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"sluice/internal/chunk"
	"sluice/internal/services"
)

func TestFileNameZeroPadding(t *testing.T) {
	if got := chunk.FileName(1); got != "chunk_001.txt" {
		t.Fatalf("FileName(1) = %q", got)
	}
	if got := chunk.FileName(42); got != "chunk_042.txt" {
		t.Fatalf("FileName(42) = %q", got)
	}
	if got := chunk.FileName(1234); got != "chunk_1234.txt" {
		t.Fatalf("FileName(1234) = %q", got)
	}
}

func TestDerivedPaths(t *testing.T) {
	path := filepath.Join("work", "chunk_003.txt")
	if got := chunk.MarkerPath(path); got != filepath.Join("work", "chunk_003.completed") {
		t.Fatalf("MarkerPath = %q", got)
	}
	if got := chunk.LogPath(path); got != filepath.Join("work", "chunk_003.log") {
		t.Fatalf("LogPath = %q", got)
	}
	if got := chunk.Name(path); got != "chunk_003" {
		t.Fatalf("Name = %q", got)
	}
}

func TestDiscoverSortsAndFilters(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"chunk_010.txt", "chunk_002.txt", "chunk_001.txt", "notes.txt", "chunk_001.completed"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x\n"), 0o644); err != nil {
			t.Fatalf("seed %s: %v", name, err)
		}
	}

	found, err := chunk.Discover(dir)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(found) != 3 {
		t.Fatalf("expected 3 chunk files, got %d: %v", len(found), found)
	}
	want := []string{"chunk_001.txt", "chunk_002.txt", "chunk_010.txt"}
	for i, path := range found {
		if filepath.Base(path) != want[i] {
			t.Fatalf("position %d = %s, want %s", i, filepath.Base(path), want[i])
		}
	}
}

func TestDiscoverMissingDirectory(t *testing.T) {
	_, err := chunk.Discover(filepath.Join(t.TempDir(), "missing"))
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestReadIDsSkipsBlanksAndComments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chunk_001.txt")
	content := "# Failed videos for reprocessing\nvid-1\n\n  vid-2  \n# comment\nvid-3\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("seed chunk: %v", err)
	}

	ids, err := chunk.ReadIDs(path)
	if err != nil {
		t.Fatalf("ReadIDs: %v", err)
	}
	want := []string{"vid-1", "vid-2", "vid-3"}
	if len(ids) != len(want) {
		t.Fatalf("expected %d ids, got %v", len(want), ids)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("id %d = %q, want %q", i, ids[i], want[i])
		}
	}
}

func TestReadIDsMissingFile(t *testing.T) {
	_, err := chunk.ReadIDs(filepath.Join(t.TempDir(), "chunk_404.txt"))
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestResolveAcceptsNameFileNameAndPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chunk_005.txt")
	if err := os.WriteFile(path, []byte("vid-1\n"), 0o644); err != nil {
		t.Fatalf("seed chunk: %v", err)
	}

	for _, arg := range []string{"chunk_005", "chunk_005.txt", path} {
		resolved, err := chunk.Resolve(dir, arg)
		if err != nil {
			t.Fatalf("Resolve(%q): %v", arg, err)
		}
		if resolved != path {
			t.Fatalf("Resolve(%q) = %q, want %q", arg, resolved, path)
		}
	}

	if _, err := chunk.Resolve(dir, "chunk_999"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMarkerRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chunk_001.txt")

	marker, err := chunk.ReadMarker(path)
	if err != nil {
		t.Fatalf("ReadMarker before write: %v", err)
	}
	if marker != nil {
		t.Fatalf("expected nil marker, got %+v", marker)
	}

	if err := chunk.WriteMarker(path, chunk.ModeLenient); err != nil {
		t.Fatalf("WriteMarker: %v", err)
	}
	marker, err = chunk.ReadMarker(path)
	if err != nil {
		t.Fatalf("ReadMarker: %v", err)
	}
	if marker == nil || marker.Mode != chunk.ModeLenient {
		t.Fatalf("expected lenient marker, got %+v", marker)
	}
	if marker.CompletedAt.IsZero() || time.Since(marker.CompletedAt) > time.Minute {
		t.Fatalf("unexpected completion time %v", marker.CompletedAt)
	}

	if err := chunk.RemoveMarker(path); err != nil {
		t.Fatalf("RemoveMarker: %v", err)
	}
	if err := chunk.RemoveMarker(path); err != nil {
		t.Fatalf("RemoveMarker on missing marker: %v", err)
	}
}

func TestLegacyMarkerReadsAsStrict(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chunk_001.txt")
	if err := os.WriteFile(chunk.MarkerPath(path), nil, 0o644); err != nil {
		t.Fatalf("seed legacy marker: %v", err)
	}

	marker, err := chunk.ReadMarker(path)
	if err != nil {
		t.Fatalf("ReadMarker: %v", err)
	}
	if marker == nil || marker.Mode != chunk.ModeStrict {
		t.Fatalf("expected strict marker, got %+v", marker)
	}
	if !marker.CompletedAt.IsZero() {
		t.Fatalf("legacy marker should have zero time, got %v", marker.CompletedAt)
	}
}

func TestParseMode(t *testing.T) {
	if mode, err := chunk.ParseMode(" Strict "); err != nil || mode != chunk.ModeStrict {
		t.Fatalf("ParseMode strict = %v, %v", mode, err)
	}
	if _, err := chunk.ParseMode("relaxed"); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestLogWriteAndParse(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chunk_001.txt")

	log, err := chunk.OpenLog(path)
	if err != nil {
		t.Fatalf("OpenLog: %v", err)
	}
	if err := log.Infof("Processing video %d/%d: %s", 1, 2, "vid-1"); err != nil {
		t.Fatalf("Infof: %v", err)
	}
	if err := log.Errorf("Failed to process %s: timeout", "vid-2"); err != nil {
		t.Fatalf("Errorf: %v", err)
	}
	if err := log.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	// Simulate a stack trace appended by external tooling.
	raw, err := os.ReadFile(chunk.LogPath(path))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	raw = append(raw, []byte("  at upload step\n")...)

	entries, err := chunk.ParseLog(strings.NewReader(string(raw)))
	if err != nil {
		t.Fatalf("ParseLog: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Level != "INFO" || !strings.Contains(entries[0].Message, "vid-1") {
		t.Fatalf("unexpected first entry %+v", entries[0])
	}
	if !entries[1].IsError() {
		t.Fatalf("second entry should be an error: %+v", entries[1])
	}
	if !strings.Contains(entries[1].Message, "at upload step") {
		t.Fatalf("continuation line not folded into error: %q", entries[1].Message)
	}
	if entries[0].Time.IsZero() {
		t.Fatal("entry time not parsed")
	}
}
