package testsupport

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"sluice/internal/chunk"
)

// WriteChunk creates a numbered chunk file under dir with the given ids and
// returns its path.
func WriteChunk(t testing.TB, dir string, index int, ids ...string) string {
	t.Helper()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	path := filepath.Join(dir, chunk.FileName(index))
	content := strings.Join(ids, "\n")
	if content != "" {
		content += "\n"
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write chunk %s: %v", path, err)
	}
	return path
}
