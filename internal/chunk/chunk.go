package chunk

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"sluice/internal/services"
)

const (
	filePrefix      = "chunk_"
	fileSuffix      = ".txt"
	markerSuffix    = ".completed"
	logSuffix       = ".log"
	commentPrefix   = "#"
	discoverPattern = filePrefix + "*" + fileSuffix
)

// FileName builds the canonical chunk file name for a 1-based index.
func FileName(index int) string {
	return fmt.Sprintf("%s%03d%s", filePrefix, index, fileSuffix)
}

// Name strips directory and extension from a chunk path, yielding the bare
// chunk name used in logs and status output (e.g. "chunk_001").
func Name(path string) string {
	return strings.TrimSuffix(filepath.Base(path), fileSuffix)
}

// MarkerPath derives the completion marker path for a chunk file.
func MarkerPath(chunkPath string) string {
	return strings.TrimSuffix(chunkPath, fileSuffix) + markerSuffix
}

// LogPath derives the chunk log path for a chunk file.
func LogPath(chunkPath string) string {
	return strings.TrimSuffix(chunkPath, fileSuffix) + logSuffix
}

// Discover lists chunk files under dir in lexicographic order, which with
// zero-padded names is also numeric order. A missing directory is a
// configuration error, an empty one returns an empty slice.
func Discover(dir string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "chunk", "discover", fmt.Sprintf("chunks directory %q", dir), err)
	}
	if !info.IsDir() {
		return nil, services.Wrap(services.ErrConfiguration, "chunk", "discover", fmt.Sprintf("%q is not a directory", dir), nil)
	}
	matches, err := filepath.Glob(filepath.Join(dir, discoverPattern))
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "chunk", "discover", "glob chunk files", err)
	}
	sort.Strings(matches)
	return matches, nil
}

// ReadIDs parses a chunk file into its video ids, skipping blank lines and
// "#" comments. Order is preserved; ids are never deduplicated here because
// the file is the source of truth for what was assigned.
func ReadIDs(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, services.Wrap(services.ErrNotFound, "chunk", "read", fmt.Sprintf("chunk file %q", path), err)
		}
		return nil, services.Wrap(services.ErrTransient, "chunk", "read", fmt.Sprintf("open chunk file %q", path), err)
	}
	defer file.Close()

	var ids []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, commentPrefix) {
			continue
		}
		ids = append(ids, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, services.Wrap(services.ErrTransient, "chunk", "read", fmt.Sprintf("scan chunk file %q", path), err)
	}
	return ids, nil
}

// Resolve turns a chunk argument (bare name, file name, or path) into the
// path of an existing chunk file under dir.
func Resolve(dir, arg string) (string, error) {
	candidates := []string{arg}
	if !strings.HasSuffix(arg, fileSuffix) {
		candidates = append(candidates, arg+fileSuffix)
	}
	for _, candidate := range candidates {
		path := candidate
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, candidate)
		}
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
	}
	return "", services.Wrap(services.ErrNotFound, "chunk", "resolve", fmt.Sprintf("no chunk file matching %q in %q", arg, dir), nil)
}
