package partition

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"sluice/internal/chunk"
	"sluice/internal/fileutil"
	"sluice/internal/logging"
	"sluice/internal/services"
)

// Result summarizes a partition run.
type Result struct {
	TotalIDs     int
	ChunksWanted int
	Written      []string
	Skipped      []string
}

// Split partitions ids into consecutive groups of at most size, preserving
// order. Every id lands in exactly one group.
func Split(ids []string, size int) ([][]string, error) {
	if size <= 0 {
		return nil, services.Wrap(services.ErrConfiguration, "partition", "split", fmt.Sprintf("chunk size must be positive, got %d", size), nil)
	}
	if len(ids) == 0 {
		return nil, services.Wrap(services.ErrConfiguration, "partition", "split", "no video ids to partition", nil)
	}
	var groups [][]string
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		groups = append(groups, ids[start:end])
	}
	return groups, nil
}

// SplitFile reads an id list file and writes numbered chunk files into
// outDir. Chunks whose completion marker already exists are left untouched
// unless force is set, so re-partitioning after a partial run cannot wipe
// recorded progress.
func SplitFile(logger *slog.Logger, inputPath, outDir string, size int, force bool) (*Result, error) {
	ids, err := readInput(inputPath)
	if err != nil {
		return nil, err
	}
	groups, err := Split(ids, size)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "partition", "split", fmt.Sprintf("create output directory %q", outDir), err)
	}

	result := &Result{TotalIDs: len(ids), ChunksWanted: len(groups)}
	for i, group := range groups {
		path := filepath.Join(outDir, chunk.FileName(i+1))
		marker, err := chunk.ReadMarker(path)
		if err != nil {
			return nil, err
		}
		if marker != nil && !force {
			logger.Warn("chunk already marked complete, skipping",
				logging.String(logging.FieldChunk, chunk.Name(path)))
			result.Skipped = append(result.Skipped, path)
			continue
		}
		if marker != nil {
			if err := chunk.RemoveMarker(path); err != nil {
				return nil, err
			}
		}
		if err := writeChunkFile(path, group); err != nil {
			return nil, err
		}
		logger.Info("wrote chunk",
			logging.String(logging.FieldChunk, chunk.Name(path)),
			logging.Int("ids", len(group)))
		result.Written = append(result.Written, path)
	}
	return result, nil
}

func writeChunkFile(path string, ids []string) error {
	var sb strings.Builder
	for _, id := range ids {
		sb.WriteString(id)
		sb.WriteByte('\n')
	}
	if err := fileutil.WriteFileAtomic(path, []byte(sb.String()), 0o644); err != nil {
		return services.Wrap(services.ErrTransient, "partition", "split", fmt.Sprintf("write chunk file %q", path), err)
	}
	return nil
}

func readInput(path string) ([]string, error) {
	ids, err := chunk.ReadIDs(path)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, services.Wrap(services.ErrConfiguration, "partition", "split", fmt.Sprintf("input file %q contains no video ids", path), nil)
	}
	return ids, nil
}
