package tracker

import (
	"context"
	"log/slog"

	"sluice/internal/chunk"
	"sluice/internal/ledger"
	"sluice/internal/logging"
)

// Tracker judges chunk completion by comparing chunk file contents against
// the ledger. It is the only component allowed to write completion markers
// outside a worker.
type Tracker struct {
	repo   ledger.Repository
	logger *slog.Logger
}

func New(repo ledger.Repository, logger *slog.Logger) *Tracker {
	return &Tracker{
		repo:   repo,
		logger: logging.NewComponentLogger(logger, "tracker"),
	}
}

// Status is the completion verdict for one chunk.
type Status struct {
	Chunk     string
	Mode      chunk.Mode
	Total     int
	Satisfied int
	Missing   []string
	Complete  bool
}

// Check evaluates a chunk against the ledger under the given mode. Lenient
// counts any ledger row as satisfied; strict requires every required flag
// true. Missing lists the ids that fall short, in chunk order.
func (t *Tracker) Check(ctx context.Context, chunkPath string, mode chunk.Mode) (*Status, error) {
	ids, err := chunk.ReadIDs(chunkPath)
	if err != nil {
		return nil, err
	}
	rows, err := t.repo.Read(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]ledger.Row, len(rows))
	for _, row := range rows {
		byID[row.VideoID] = row
	}

	status := &Status{Chunk: chunk.Name(chunkPath), Mode: mode, Total: len(ids)}
	for _, id := range ids {
		row, ok := byID[id]
		if ok && (mode == chunk.ModeLenient || row.Complete()) {
			status.Satisfied++
			continue
		}
		status.Missing = append(status.Missing, id)
	}
	status.Complete = len(status.Missing) == 0 && status.Total > 0
	return status, nil
}

// ShouldSkip decides whether a marked chunk may be skipped under mode. A
// marker produced by a strict run is always trusted. A lenient marker is
// enough for a lenient run, but a strict run re-derives completion from the
// ledger instead of trusting it; when the ledger proves the chunk strictly
// complete the marker is upgraded in place.
func (t *Tracker) ShouldSkip(ctx context.Context, chunkPath string, mode chunk.Mode) (bool, error) {
	marker, err := chunk.ReadMarker(chunkPath)
	if err != nil {
		return false, err
	}
	if marker == nil {
		return false, nil
	}
	if marker.Mode == chunk.ModeStrict || mode == chunk.ModeLenient {
		return true, nil
	}

	status, err := t.Check(ctx, chunkPath, chunk.ModeStrict)
	if err != nil {
		return false, err
	}
	if !status.Complete {
		t.logger.Warn("lenient marker not confirmed by ledger, reprocessing",
			logging.String(logging.FieldChunk, status.Chunk),
			logging.Int("missing", len(status.Missing)))
		return false, nil
	}
	if err := chunk.WriteMarker(chunkPath, chunk.ModeStrict); err != nil {
		return false, err
	}
	t.logger.Info("upgraded lenient marker after strict verification",
		logging.String(logging.FieldChunk, status.Chunk))
	return true, nil
}

// RefreshReport summarizes a marker refresh sweep.
type RefreshReport struct {
	Checked int
	Marked  []string
	Cleared []string
}

// RefreshMarkers re-derives every chunk's marker from the ledger: complete
// chunks gain a marker stamped with mode, incomplete chunks lose any marker
// they had. Used after manual ledger surgery to bring the marker layer back
// in line.
func (t *Tracker) RefreshMarkers(ctx context.Context, dir string, mode chunk.Mode) (*RefreshReport, error) {
	paths, err := chunk.Discover(dir)
	if err != nil {
		return nil, err
	}
	report := &RefreshReport{Checked: len(paths)}
	for _, path := range paths {
		status, err := t.Check(ctx, path, mode)
		if err != nil {
			return nil, err
		}
		marker, err := chunk.ReadMarker(path)
		if err != nil {
			return nil, err
		}
		switch {
		case status.Complete && marker == nil:
			if err := chunk.WriteMarker(path, mode); err != nil {
				return nil, err
			}
			report.Marked = append(report.Marked, status.Chunk)
		case status.Complete && marker.Mode != mode:
			// Restamp markers recorded under a different mode once the
			// ledger proves completion under the queried one.
			if err := chunk.WriteMarker(path, mode); err != nil {
				return nil, err
			}
			report.Marked = append(report.Marked, status.Chunk)
		case !status.Complete && marker != nil:
			if err := chunk.RemoveMarker(path); err != nil {
				return nil, err
			}
			report.Cleared = append(report.Cleared, status.Chunk)
		}
	}
	return report, nil
}
