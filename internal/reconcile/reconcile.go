package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"sluice/internal/chunk"
	"sluice/internal/fileutil"
	"sluice/internal/ledger"
	"sluice/internal/logging"
	"sluice/internal/services"
)

// Reconciler finds the video ids that still need work: ledger rows missing
// required flags, plus ids assigned to chunks that never got a row at all.
type Reconciler struct {
	repo   ledger.Repository
	logger *slog.Logger
}

func New(repo ledger.Repository, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		repo:   repo,
		logger: logging.NewComponentLogger(logger, "reconcile"),
	}
}

// Finding is one incomplete video id and why it was flagged.
type Finding struct {
	VideoID string
	Missing []string
	NoRow   bool
}

// Scan lists incomplete ids. Ledger rows come first in ledger order; ids
// that appear in chunk files but have no row follow in chunk order. Each id
// appears once.
func (r *Reconciler) Scan(ctx context.Context, chunksDir string) ([]Finding, error) {
	rows, err := r.repo.Read(ctx)
	if err != nil {
		return nil, err
	}

	var findings []Finding
	seen := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		seen[row.VideoID] = struct{}{}
		if row.Complete() {
			continue
		}
		findings = append(findings, Finding{VideoID: row.VideoID, Missing: row.MissingFlags()})
	}

	paths, err := chunk.Discover(chunksDir)
	if err != nil {
		return nil, err
	}
	for _, path := range paths {
		ids, err := chunk.ReadIDs(path)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			findings = append(findings, Finding{VideoID: id, Missing: ledger.RequiredFlags(), NoRow: true})
		}
	}

	r.logger.Info("scan finished",
		logging.Int("ledger_rows", len(rows)),
		logging.Int("incomplete", len(findings)))
	return findings, nil
}

// Materialize writes findings as a chunk-format file ready to hand back to
// the coordinator: one id per line under a comment header, so the output is
// directly usable as --input for a new split or as a chunk file itself.
func (r *Reconciler) Materialize(findings []Finding, outputPath string) error {
	if len(findings) == 0 {
		return services.Wrap(services.ErrNotFound, "reconcile", "materialize", "nothing to reprocess", nil)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Failed videos for reprocessing - generated %s\n", time.Now().Format("2006-01-02 15:04:05"))
	for _, finding := range findings {
		sb.WriteString(finding.VideoID)
		sb.WriteByte('\n')
	}
	if err := fileutil.WriteFileAtomic(outputPath, []byte(sb.String()), 0o644); err != nil {
		return services.Wrap(services.ErrTransient, "reconcile", "materialize", fmt.Sprintf("write %q", outputPath), err)
	}
	r.logger.Info("wrote reprocess list",
		logging.String("path", outputPath),
		logging.Int("ids", len(findings)))
	return nil
}
