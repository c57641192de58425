package worker

import (
	"context"
	"log/slog"

	"sluice/internal/chunk"
	"sluice/internal/ledger"
	"sluice/internal/logging"
	"sluice/internal/pipeline"
	"sluice/internal/services"
)

// Runner processes one chunk: every video id in order, resuming past ids the
// ledger already shows fully complete. Item failures are absorbed so one bad
// video never takes down the rest of the chunk.
type Runner struct {
	repo   ledger.Repository
	proc   pipeline.Processor
	logger *slog.Logger
}

func New(repo ledger.Repository, proc pipeline.Processor, logger *slog.Logger) *Runner {
	return &Runner{
		repo:   repo,
		proc:   proc,
		logger: logging.NewComponentLogger(logger, "worker"),
	}
}

// Summary reports the outcome of one chunk run.
type Summary struct {
	Chunk     string
	Total     int
	Skipped   int
	Succeeded int
	Failed    int
	Complete  bool
}

// Run processes chunkPath. It returns an error only for failures that make
// continuing pointless (missing chunk file, corrupt ledger, canceled
// context, fatal configuration errors); per-item failures are recorded in
// the summary and the chunk log instead. The strict completion marker is
// written only when every id in the chunk ends up fully complete.
func (r *Runner) Run(ctx context.Context, chunkPath string) (*Summary, error) {
	name := chunk.Name(chunkPath)
	ctx = services.WithChunk(ctx, name)
	logger := r.logger.With(logging.String(logging.FieldChunk, name))

	ids, err := chunk.ReadIDs(chunkPath)
	if err != nil {
		return nil, err
	}
	log, err := chunk.OpenLog(chunkPath)
	if err != nil {
		return nil, err
	}
	defer log.Close()

	summary := &Summary{Chunk: name, Total: len(ids)}
	_ = log.Infof("Starting chunk %s with %d videos", name, len(ids))

	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			_ = log.Warnf("Interrupted after %d/%d videos", i, len(ids))
			return summary, err
		}

		row, err := r.repo.Get(ctx, id)
		if err != nil {
			return summary, err
		}
		if row != nil && row.Complete() {
			summary.Skipped++
			_ = log.Infof("Skipping already completed video %d/%d: %s", i+1, len(ids), id)
			continue
		}

		_ = log.Infof("Processing video %d/%d: %s", i+1, len(ids), id)
		flags, procErr := r.proc.Process(ctx, id)

		// Record partial progress regardless of outcome; the row itself is
		// what lenient completion checks count.
		if err := r.repo.Upsert(ctx, id, flags); err != nil {
			return summary, err
		}

		if procErr != nil {
			if services.IsFatal(procErr) || ctx.Err() != nil {
				return summary, procErr
			}
			summary.Failed++
			_ = log.Errorf("Failed to process %s: %v", id, procErr)
			logger.Error("video failed",
				logging.String(logging.FieldVideoID, id),
				logging.Error(procErr))
			continue
		}
		summary.Succeeded++
		_ = log.Infof("Successfully processed %s", id)
	}

	if summary.Failed == 0 && summary.Total > 0 {
		// The marker asserts full completion, so prove it from the ledger
		// rather than trusting that every successful call set every flag.
		proven, err := r.allComplete(ctx, ids)
		if err != nil {
			return summary, err
		}
		if proven {
			if err := chunk.WriteMarker(chunkPath, chunk.ModeStrict); err != nil {
				return summary, err
			}
			summary.Complete = true
			_ = log.Infof("Chunk %s complete: %d processed, %d skipped", name, summary.Succeeded, summary.Skipped)
		} else {
			_ = log.Warnf("Chunk %s finished without failures but the ledger shows incomplete rows", name)
		}
	} else {
		_ = log.Warnf("Chunk %s finished with %d failures", name, summary.Failed)
	}
	logger.Info("chunk finished",
		logging.Int("total", summary.Total),
		logging.Int("succeeded", summary.Succeeded),
		logging.Int("skipped", summary.Skipped),
		logging.Int("failed", summary.Failed))
	return summary, nil
}

func (r *Runner) allComplete(ctx context.Context, ids []string) (bool, error) {
	for _, id := range ids {
		row, err := r.repo.Get(ctx, id)
		if err != nil {
			return false, err
		}
		if row == nil || !row.Complete() {
			return false, nil
		}
	}
	return true, nil
}
