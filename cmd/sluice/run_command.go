package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"sluice/internal/chunk"
	"sluice/internal/coordinator"
	"sluice/internal/logging"
	"sluice/internal/services"
	"sluice/internal/tracker"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var (
		chunksDir      string
		maxWorkers     int
		statusInterval int
		force          bool
		updateMarkers  bool
		checkChunk     string
		lenientCheck   string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process all chunks with a bounded pool of worker processes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			if chunksDir == "" {
				chunksDir = cfg.Paths.ChunksDir
			}
			if maxWorkers == 0 {
				maxWorkers = cfg.Workflow.MaxWorkers
			}
			if statusInterval == 0 {
				statusInterval = cfg.Workflow.StatusInterval
			}

			repo, err := ctx.openLedger()
			if err != nil {
				return err
			}
			defer repo.Close()
			tr := tracker.New(repo, logger)

			coord, err := coordinator.New(repo, tr, coordinator.NewProcessRunner(cmd.OutOrStdout()), logger, coordinator.Options{
				ChunksDir:      chunksDir,
				MaxWorkers:     maxWorkers,
				StatusInterval: time.Duration(statusInterval) * time.Second,
				ActiveWindow:   time.Duration(cfg.Workflow.ActiveWindow) * time.Second,
				Force:          force,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch {
			case checkChunk != "":
				return printChunkCheck(cmd, coord, checkChunk, chunk.ModeStrict)
			case lenientCheck != "":
				return printChunkCheck(cmd, coord, lenientCheck, chunk.ModeLenient)
			case updateMarkers:
				report, err := coord.UpdateMarkers(cmd.Context(), chunk.ModeStrict)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Checked %d chunks: marked %d complete, cleared %d stale markers\n",
					report.Checked, len(report.Marked), len(report.Cleared))
				return nil
			}

			// Worker processes need pipeline credentials; fail fast here
			// rather than in every spawned worker.
			if err := cfg.ValidatePipelineCredentials(); err != nil {
				return err
			}

			logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays, logging.RetentionTarget{
				Dir:     cfg.Paths.LogDir,
				Pattern: "*.log",
				Exclude: []string{filepath.Join(cfg.Paths.LogDir, "sluice.log")},
			})

			runID := uuid.NewString()
			runCtx := services.WithRequestID(cmd.Context(), runID)
			logger.Info("run starting", logging.String(logging.FieldCorrelationID, runID))

			report, err := coord.Run(runCtx)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Run finished: %d succeeded, %d skipped, %d failed\n",
				report.Succeeded, report.Skipped, report.Failed)
			for _, result := range report.Results {
				if result.Err != nil {
					fmt.Fprintf(out, "  %s failed: %v\n", result.Chunk, result.Err)
				}
			}
			if !report.Success() {
				return services.Wrap(services.ErrItemProcessing, "run", "", fmt.Sprintf("%d chunks failed", report.Failed), nil)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&chunksDir, "chunks-dir", "", "Directory containing chunk files (default: configured chunks dir)")
	cmd.Flags().IntVar(&maxWorkers, "max-workers", 0, "Maximum concurrent worker processes (default: configured value)")
	cmd.Flags().IntVar(&statusInterval, "status-interval", 0, "Seconds between progress reports (default: configured value)")
	cmd.Flags().BoolVar(&force, "force", false, "Reprocess chunks even if marked complete")
	cmd.Flags().BoolVar(&updateMarkers, "update-markers", false, "Refresh completion markers from the ledger and exit")
	cmd.Flags().StringVar(&checkChunk, "check-chunk", "", "Strictly check one chunk's completion and exit")
	cmd.Flags().StringVar(&lenientCheck, "lenient-check", "", "Leniently check one chunk's completion and exit")
	return cmd
}

func printChunkCheck(cmd *cobra.Command, coord *coordinator.Coordinator, name string, mode chunk.Mode) error {
	status, err := coord.CheckChunk(cmd.Context(), name, mode)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Chunk %s (%s check): %d/%d videos satisfied, complete: %s\n",
		status.Chunk, status.Mode, status.Satisfied, status.Total, yesNo(status.Complete))
	for _, id := range status.Missing {
		fmt.Fprintf(out, "  missing: %s\n", id)
	}
	return nil
}
