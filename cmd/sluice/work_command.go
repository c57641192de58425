package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"sluice/internal/chunk"
	"sluice/internal/pipeline"
	"sluice/internal/services"
	"sluice/internal/worker"
)

// newWorkCommand is the worker process entry point. The coordinator spawns
// one of these per chunk; it can also be invoked directly to process a
// single chunk in the foreground.
func newWorkCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:    "work <chunk-file>",
		Short:  "Process one chunk in this process",
		Hidden: true,
		Args:   cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := cfg.ValidatePipelineCredentials(); err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			chunkPath, err := chunk.Resolve(cfg.Paths.ChunksDir, args[0])
			if err != nil {
				return err
			}

			repo, err := ctx.openLedger()
			if err != nil {
				return err
			}
			defer repo.Close()

			proc := pipeline.NewService(cfg, logger)
			defer proc.Close()

			summary, err := worker.New(repo, proc, logger).Run(cmd.Context(), chunkPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Chunk %s: %d processed, %d skipped, %d failed\n",
				summary.Chunk, summary.Succeeded, summary.Skipped, summary.Failed)
			if !summary.Complete {
				return services.Wrap(services.ErrItemProcessing, "work", "", fmt.Sprintf("chunk %s incomplete", summary.Chunk), nil)
			}
			return nil
		},
	}
	return cmd
}
