package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"sluice/internal/partition"
)

func newSplitCommand(ctx *commandContext) *cobra.Command {
	var (
		inputPath string
		outputDir string
		chunkSize int
		force     bool
	)

	cmd := &cobra.Command{
		Use:   "split",
		Short: "Split a video id list into numbered chunk files",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			if outputDir == "" {
				outputDir = cfg.Paths.ChunksDir
			}

			result, err := partition.SplitFile(logger, inputPath, outputDir, chunkSize, force)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Split %d video ids into %d chunks under %s\n", result.TotalIDs, result.ChunksWanted, outputDir)
			if len(result.Skipped) > 0 {
				fmt.Fprintf(out, "Skipped %d chunks already marked complete (use --force to rewrite them)\n", len(result.Skipped))
			}
			fmt.Fprintln(out, "Next steps:")
			fmt.Fprintln(out, "  sluice run            # process every chunk")
			fmt.Fprintln(out, "  sluice status         # watch progress")
			return nil
		},
	}

	cmd.Flags().StringVarP(&inputPath, "input", "i", "", "File containing one video id per line")
	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "Directory for chunk files (default: configured chunks dir)")
	cmd.Flags().IntVarP(&chunkSize, "chunk-size", "s", 50, "Number of video ids per chunk")
	cmd.Flags().BoolVar(&force, "force", false, "Rewrite chunks even if marked complete")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}
