package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"sluice/internal/reconcile"
)

func newReconcileCommand(ctx *commandContext) *cobra.Command {
	var (
		listOnly   bool
		outputPath string
	)

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "List or export video ids that still need processing",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			repo, err := ctx.openLedger()
			if err != nil {
				return err
			}
			defer repo.Close()

			findings, err := reconcile.New(repo, logger).Scan(cmd.Context(), cfg.Paths.ChunksDir)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(findings) == 0 {
				fmt.Fprintln(out, "Nothing to reprocess: every assigned video is complete")
				return nil
			}

			fmt.Fprintf(out, "%d videos need reprocessing:\n", len(findings))
			for _, finding := range findings {
				if finding.NoRow {
					fmt.Fprintf(out, "  %s (never attempted)\n", finding.VideoID)
					continue
				}
				fmt.Fprintf(out, "  %s (missing: %s)\n", finding.VideoID, strings.Join(finding.Missing, ", "))
			}
			if listOnly {
				return nil
			}

			if outputPath == "" {
				outputPath = filepath.Join(cfg.Paths.ChunksDir, "reprocess.txt")
			}
			if err := reconcile.New(repo, logger).Materialize(findings, outputPath); err != nil {
				return err
			}
			fmt.Fprintf(out, "Wrote %s; split or run it to reprocess\n", outputPath)
			return nil
		},
	}

	cmd.Flags().BoolVar(&listOnly, "list-only", false, "Print incomplete ids without writing a file")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Destination for the reprocess list")
	return cmd
}
