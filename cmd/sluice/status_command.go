package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"sluice/internal/inspect"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show per-chunk progress and overall totals",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			repo, err := ctx.openLedger()
			if err != nil {
				return err
			}
			defer repo.Close()

			report, err := inspect.BuildReport(cmd.Context(), repo, cfg.Paths.ChunksDir,
				time.Duration(cfg.Workflow.ActiveWindow)*time.Second, time.Now())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(report.Chunks) == 0 {
				fmt.Fprintln(out, "No chunks found; run `sluice split` first")
				return nil
			}

			rows := make([][]string, 0, len(report.Chunks))
			for _, status := range report.Chunks {
				rows = append(rows, []string{
					status.Chunk,
					fmt.Sprintf("%d", status.Total),
					fmt.Sprintf("%d", status.Recorded),
					fmt.Sprintf("%d", status.Completed),
					fmt.Sprintf("%.1f%%", status.Progress()),
					string(status.State),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Chunk", "Videos", "Recorded", "Completed", "Progress", "State"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignLeft},
			))

			overall := 0.0
			if report.TotalVideos > 0 {
				overall = float64(report.TotalCompleted) / float64(report.TotalVideos) * 100
			}
			fmt.Fprintf(out, "Overall: %d/%d videos completed (%.1f%%), %d recorded\n",
				report.TotalCompleted, report.TotalVideos, overall, report.TotalRecorded)
			if report.EstimateValid {
				fmt.Fprintf(out, "Estimated time remaining: %s\n", report.Remaining.Round(time.Minute))
			}
			return nil
		},
	}
	return cmd
}
