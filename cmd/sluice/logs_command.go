package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"sluice/internal/chunk"
	"sluice/internal/inspect"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var (
		listLogs   bool
		errorsOnly bool
		searchTerm string
	)

	cmd := &cobra.Command{
		Use:   "logs [chunk]",
		Short: "View chunk processing logs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if listLogs || len(args) == 0 {
				infos, err := inspect.ListLogs(cfg.Paths.ChunksDir)
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(infos))
				for _, info := range infos {
					size := "-"
					modified := "-"
					if info.HasLog {
						size = fmt.Sprintf("%d", info.Size)
						modified = info.ModTime.Format("2006-01-02 15:04:05")
					}
					rows = append(rows, []string{info.Chunk, yesNo(info.HasLog), size, modified})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Chunk", "Log", "Bytes", "Last written"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft},
				))
				return nil
			}

			chunkPath, err := chunk.Resolve(cfg.Paths.ChunksDir, args[0])
			if err != nil {
				return err
			}
			file, err := os.Open(chunk.LogPath(chunkPath))
			if err != nil {
				return fmt.Errorf("no log for %s yet: %w", chunk.Name(chunkPath), err)
			}
			defer file.Close()

			entries, err := chunk.ParseLog(file)
			if err != nil {
				return err
			}
			if errorsOnly {
				entries = inspect.FilterErrors(entries)
			}
			if searchTerm != "" {
				entries = inspect.Search(entries, searchTerm)
			}
			if len(entries) == 0 {
				fmt.Fprintln(out, "No matching log entries")
				return nil
			}

			for _, section := range inspect.GroupByVideo(entries) {
				if section.VideoID != "" {
					outcome := "in progress"
					switch {
					case section.Failed:
						outcome = "FAILED"
					case section.Done:
						outcome = "ok"
					}
					fmt.Fprintf(out, "--- %s [%s]\n", section.VideoID, outcome)
				}
				for _, entry := range section.Entries {
					if entry.Time.IsZero() {
						fmt.Fprintf(out, "    [%s] %s\n", entry.Level, entry.Message)
						continue
					}
					fmt.Fprintf(out, "    %s [%s] %s\n", entry.Time.Format("2006-01-02 15:04:05"), entry.Level, entry.Message)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&listLogs, "list", false, "List chunks and whether they have logs")
	cmd.Flags().BoolVar(&errorsOnly, "errors-only", false, "Show only errors and warnings")
	cmd.Flags().StringVar(&searchTerm, "search", "", "Show only entries containing this term")
	return cmd
}
