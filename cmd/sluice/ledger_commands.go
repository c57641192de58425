package main

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"sluice/internal/ledger"
)

func newLedgerCommand(ctx *commandContext) *cobra.Command {
	ledgerCmd := &cobra.Command{
		Use:   "ledger",
		Short: "Results ledger maintenance",
	}
	ledgerCmd.AddCommand(newLedgerRepairCommand(ctx))
	ledgerCmd.AddCommand(newLedgerSetFlagCommand(ctx))
	return ledgerCmd
}

func newLedgerRepairCommand(ctx *commandContext) *cobra.Command {
	var (
		markAllCompleted bool
		assumeYes        bool
	)

	cmd := &cobra.Command{
		Use:   "repair",
		Short: "Normalize a damaged ledger file (backup taken first)",
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := ctx.openLedger()
			if err != nil {
				return err
			}
			defer repo.Close()

			prompt := "Rewrite the ledger in normalized form?"
			if markAllCompleted {
				prompt = "Rewrite the ledger and mark EVERY row fully completed?"
			}
			if !assumeYes && !confirm(cmd, prompt) {
				fmt.Fprintln(cmd.OutOrStdout(), "Aborted")
				return nil
			}

			report, err := repo.Repair(cmd.Context(), ledger.RepairOptions{MarkAllCompleted: markAllCompleted})
			if err != nil {
				return err
			}
			printRepairReport(cmd, report)
			return nil
		},
	}

	cmd.Flags().BoolVar(&markAllCompleted, "mark-all-completed", false, "Force every flag true on every row")
	cmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Skip the confirmation prompt")
	return cmd
}

func newLedgerSetFlagCommand(ctx *commandContext) *cobra.Command {
	var (
		flagName  string
		flagValue string
		assumeYes bool
	)

	cmd := &cobra.Command{
		Use:   "set-flag",
		Short: "Set one stage flag on every ledger row (backup taken first)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !ledger.ValidFlag(flagName) {
				return fmt.Errorf("unknown flag %q (known: %s)", flagName, strings.Join(ledger.RequiredFlags(), ", "))
			}
			value, err := strconv.ParseBool(flagValue)
			if err != nil {
				return fmt.Errorf("parse --value: %w", err)
			}

			repo, err := ctx.openLedger()
			if err != nil {
				return err
			}
			defer repo.Close()

			if !assumeYes && !confirm(cmd, fmt.Sprintf("Set %s=%v on every ledger row?", flagName, value)) {
				fmt.Fprintln(cmd.OutOrStdout(), "Aborted")
				return nil
			}

			report, err := repo.SetFlagAll(cmd.Context(), flagName, value)
			if err != nil {
				return err
			}
			printRepairReport(cmd, report)
			return nil
		},
	}

	cmd.Flags().StringVar(&flagName, "flag", "", "Stage flag to set")
	cmd.Flags().StringVar(&flagValue, "value", "true", "Value to set (true or false)")
	cmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Skip the confirmation prompt")
	_ = cmd.MarkFlagRequired("flag")
	return cmd
}

func printRepairReport(cmd *cobra.Command, report *ledger.RepairReport) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Ledger rows: %d (%d fully completed)\n", report.Rows, report.Completed)
	if report.Recovered > 0 {
		fmt.Fprintf(out, "Recovered %d malformed rows\n", report.Recovered)
	}
	if report.Duplicates > 0 {
		fmt.Fprintf(out, "Resolved %d duplicate ids\n", report.Duplicates)
	}
	if report.BackupPath != "" {
		fmt.Fprintf(out, "Backup: %s\n", report.BackupPath)
	}
}

func confirm(cmd *cobra.Command, prompt string) bool {
	fmt.Fprintf(cmd.OutOrStdout(), "%s [y/N]: ", prompt)
	reader := bufio.NewReader(cmd.InOrStdin())
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
