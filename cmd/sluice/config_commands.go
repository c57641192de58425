package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"sluice/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigShowCommand(ctx))

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			} else {
				expanded, err := config.ExpandPath(target)
				if err != nil {
					return fmt.Errorf("resolve config path: %w", err)
				}
				target = expanded
			}

			dir := filepath.Dir(target)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create config directory %q: %w", dir, err)
			}

			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				} else if err != nil && !os.IsNotExist(err) {
					return fmt.Errorf("check config path: %w", err)
				}
			}

			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("create sample config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Set vdocipher.api_key and speech.api_key (or export VDOCIPHER_API_KEY and OPENAI_API_KEY) before running.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the resolved configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Chunks dir:      %s\n", cfg.Paths.ChunksDir)
			fmt.Fprintf(out, "Ledger:          %s (%s backend)\n", cfg.Paths.LedgerPath, cfg.Ledger.Backend)
			fmt.Fprintf(out, "Log dir:         %s\n", cfg.Paths.LogDir)
			fmt.Fprintf(out, "Work dir:        %s\n", cfg.Paths.WorkDir)
			fmt.Fprintf(out, "Max workers:     %d\n", cfg.Workflow.MaxWorkers)
			fmt.Fprintf(out, "Status interval: %ds\n", cfg.Workflow.StatusInterval)
			fmt.Fprintf(out, "VdoCipher key:   %s\n", maskSecret(cfg.VdoCipher.APIKey))
			fmt.Fprintf(out, "Speech key:      %s\n", maskSecret(cfg.Speech.APIKey))
			fmt.Fprintf(out, "Grammar fix:     %s\n", yesNo(cfg.Translation.EnableGrammarCorrection))
			fmt.Fprintf(out, "Russian:         %s\n", yesNo(cfg.Translation.EnableRussian))
			fmt.Fprintf(out, "Arabic:          %s\n", yesNo(cfg.Translation.EnableArabic))
			fmt.Fprintf(out, "Delivery:        %s\n", yesNo(cfg.Delivery.Enabled))
			return nil
		},
	}
}

func maskSecret(value string) string {
	if value == "" {
		return "(not set)"
	}
	if len(value) <= 4 {
		return "****"
	}
	return value[:2] + strings.Repeat("*", len(value)-4) + value[len(value)-2:]
}
