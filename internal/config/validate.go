package config

import (
	"errors"
	"fmt"

	"golang.org/x/text/language"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateLedger(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateSpeech(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateLedger() error {
	switch c.Ledger.Backend {
	case "csv", "sqlite":
		return nil
	default:
		return fmt.Errorf("ledger.backend must be \"csv\" or \"sqlite\", got %q", c.Ledger.Backend)
	}
}

func (c *Config) validateWorkflow() error {
	if err := ensurePositiveMap(map[string]int{
		"workflow.max_workers":     c.Workflow.MaxWorkers,
		"workflow.status_interval": c.Workflow.StatusInterval,
		"workflow.active_window":   c.Workflow.ActiveWindow,
	}); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateSpeech() error {
	if _, err := language.Parse(c.Speech.Language); err != nil {
		return fmt.Errorf("speech.language: invalid language tag %q: %w", c.Speech.Language, err)
	}
	return nil
}

// ValidatePipelineCredentials checks the settings only the processing
// pipeline needs. Coordination-only commands (split, status, reconcile)
// deliberately skip this so they work without API credentials.
func (c *Config) ValidatePipelineCredentials() error {
	if c.VdoCipher.APIKey == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/sluice/config.toml"
		}
		return fmt.Errorf("vdocipher.api_key is required. Set VDOCIPHER_API_KEY env var or edit %s (create with 'sluice config init')", defaultPath)
	}
	if c.Speech.APIKey == "" {
		return errors.New("speech.api_key is required. Set OPENAI_API_KEY env var or add it to the config file")
	}
	if c.Delivery.Enabled && c.Delivery.Endpoint == "" {
		return errors.New("delivery.endpoint must be set when delivery.enabled is true")
	}
	if c.Delivery.Enabled && c.Delivery.Token == "" {
		return errors.New("delivery.token is required when delivery.enabled is true. Set DELIVERY_API_TOKEN env var or add it to the config file")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
