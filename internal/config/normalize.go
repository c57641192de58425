package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLedger()
	c.normalizeWorkflow()
	c.normalizeLogging()
	c.normalizeVdoCipher()
	c.normalizeSpeech()
	c.normalizeTranslation()
	c.normalizeDelivery()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.ChunksDir, err = expandPath(c.Paths.ChunksDir); err != nil {
		return fmt.Errorf("paths.chunks_dir: %w", err)
	}
	if c.Paths.LedgerPath, err = expandPath(c.Paths.LedgerPath); err != nil {
		return fmt.Errorf("paths.ledger_path: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.WorkDir) == "" {
		c.Paths.WorkDir = defaultWorkDir
	}
	if c.Paths.WorkDir, err = expandPath(c.Paths.WorkDir); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeLedger() {
	c.Ledger.Backend = strings.ToLower(strings.TrimSpace(c.Ledger.Backend))
	if c.Ledger.Backend == "" {
		c.Ledger.Backend = defaultLedgerBackend
	}
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.MaxWorkers <= 0 {
		c.Workflow.MaxWorkers = defaultMaxWorkers
	}
	if c.Workflow.StatusInterval <= 0 {
		c.Workflow.StatusInterval = defaultStatusInterval
	}
	if c.Workflow.ActiveWindow <= 0 {
		c.Workflow.ActiveWindow = defaultActiveWindow
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}

func (c *Config) normalizeVdoCipher() {
	c.VdoCipher.APIKey = strings.TrimSpace(c.VdoCipher.APIKey)
	if c.VdoCipher.APIKey == "" {
		if value, ok := os.LookupEnv("VDOCIPHER_API_KEY"); ok {
			c.VdoCipher.APIKey = strings.TrimSpace(value)
		}
	}
	c.VdoCipher.BaseURL = strings.TrimSpace(c.VdoCipher.BaseURL)
	if c.VdoCipher.BaseURL == "" {
		c.VdoCipher.BaseURL = defaultVdoCipherBaseURL
	}
	if c.VdoCipher.RequestTimeout <= 0 {
		c.VdoCipher.RequestTimeout = defaultRequestTimeout
	}
}

func (c *Config) normalizeSpeech() {
	c.Speech.APIKey = strings.TrimSpace(c.Speech.APIKey)
	if c.Speech.APIKey == "" {
		if value, ok := os.LookupEnv("OPENAI_API_KEY"); ok {
			c.Speech.APIKey = strings.TrimSpace(value)
		}
	}
	c.Speech.BaseURL = strings.TrimSpace(c.Speech.BaseURL)
	if c.Speech.BaseURL == "" {
		c.Speech.BaseURL = defaultSpeechBaseURL
	}
	c.Speech.Model = strings.TrimSpace(c.Speech.Model)
	if c.Speech.Model == "" {
		c.Speech.Model = defaultSpeechModel
	}
	c.Speech.Language = strings.ToLower(strings.TrimSpace(c.Speech.Language))
	if c.Speech.Language == "" {
		c.Speech.Language = defaultSpeechLanguage
	}
}

func (c *Config) normalizeTranslation() {
	c.Translation.GrammarModel = strings.TrimSpace(c.Translation.GrammarModel)
	if c.Translation.GrammarModel == "" {
		c.Translation.GrammarModel = defaultGrammarModel
	}
	c.Translation.TranslationModel = strings.TrimSpace(c.Translation.TranslationModel)
	if c.Translation.TranslationModel == "" {
		c.Translation.TranslationModel = defaultTranslationModel
	}
}

func (c *Config) normalizeDelivery() {
	c.Delivery.Endpoint = strings.TrimSpace(c.Delivery.Endpoint)
	c.Delivery.Token = strings.TrimSpace(c.Delivery.Token)
	if c.Delivery.Token == "" {
		if value, ok := os.LookupEnv("DELIVERY_API_TOKEN"); ok {
			c.Delivery.Token = strings.TrimSpace(value)
		}
	}
	if c.Delivery.RequestTimeout <= 0 {
		c.Delivery.RequestTimeout = defaultRequestTimeout
	}
}
