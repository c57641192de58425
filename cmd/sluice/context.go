package main

import (
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/joho/godotenv"

	"sluice/internal/config"
	"sluice/internal/ledger"
	"sluice/internal/logging"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		// Credentials may live in a .env next to the working directory;
		// missing files are fine.
		_ = godotenv.Load()

		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		c.logger, c.loggerErr = logging.New(logging.Options{
			Level:       cfg.Logging.Level,
			Format:      cfg.Logging.Format,
			OutputPaths: []string{"stdout", filepath.Join(cfg.Paths.LogDir, "sluice.log")},
		})
	})
	return c.logger, c.loggerErr
}

func (c *commandContext) openLedger() (ledger.Repository, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return ledger.Open(cfg.Ledger.Backend, cfg.Paths.LedgerPath)
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
