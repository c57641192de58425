package config

const (
	defaultChunksDir        = "~/.local/share/sluice/chunks"
	defaultLedgerPath       = "~/.local/share/sluice/ledger.csv"
	defaultLogDir           = "~/.local/share/sluice/logs"
	defaultWorkDir          = "~/.local/share/sluice/work"
	defaultLedgerBackend    = "csv"
	defaultMaxWorkers       = 4
	defaultStatusInterval   = 60
	defaultActiveWindow     = 300
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
	defaultLogRetentionDays = 60
	defaultVdoCipherBaseURL = "https://dev.vdocipher.com/api"
	defaultRequestTimeout   = 60
	defaultSpeechBaseURL    = "https://api.openai.com/v1"
	defaultSpeechModel      = "whisper-1"
	defaultSpeechLanguage   = "he"
	defaultGrammarModel     = "gpt-4o"
	defaultTranslationModel = "gpt-4o"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			ChunksDir:  defaultChunksDir,
			LedgerPath: defaultLedgerPath,
			LogDir:     defaultLogDir,
			WorkDir:    defaultWorkDir,
		},
		Ledger: Ledger{
			Backend: defaultLedgerBackend,
		},
		Workflow: Workflow{
			MaxWorkers:     defaultMaxWorkers,
			StatusInterval: defaultStatusInterval,
			ActiveWindow:   defaultActiveWindow,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
		VdoCipher: VdoCipher{
			BaseURL:        defaultVdoCipherBaseURL,
			RequestTimeout: defaultRequestTimeout,
		},
		Speech: Speech{
			BaseURL:  defaultSpeechBaseURL,
			Model:    defaultSpeechModel,
			Language: defaultSpeechLanguage,
		},
		Translation: Translation{
			EnableGrammarCorrection: true,
			EnableRussian:           true,
			EnableArabic:            true,
			GrammarModel:            defaultGrammarModel,
			TranslationModel:        defaultTranslationModel,
		},
		Delivery: Delivery{
			Enabled:        true,
			RequestTimeout: defaultRequestTimeout,
		},
	}
}
