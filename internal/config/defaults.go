package config

const (
	DefaultProvider    = "openai"
	DefaultInsightLLM  = "gpt-4o-mini"
	DefaultSeed        = 42
	DefaultPreviewRows = 5
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	b := &cfg.BasicConfig
	if b.ServerAddress == "" {
		b.ServerAddress = ":8090"
	}
	if b.MinWorkers <= 0 {
		b.MinWorkers = 1
	}
	if b.MaxWorkers < b.MinWorkers {
		b.MaxWorkers = b.MinWorkers * 4
	}
	if b.QueueSize <= 0 {
		b.QueueSize = 64
	}
	if b.WorkerIdleTimeout <= 0 {
		b.WorkerIdleTimeout = 5
	}
	if b.SessionTTL <= 0 {
		b.SessionTTL = 12 * 60
	}
	if b.SweepInterval <= 0 {
		b.SweepInterval = 10
	}
	if b.MaxUploadBytes <= 0 {
		b.MaxUploadBytes = 20 << 20
	}
	if b.PreviewRows <= 0 {
		b.PreviewRows = DefaultPreviewRows
	}

	if cfg.Databases == nil {
		cfg.Databases = map[string]DatabaseConfig{
			"sqlite3": {DSN: "./data/insightsnap.db"},
		}
	}

	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "127.0.0.1"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}

	if cfg.Providers == nil {
		cfg.Providers = make(map[string]ProviderConfig)
	}
	if _, ok := cfg.Providers[DefaultProvider]; !ok {
		cfg.Providers[DefaultProvider] = ProviderConfig{Model: DefaultInsightLLM}
	}
	if cfg.Insight.Provider == "" {
		cfg.Insight.Provider = DefaultProvider
	}
	if cfg.Insight.Timeout == 0 {
		cfg.Insight.Timeout = 120
	}

	if cfg.OCR.DefaultLanguage == "" {
		cfg.OCR.DefaultLanguage = "eng"
	}
	if cfg.OCR.Timeout == 0 {
		cfg.OCR.Timeout = 60
	}

	if cfg.AutoML.Seed == 0 {
		cfg.AutoML.Seed = DefaultSeed
	}
	if cfg.AutoML.Timeout == 0 {
		cfg.AutoML.Timeout = 600
	}
}
