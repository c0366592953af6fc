package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents runtime configuration for the service.
type Config struct {
	BasicConfig BasicConfig               `json:"basic_config" yaml:"basic_config"`
	Databases   map[string]DatabaseConfig `json:"databases" yaml:"databases"`
	Redis       RedisConfig               `json:"redis" yaml:"redis"`
	Providers   map[string]ProviderConfig `json:"providers" yaml:"providers"`
	Insight     InsightConfig             `json:"insight" yaml:"insight"`
	OCR         OCRConfig                 `json:"ocr" yaml:"ocr"`
	AutoML      AutoMLConfig              `json:"automl" yaml:"automl"`
}

type ProviderConfig struct {
	BaseURL string `json:"base_url" yaml:"base_url"`
	Model   string `json:"model" yaml:"model"`
}

type BasicConfig struct {
	ServerAddress string `json:"server_address" yaml:"server_address"`
	Debug         bool   `json:"debug" yaml:"debug"`
	MinWorkers    int    `json:"min_workers" yaml:"min_workers"`
	MaxWorkers    int    `json:"max_workers" yaml:"max_workers"`
	QueueSize     int    `json:"queue_size" yaml:"queue_size"`
	// Minutes.
	WorkerIdleTimeout int `json:"worker_idle_timeout" yaml:"worker_idle_timeout"`
	SessionTTL        int `json:"session_ttl" yaml:"session_ttl"`
	SweepInterval     int `json:"sweep_interval" yaml:"sweep_interval"`

	MaxUploadBytes int64 `json:"max_upload_bytes" yaml:"max_upload_bytes"`
	PreviewRows    int   `json:"preview_rows" yaml:"preview_rows"`
	// CSRFSecret keys session-bound CSRF tokens; empty picks a random key per process.
	CSRFSecret string `json:"csrf_secret" yaml:"csrf_secret"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn" yaml:"dsn"`
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
	DBName   string `json:"db_name" yaml:"db_name"`
	Params   string `json:"params" yaml:"params"`
}

type RedisConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
	DB       int    `json:"db" yaml:"db"`
	// StoreCredentials keeps session credentials in redis instead of process memory.
	StoreCredentials bool `json:"store_credentials" yaml:"store_credentials"`
}

type InsightConfig struct {
	Provider string `json:"provider" yaml:"provider"`
	Timeout  int    `json:"timeout" yaml:"timeout"` // seconds, 0 disables
}

type OCRConfig struct {
	TessdataPrefix  string `json:"tessdata_prefix" yaml:"tessdata_prefix"`
	DefaultLanguage string `json:"default_language" yaml:"default_language"`
	Timeout         int    `json:"timeout" yaml:"timeout"` // seconds, 0 disables
}

type AutoMLConfig struct {
	// Endpoint of the external AutoML service; empty selects the in-process baseline.
	Endpoint string `json:"endpoint" yaml:"endpoint"`
	Seed     int64  `json:"seed" yaml:"seed"`
	Timeout  int    `json:"timeout" yaml:"timeout"` // seconds, 0 disables
}

// Load reads configuration from the provided path (defaults to config.json).
// Files ending in .yaml or .yml are decoded as YAML, everything else as JSON.
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.json"
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("open config %s: %w", absPath, err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(absPath)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	}

	ApplyDefaults(&cfg)

	if len(cfg.Databases) == 0 {
		return nil, fmt.Errorf("at least one database must be configured")
	}

	for name, db := range cfg.Databases {
		if !isSQLite(name) || db.DSN == "" || db.DSN == ":memory:" || strings.HasPrefix(db.DSN, "file:") {
			continue
		}
		if !filepath.IsAbs(db.DSN) {
			db.DSN = filepath.Join(filepath.Dir(absPath), db.DSN)
			cfg.Databases[name] = db
		}
	}

	return &cfg, nil
}

func isSQLite(name string) bool {
	switch strings.ToLower(name) {
	case "sqlite", "sqlite3":
		return true
	}
	return false
}
