package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadJSONAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.json", `{
		"basic_config": {"server_address": ":9000"},
		"databases": {"sqlite3": {"dsn": "data/app.db"}},
		"providers": {"claude": {"model": "claude-3-5-haiku-latest"}}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BasicConfig.ServerAddress != ":9000" {
		t.Fatalf("server address = %q", cfg.BasicConfig.ServerAddress)
	}
	if got, want := cfg.Databases["sqlite3"].DSN, filepath.Join(dir, "data/app.db"); got != want {
		t.Fatalf("sqlite dsn = %q, want %q", got, want)
	}
	if cfg.Insight.Provider != DefaultProvider {
		t.Fatalf("insight provider = %q", cfg.Insight.Provider)
	}
	if cfg.Providers[DefaultProvider].Model != DefaultInsightLLM {
		t.Fatalf("default provider model = %q", cfg.Providers[DefaultProvider].Model)
	}
	if _, ok := cfg.Providers["claude"]; !ok {
		t.Fatalf("configured provider dropped")
	}
	if cfg.AutoML.Seed != DefaultSeed {
		t.Fatalf("seed = %d", cfg.AutoML.Seed)
	}
	if cfg.BasicConfig.PreviewRows != DefaultPreviewRows {
		t.Fatalf("preview rows = %d", cfg.BasicConfig.PreviewRows)
	}
	if cfg.BasicConfig.MaxWorkers < cfg.BasicConfig.MinWorkers {
		t.Fatalf("max workers %d < min workers %d", cfg.BasicConfig.MaxWorkers, cfg.BasicConfig.MinWorkers)
	}
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
basic_config:
  debug: true
  max_workers: 8
databases:
  sqlite3:
    dsn: ":memory:"
automl:
  endpoint: http://localhost:5001
  seed: 7
ocr:
  default_language: deu
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.BasicConfig.Debug {
		t.Fatalf("debug not decoded")
	}
	if cfg.BasicConfig.MaxWorkers != 8 {
		t.Fatalf("max workers = %d", cfg.BasicConfig.MaxWorkers)
	}
	if cfg.Databases["sqlite3"].DSN != ":memory:" {
		t.Fatalf("memory dsn rewritten: %q", cfg.Databases["sqlite3"].DSN)
	}
	if cfg.AutoML.Endpoint != "http://localhost:5001" || cfg.AutoML.Seed != 7 {
		t.Fatalf("automl = %+v", cfg.AutoML)
	}
	if cfg.OCR.DefaultLanguage != "deu" {
		t.Fatalf("ocr language = %q", cfg.OCR.DefaultLanguage)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatalf("expected error for missing config")
	}
}

func TestLoadInvalidJSON(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.json", `{"basic_config": `)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestApplyDefaultsDatabase(t *testing.T) {
	var cfg Config
	ApplyDefaults(&cfg)
	if _, ok := cfg.Databases["sqlite3"]; !ok {
		t.Fatalf("expected default sqlite database")
	}
	if cfg.Redis.Port != 6379 {
		t.Fatalf("redis port = %d", cfg.Redis.Port)
	}
}
