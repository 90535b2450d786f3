package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const (
	VariantTester   = "tester"
	VariantShowcase = "showcase"
)

const defaultHistoryLimit = 50

// Config is the root runtime configuration loaded from config.json or
// config.yaml.
type Config struct {
	View     ViewConfig     `json:"view" yaml:"view"`
	Channels ChannelsConfig `json:"channels" yaml:"channels"`
	Issues   IssuesConfig   `json:"issues,omitempty" yaml:"issues,omitempty"`
	Gateway  GatewayConfig  `json:"gateway" yaml:"gateway"`
	Logging  LoggingConfig  `json:"logging,omitempty" yaml:"logging,omitempty"`
}

// ViewConfig selects the interface variant and its user-facing behavior.
type ViewConfig struct {
	Variant           string  `json:"variant" yaml:"variant"`
	Title             string  `json:"title" yaml:"title"`
	ShowModelSelector bool    `json:"show_model_selector,omitempty" yaml:"show_model_selector,omitempty"`
	HistoryLimit      int     `json:"history_limit,omitempty" yaml:"history_limit,omitempty"`
	DefaultModel      string  `json:"default_model,omitempty" yaml:"default_model,omitempty"`
	Models            []Model `json:"models,omitempty" yaml:"models,omitempty"`
}

// Model describes one selectable model entry for the inline keyboard.
type Model struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// ModelByID returns the configured model entry with the given id.
func (v ViewConfig) ModelByID(id string) (Model, bool) {
	for _, model := range v.Models {
		if model.ID == id {
			return model, true
		}
	}

	return Model{}, false
}

// ChannelsConfig stores transport adapter settings.
type ChannelsConfig struct {
	Telegram TelegramConfig `json:"telegram" yaml:"telegram"`
}

// TelegramConfig configures Telegram channel integration.
type TelegramConfig struct {
	Enabled   bool     `json:"enabled" yaml:"enabled"`
	Token     string   `json:"token" yaml:"token"`
	AllowFrom []string `json:"allow_from,omitempty" yaml:"allow_from,omitempty"`
}

// IssuesConfig configures the issue-report sink. An empty SQLitePath keeps
// reports in the log only.
type IssuesConfig struct {
	SQLitePath string `json:"sqlite_path,omitempty" yaml:"sqlite_path,omitempty"`
}

// GatewayConfig configures status endpoint bind settings.
type GatewayConfig struct {
	Host string `json:"host" yaml:"host"`
	Port int    `json:"port" yaml:"port"`
}

// LoggingConfig controls structured log output format and verbosity.
type LoggingConfig struct {
	Format    string `json:"format,omitempty" yaml:"format,omitempty"`
	Level     string `json:"level,omitempty" yaml:"level,omitempty"`
	AddSource bool   `json:"add_source,omitempty" yaml:"add_source,omitempty"`
}

// envOverrides are applied on top of the file config.
type envOverrides struct {
	TelegramToken     string   `env:"TELEGRAM_BOT_TOKEN"`
	TelegramAllowFrom []string `env:"TELEGRAM_ALLOW_FROM" envSeparator:","`
	LogFormat         string   `env:"CHATVIEW_LOG_FORMAT"`
	LogLevel          string   `env:"CHATVIEW_LOG_LEVEL"`
	IssuesSQLitePath  string   `env:"CHATVIEW_ISSUES_DB"`
}

// LoadConfig resolves the config file, unmarshals it, applies environment
// overrides, and fills defaults.
func LoadConfig() (*Config, error) {
	configPath, err := findConfigPath()
	if err != nil {
		return nil, err
	}

	return loadFromPath(configPath)
}

func loadFromPath(configPath string) (*Config, error) {
	content, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(configPath)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(content, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	default:
		if err := json.Unmarshal(content, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	var overrides envOverrides
	if err := env.Parse(&overrides); err != nil {
		return fmt.Errorf("parse environment overrides: %w", err)
	}

	if token := strings.TrimSpace(overrides.TelegramToken); token != "" {
		cfg.Channels.Telegram.Token = token
	}
	if len(overrides.TelegramAllowFrom) > 0 {
		cfg.Channels.Telegram.AllowFrom = compact(overrides.TelegramAllowFrom)
	}
	if format := strings.TrimSpace(overrides.LogFormat); format != "" {
		cfg.Logging.Format = format
	}
	if level := strings.TrimSpace(overrides.LogLevel); level != "" {
		cfg.Logging.Level = level
	}
	if path := strings.TrimSpace(overrides.IssuesSQLitePath); path != "" {
		cfg.Issues.SQLitePath = path
	}

	return nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.View.Variant) == "" {
		cfg.View.Variant = VariantTester
	}
	if cfg.View.HistoryLimit <= 0 {
		cfg.View.HistoryLimit = defaultHistoryLimit
	}
}

func validate(cfg *Config) error {
	variant := strings.TrimSpace(cfg.View.Variant)
	if variant != VariantTester && variant != VariantShowcase {
		return fmt.Errorf("unsupported view variant %q", cfg.View.Variant)
	}

	if cfg.View.ShowModelSelector && len(cfg.View.Models) == 0 {
		return fmt.Errorf("view.show_model_selector requires at least one entry in view.models")
	}

	return nil
}

func compact(values []string) []string {
	clean := make([]string, 0, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		clean = append(clean, trimmed)
	}

	return clean
}

// findConfigPath resolves the active config file location.
//
// Precedence is CHATVIEW_CONFIG first, then cwd-local fallback paths.
func findConfigPath() (string, error) {
	if value := strings.TrimSpace(os.Getenv("CHATVIEW_CONFIG")); value != "" {
		if info, err := os.Stat(value); err == nil && !info.IsDir() {
			return value, nil
		}
		return "", fmt.Errorf("CHATVIEW_CONFIG does not point to a file: %s", value)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get current working directory: %w", err)
	}

	candidates := []string{
		filepath.Join(cwd, "config.json"),
		filepath.Join(cwd, "config.yaml"),
		filepath.Join(cwd, "config", "config.json"),
		filepath.Join(cwd, "config", "config.yaml"),
	}

	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("no config file found (checked config.json and config.yaml in %s and %s)", cwd, filepath.Join(cwd, "config"))
}
