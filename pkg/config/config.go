package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
)

// FlexibleStringSlice is a []string that also accepts JSON numbers,
// so allow_from can contain both "123" and 123.
type FlexibleStringSlice []string

func (f *FlexibleStringSlice) UnmarshalJSON(data []byte) error {
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}

	var raw []interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	result := make([]string, 0, len(raw))
	for _, v := range raw {
		switch val := v.(type) {
		case string:
			result = append(result, val)
		case float64:
			result = append(result, fmt.Sprintf("%.0f", val))
		default:
			result = append(result, fmt.Sprintf("%v", val))
		}
	}
	*f = result
	return nil
}

type APIConfig struct {
	Key     string `json:"key" env:"JULES_API_KEY"`
	BaseURL string `json:"base_url" env:"JULES_API_BASE_URL"`
}

type TelegramConfig struct {
	Token     string              `json:"token" env:"JULES_TELEGRAM_TOKEN"`
	AllowFrom FlexibleStringSlice `json:"allow_from" env:"JULES_TELEGRAM_ALLOW_FROM"`
}

type PollConfig struct {
	// Interval between poll cycles, in seconds.
	IntervalSeconds int `json:"interval_seconds" env:"JULES_POLL_INTERVAL_SECONDS"`
}

type Config struct {
	API      APIConfig      `json:"api"`
	Telegram TelegramConfig `json:"telegram"`
	Poll     PollConfig     `json:"poll"`
	LogFile  string         `json:"log_file" env:"JULES_LOG_FILE"`
}

func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL: "https://jules.googleapis.com/v1alpha",
		},
		Telegram: TelegramConfig{
			AllowFrom: FlexibleStringSlice{},
		},
		Poll: PollConfig{
			IntervalSeconds: 30,
		},
	}
}

// LoadConfig reads the config file at path, falling back to defaults when the
// file does not exist, then overlays environment variables on top.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	} else {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	if cfg.Poll.IntervalSeconds <= 0 {
		cfg.Poll.IntervalSeconds = 30
	}

	return cfg, nil
}

func SaveConfig(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}
