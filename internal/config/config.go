package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// TelegramConfig stores Telegram specific configurations.
type TelegramConfig struct {
	BotToken string  `yaml:"bot_token"`
	AdminIDs []int64 `yaml:"admin_ids"`
}

// DatabaseConfig selects the storage engine. Type is "sqlite" or "postgres".
type DatabaseConfig struct {
	Type string `yaml:"type"`
	DSN  string `yaml:"dsn"`
}

// MarathonConfig stores challenge flow configurations.
type MarathonConfig struct {
	Timezone            string `yaml:"timezone"`
	SeedPath            string `yaml:"seed_path"`
	SeedOnStart         bool   `yaml:"seed_on_start"`
	SeedWipeOnStart     bool   `yaml:"seed_wipe_on_start"`
	MaxResponsesPerTask int    `yaml:"max_responses_per_task"`
}

// Config stores the application configuration.
type Config struct {
	Telegram TelegramConfig `yaml:"telegram"`
	Database DatabaseConfig `yaml:"database"`
	Marathon MarathonConfig `yaml:"marathon"`
	LogLevel string         `yaml:"log_level"`
}

// LoadConfig loads the configuration from the given file path and applies
// defaults for anything the file leaves out.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", filePath, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Type: "sqlite",
			DSN:  "bot_data/bot.db",
		},
		Marathon: MarathonConfig{
			Timezone:            "Europe/Moscow",
			SeedPath:            "data/challenge_posts.json",
			SeedOnStart:         true,
			MaxResponsesPerTask: 3,
		},
		LogLevel: "info",
	}
}

func (c *Config) validate() error {
	if c.Telegram.BotToken == "" {
		return errors.New("telegram bot token is not set in config")
	}
	switch c.Database.Type {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported database type %q", c.Database.Type)
	}
	if c.Marathon.MaxResponsesPerTask < 1 {
		c.Marathon.MaxResponsesPerTask = 1
	}
	if _, err := time.LoadLocation(c.Marathon.Timezone); err != nil {
		return fmt.Errorf("invalid marathon timezone %q: %w", c.Marathon.Timezone, err)
	}
	return nil
}

// IsAdmin reports whether the Telegram user id belongs to a configured admin.
func (c *Config) IsAdmin(telegramID int64) bool {
	for _, id := range c.Telegram.AdminIDs {
		if id == telegramID {
			return true
		}
	}
	return false
}

// Location resolves the configured marathon timezone. The zone is validated
// at load time, so failures here are impossible for a loaded config.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Marathon.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
