package config

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

const defaultVisionTimeoutSeconds = 30

type Config struct {
	ListenAddr string `yaml:"listen_addr"`
	DBPath     string `yaml:"db_path"`

	VisionProvider       string `yaml:"vision_provider"`
	VisionModel          string `yaml:"vision_model"`
	GeminiAPIKey         string `yaml:"gemini_api_key"`
	AnthropicAPIKey      string `yaml:"anthropic_api_key"`
	VisionTimeoutSeconds int    `yaml:"vision_timeout_seconds"`

	SlackBotToken  string `yaml:"slack_bot_token"`
	SlackChannelID string `yaml:"slack_channel_id"`

	// Auto-assignments at or above this confidence are committed without an
	// admin confirming; below it the routing result is only a suggestion.
	AutoCommitThreshold float64 `yaml:"auto_commit_threshold"`

	// Standard 5-field cron expression; empty disables the sweep.
	SweepSchedule      string `yaml:"sweep_schedule"`
	SweepMinAgeMinutes int    `yaml:"sweep_min_age_minutes"`
}

func LoadConfig() Config {
	// Optional .env for local development; a missing file is fine.
	_ = godotenv.Load()

	var cfg Config

	configPath := "config.yaml"
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		configPath = envPath
	}
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			log.Fatalf("Error parsing %s: %v", configPath, err)
		}
		log.Printf("Loaded config from %s", configPath)
	}

	// Env vars override YAML values
	envOverride(&cfg.ListenAddr, "LISTEN_ADDR")
	envOverride(&cfg.DBPath, "DB_PATH")
	envOverride(&cfg.VisionProvider, "VISION_PROVIDER")
	envOverride(&cfg.VisionModel, "VISION_MODEL")
	envOverride(&cfg.GeminiAPIKey, "GEMINI_API_KEY")
	envOverride(&cfg.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	envOverrideInt(&cfg.VisionTimeoutSeconds, "VISION_TIMEOUT_SECONDS")
	envOverride(&cfg.SlackBotToken, "SLACK_BOT_TOKEN")
	envOverride(&cfg.SlackChannelID, "SLACK_CHANNEL_ID")
	envOverrideFloat(&cfg.AutoCommitThreshold, "AUTO_COMMIT_THRESHOLD")
	envOverride(&cfg.SweepSchedule, "SWEEP_SCHEDULE")
	envOverrideInt(&cfg.SweepMinAgeMinutes, "SWEEP_MIN_AGE_MINUTES")

	applyDefaults(&cfg)

	if err := Validate(cfg); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "./civicreport.db"
	}
	if cfg.VisionProvider == "" {
		cfg.VisionProvider = "gemini"
	}
	if cfg.VisionTimeoutSeconds == 0 {
		cfg.VisionTimeoutSeconds = defaultVisionTimeoutSeconds
	}
	if cfg.AutoCommitThreshold == 0 {
		cfg.AutoCommitThreshold = 0.8
	}
	if cfg.SweepMinAgeMinutes == 0 {
		cfg.SweepMinAgeMinutes = 60
	}
}

// Validate fails on packaging defects: a provider without its API key, an
// unparseable sweep schedule, thresholds out of range.
func Validate(cfg Config) error {
	switch cfg.VisionProvider {
	case "gemini":
		if cfg.GeminiAPIKey == "" {
			return fmt.Errorf("gemini_api_key is required when vision_provider=gemini")
		}
	case "anthropic":
		if cfg.AnthropicAPIKey == "" {
			return fmt.Errorf("anthropic_api_key is required when vision_provider=anthropic")
		}
	default:
		return fmt.Errorf("vision_provider must be 'gemini' or 'anthropic', got '%s'", cfg.VisionProvider)
	}

	if cfg.VisionTimeoutSeconds < 1 {
		return fmt.Errorf("invalid vision_timeout_seconds '%d': must be >= 1", cfg.VisionTimeoutSeconds)
	}
	if cfg.AutoCommitThreshold < 0 || cfg.AutoCommitThreshold > 1 {
		return fmt.Errorf("invalid auto_commit_threshold '%f': must be between 0 and 1", cfg.AutoCommitThreshold)
	}
	if cfg.SweepMinAgeMinutes < 1 {
		return fmt.Errorf("invalid sweep_min_age_minutes '%d': must be >= 1", cfg.SweepMinAgeMinutes)
	}
	if cfg.SweepSchedule != "" {
		parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
		if _, err := parser.Parse(cfg.SweepSchedule); err != nil {
			return fmt.Errorf("invalid sweep_schedule '%s': %v", cfg.SweepSchedule, err)
		}
	}
	if cfg.SlackBotToken != "" && cfg.SlackChannelID == "" {
		return fmt.Errorf("slack_channel_id is required when slack_bot_token is set")
	}
	return nil
}

func (c Config) SlackConfigured() bool {
	return c.SlackBotToken != "" && c.SlackChannelID != ""
}

func envOverride(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

func envOverrideInt(field *int, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			log.Fatalf("invalid %s '%s': %v", envKey, val, err)
		}
		*field = parsed
	}
}

func envOverrideFloat(field *float64, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.ParseFloat(val, 64)
		if err != nil {
			log.Fatalf("invalid %s '%s': %v", envKey, val, err)
		}
		*field = parsed
	}
}
