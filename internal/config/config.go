package config

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

// DefaultMaxUploadBytes is the attachment size cap applied when the
// operator does not override it (100 MiB).
const DefaultMaxUploadBytes int64 = 104857600

// DefaultNotionVersion pins the Notion API revision all requests are
// made against. The data-source indirection requires 2025-09-03 or later.
const DefaultNotionVersion = "2025-09-03"

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Notion   NotionConfig   `mapstructure:"notion"`
	Poller   PollerConfig   `mapstructure:"poller"`
	Logger   LoggerConfig   `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	WebhookPath  string        `mapstructure:"webhook_path"`
}

// TelegramConfig holds Telegram Bot API configuration
type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
	// SecretToken is compared against x-telegram-bot-api-secret-token
	// on inbound webhook requests when RequireSecret is set.
	SecretToken   string `mapstructure:"secret_token"`
	RequireSecret bool   `mapstructure:"require_secret"`
}

// NotionConfig holds Notion API configuration
type NotionConfig struct {
	Token      string `mapstructure:"token"`
	DatabaseID string `mapstructure:"database_id"`
	Version    string `mapstructure:"version"`
	// MaxUploadBytes is kept as a string so that a garbage override
	// degrades to the default instead of failing config load.
	MaxUploadBytes string `mapstructure:"max_upload_bytes"`

	maxUploadBytes int64
}

// MaxUpload returns the normalized attachment size cap in bytes.
func (c NotionConfig) MaxUpload() int64 {
	if c.maxUploadBytes > 0 {
		return c.maxUploadBytes
	}
	return DefaultMaxUploadBytes
}

// PollerConfig holds configuration for the getUpdates polling variant
type PollerConfig struct {
	Schedule    string `mapstructure:"schedule"`
	JournalPath string `mapstructure:"journal_path"`
	BatchLimit  int    `mapstructure:"batch_limit"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	bindEnvVars(v)
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Notion.maxUploadBytes = normalizeMaxUpload(cfg.Notion.MaxUploadBytes)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// normalizeMaxUpload parses the operator override, falling back to the
// default for anything that is not a positive integer.
func normalizeMaxUpload(raw string) int64 {
	if raw == "" {
		return DefaultMaxUploadBytes
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n <= 0 {
		return DefaultMaxUploadBytes
	}
	return n
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.webhook_path", "/telegram/webhook")

	v.SetDefault("notion.database_id", "26f52a6680d44e59a5bbd10fca3b2a11")
	v.SetDefault("notion.version", DefaultNotionVersion)
	v.SetDefault("notion.max_upload_bytes", "")

	v.SetDefault("poller.schedule", "@every 1m")
	v.SetDefault("poller.journal_path", "data/poller.db")
	v.SetDefault("poller.batch_limit", 50)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")
}

func bindEnvVars(v *viper.Viper) {
	v.BindEnv("telegram.bot_token", "TELEGRAM_BOT_TOKEN")
	v.BindEnv("telegram.secret_token", "TELEGRAM_SECRET_TOKEN")
	v.BindEnv("telegram.require_secret", "REQUIRE_SECRET_TOKEN")
	v.BindEnv("notion.token", "NOTION_TOKEN")
	v.BindEnv("notion.database_id", "NOTION_DATABASE_ID")
	v.BindEnv("notion.version", "NOTION_VERSION")
	v.BindEnv("notion.max_upload_bytes", "MAX_UPLOAD_BYTES")
	v.BindEnv("poller.schedule", "POLL_SCHEDULE")
	v.BindEnv("poller.journal_path", "POLL_JOURNAL_PATH")
}

// Validate validates the configuration. A Notion token is required in
// both variants: a bridge that can create pages but silently skips every
// attachment produces partially populated ledgers, which downstream
// consumers are not known to tolerate.
func (c *Config) Validate() error {
	if c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram.bot_token is required")
	}
	if c.Notion.Token == "" {
		return fmt.Errorf("notion.token is required")
	}
	if c.Notion.DatabaseID == "" {
		return fmt.Errorf("notion.database_id is required")
	}
	if c.Telegram.RequireSecret && c.Telegram.SecretToken == "" {
		return fmt.Errorf("telegram.secret_token is required when telegram.require_secret is set")
	}
	if c.Poller.BatchLimit <= 0 || c.Poller.BatchLimit > 100 {
		return fmt.Errorf("poller.batch_limit must be between 1 and 100")
	}
	return nil
}
