package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// TelegramConfig holds the MTProto account credentials and the control bot identity.
type TelegramConfig struct {
	APIID       int    `yaml:"api_id" envconfig:"API_ID"`
	APIHash     string `yaml:"api_hash" envconfig:"API_HASH"`
	Phone       string `yaml:"phone" envconfig:"PHONE_NUMBER"`
	SessionFile string `yaml:"session_file" envconfig:"SESSION_FILE"`
	// BotUsername is the food bot the account talks to, without the @ prefix.
	BotUsername string `yaml:"bot_username" envconfig:"BOT_USERNAME"`

	ControlToken string `yaml:"control_token" envconfig:"CONTROL_BOT_TOKEN"`
	AdminID      int64  `yaml:"admin_id" envconfig:"CONTROL_ADMIN_ID"`
	// LongPollTimeoutSeconds defines control bot long polling timeout; 0 -> default.
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"CONTROL_LONGPOLL_TIMEOUT_SECONDS"`
}

// OrderConfig drives the ordering state machine: protocol labels, the daily
// window, pacing delays and retry policy. Delays are whole seconds.
type OrderConfig struct {
	TriggerButton string   `yaml:"trigger_button"`
	Meals         []string `yaml:"meals"`

	// WindowStartHour is inclusive, WindowEndHour exclusive, both in the
	// zone fixed by UTCOffsetHours.
	WindowStartHour int `yaml:"window_start_hour"`
	WindowEndHour   int `yaml:"window_end_hour"`
	UTCOffsetHours  int `yaml:"utc_offset_hours"`

	// ScheduleHours seeds the settings store on first run; the live value
	// is owned by settings afterwards.
	ScheduleHours []int `yaml:"schedule_hours"`

	DelayAfterTriggerSeconds  int `yaml:"delay_after_trigger_seconds"`
	DelayBetweenClicksSeconds int `yaml:"delay_between_clicks_seconds"`
	SettleDelaySeconds        int `yaml:"settle_delay_seconds"`
	PollTimeoutSeconds        int `yaml:"poll_timeout_seconds"`
	PollIntervalSeconds       int `yaml:"poll_interval_seconds"`
	ClickPollTimeoutSeconds   int `yaml:"click_poll_timeout_seconds"`

	// HistoryWindow is how many recent messages one poll inspects;
	// VerifyWindow how many the final confirmation pass fetches.
	HistoryWindow int `yaml:"history_window"`
	VerifyWindow  int `yaml:"verify_window"`

	MaxAttempts       int `yaml:"max_attempts"`
	RetryDelaySeconds int `yaml:"retry_delay_seconds"`
}

// DatabaseConfig locates the embedded store and its migrations.
type DatabaseConfig struct {
	Path          string `yaml:"path" envconfig:"DATABASE_PATH"`
	MigrationsDir string `yaml:"migrations_dir"`
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Format      string `yaml:"format"`
	KeysOrder   string `yaml:"keys_order"`
	DebugSample string `yaml:"debug_sample"`
	Dir         string `yaml:"dir"`
	File        string `yaml:"file"`
	// Profile indicates environment profile such as "debug" or "prod".
	Profile string `yaml:"profile"`
}

// Config aggregates the full application configuration.
type Config struct {
	Telegram TelegramConfig `yaml:"telegram"`
	Order    OrderConfig    `yaml:"order"`
	Database DatabaseConfig `yaml:"database"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// Default returns the configuration the app ships with; YAML and environment
// overlays are applied on top of it.
func Default() *Config {
	return &Config{
		Telegram: TelegramConfig{
			SessionFile: "autoorder.session",
			BotUsername: "pdpgrantbot",
		},
		Order: OrderConfig{
			TriggerButton:             "Ertangi buyurtma",
			Meals:                     []string{"Nonushta", "Tushlik", "Kechki ovqat"},
			WindowStartHour:           6,
			WindowEndHour:             19,
			UTCOffsetHours:            5,
			ScheduleHours:             []int{8},
			DelayAfterTriggerSeconds:  3,
			DelayBetweenClicksSeconds: 3,
			SettleDelaySeconds:        2,
			PollTimeoutSeconds:        20,
			PollIntervalSeconds:       2,
			ClickPollTimeoutSeconds:   10,
			HistoryWindow:             5,
			VerifyWindow:              3,
			MaxAttempts:               3,
			RetryDelaySeconds:         5,
		},
		Database: DatabaseConfig{
			Path:          "autoorder.db",
			MigrationsDir: "migrations",
		},
	}
}

// Load reads configuration from .env, a YAML file and environment variables.
// A missing YAML file is not an error; defaults plus environment apply.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case os.IsNotExist(err):
		// defaults + env only
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := Normalize(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Normalize performs basic validation of required configuration fields and adjusts defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}

	if cfg.Telegram.APIID <= 0 {
		return fmt.Errorf("telegram.api_id is required")
	}
	if strings.TrimSpace(cfg.Telegram.APIHash) == "" {
		return fmt.Errorf("telegram.api_hash is required")
	}
	cfg.Telegram.BotUsername = strings.TrimPrefix(strings.TrimSpace(cfg.Telegram.BotUsername), "@")
	if cfg.Telegram.BotUsername == "" {
		return fmt.Errorf("telegram.bot_username is required")
	}
	if strings.TrimSpace(cfg.Telegram.SessionFile) == "" {
		return fmt.Errorf("telegram.session_file is required")
	}
	if strings.TrimSpace(cfg.Telegram.ControlToken) == "" {
		return fmt.Errorf("telegram.control_token is required")
	}
	if cfg.Telegram.AdminID == 0 {
		return fmt.Errorf("telegram.admin_id is required")
	}
	if cfg.Telegram.LongPollTimeoutSeconds < 0 {
		return fmt.Errorf("telegram.longpoll_timeout_seconds must be >= 0")
	}

	cfg.Order.TriggerButton = strings.TrimSpace(cfg.Order.TriggerButton)
	if cfg.Order.TriggerButton == "" {
		return fmt.Errorf("order.trigger_button is required")
	}

	meals := make([]string, 0, len(cfg.Order.Meals))
	seen := make(map[string]struct{}, len(cfg.Order.Meals))
	for _, m := range cfg.Order.Meals {
		trimmed := strings.TrimSpace(m)
		if trimmed == "" {
			continue
		}
		if _, dup := seen[trimmed]; dup {
			continue
		}
		seen[trimmed] = struct{}{}
		meals = append(meals, trimmed)
	}
	if len(meals) == 0 {
		return fmt.Errorf("order.meals must list at least one meal")
	}
	cfg.Order.Meals = meals

	if cfg.Order.WindowStartHour < 0 || cfg.Order.WindowStartHour > 23 {
		return fmt.Errorf("order.window_start_hour must be within 0..23")
	}
	if cfg.Order.WindowEndHour < 1 || cfg.Order.WindowEndHour > 24 {
		return fmt.Errorf("order.window_end_hour must be within 1..24")
	}
	if cfg.Order.WindowStartHour >= cfg.Order.WindowEndHour {
		return fmt.Errorf("order.window_start_hour must be before order.window_end_hour")
	}
	if cfg.Order.UTCOffsetHours < -12 || cfg.Order.UTCOffsetHours > 14 {
		return fmt.Errorf("order.utc_offset_hours must be within -12..14")
	}
	for _, h := range cfg.Order.ScheduleHours {
		if h < 0 || h > 23 {
			return fmt.Errorf("order.schedule_hours values must be within 0..23")
		}
	}

	if cfg.Order.DelayAfterTriggerSeconds < 0 ||
		cfg.Order.DelayBetweenClicksSeconds < 0 ||
		cfg.Order.SettleDelaySeconds < 0 {
		return fmt.Errorf("order delays must be >= 0")
	}
	if cfg.Order.PollTimeoutSeconds <= 0 || cfg.Order.PollIntervalSeconds <= 0 {
		return fmt.Errorf("order poll timeout and interval must be > 0")
	}
	if cfg.Order.ClickPollTimeoutSeconds <= 0 {
		return fmt.Errorf("order.click_poll_timeout_seconds must be > 0")
	}
	if cfg.Order.HistoryWindow <= 0 || cfg.Order.VerifyWindow <= 0 {
		return fmt.Errorf("order history and verify windows must be > 0")
	}
	if cfg.Order.MaxAttempts < 1 {
		return fmt.Errorf("order.max_attempts must be >= 1")
	}
	if cfg.Order.RetryDelaySeconds < 0 {
		return fmt.Errorf("order.retry_delay_seconds must be >= 0")
	}

	if strings.TrimSpace(cfg.Database.Path) == "" {
		return fmt.Errorf("database.path is required")
	}
	if strings.TrimSpace(cfg.Database.MigrationsDir) == "" {
		cfg.Database.MigrationsDir = "migrations"
	}
	return nil
}
