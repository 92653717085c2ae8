package config

import (
	"os"
	"path/filepath"
	"testing"
)

func validConfig() *Config {
	cfg := Default()
	cfg.Telegram.APIID = 12345
	cfg.Telegram.APIHash = "hash"
	cfg.Telegram.ControlToken = "123:token"
	cfg.Telegram.AdminID = 42
	return cfg
}

func TestNormalizeRequiresCredentials(t *testing.T) {
	cfg := validConfig()
	cfg.Telegram.APIID = 0
	if err := Normalize(cfg); err == nil {
		t.Fatal("expected error for missing api_id")
	}

	cfg = validConfig()
	cfg.Telegram.ControlToken = "  "
	if err := Normalize(cfg); err == nil {
		t.Fatal("expected error for missing control token")
	}
}

func TestNormalizeStripsUsernamePrefix(t *testing.T) {
	cfg := validConfig()
	cfg.Telegram.BotUsername = "@pdpgrantbot"
	if err := Normalize(cfg); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if cfg.Telegram.BotUsername != "pdpgrantbot" {
		t.Fatalf("expected stripped username, got %q", cfg.Telegram.BotUsername)
	}
}

func TestNormalizeCleansMeals(t *testing.T) {
	cfg := validConfig()
	cfg.Order.Meals = []string{" Nonushta ", "Tushlik", "Nonushta", ""}
	if err := Normalize(cfg); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	want := []string{"Nonushta", "Tushlik"}
	if len(cfg.Order.Meals) != len(want) {
		t.Fatalf("expected %d meals, got %v", len(want), cfg.Order.Meals)
	}
	for i, m := range want {
		if cfg.Order.Meals[i] != m {
			t.Fatalf("meal %d = %q, expected %q", i, cfg.Order.Meals[i], m)
		}
	}

	cfg.Order.Meals = nil
	if err := Normalize(cfg); err == nil {
		t.Fatal("expected error for empty meal list")
	}
}

func TestNormalizeWindowBounds(t *testing.T) {
	cfg := validConfig()
	cfg.Order.WindowStartHour = 19
	cfg.Order.WindowEndHour = 6
	if err := Normalize(cfg); err == nil {
		t.Fatal("expected error for inverted window")
	}

	cfg = validConfig()
	cfg.Order.ScheduleHours = []int{8, 24}
	if err := Normalize(cfg); err == nil {
		t.Fatal("expected error for out-of-range schedule hour")
	}
}

func TestLoadAppliesYAMLAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	body := []byte(`
telegram:
  api_id: 777
  api_hash: yamlhash
  control_token: tok
  admin_id: 9
order:
  poll_timeout_seconds: 15
logging:
  level: debug
`)
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("API_HASH", "envhash")
	t.Setenv("BOT_USERNAME", "@otherbot")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Telegram.APIID != 777 {
		t.Fatalf("expected api_id from YAML, got %d", cfg.Telegram.APIID)
	}
	if cfg.Telegram.APIHash != "envhash" {
		t.Fatalf("expected env override, got %q", cfg.Telegram.APIHash)
	}
	if cfg.Telegram.BotUsername != "otherbot" {
		t.Fatalf("expected normalized env username, got %q", cfg.Telegram.BotUsername)
	}
	if cfg.Order.PollTimeoutSeconds != 15 {
		t.Fatalf("expected poll timeout from YAML, got %d", cfg.Order.PollTimeoutSeconds)
	}
	if cfg.Order.TriggerButton != "Ertangi buyurtma" {
		t.Fatalf("expected default trigger label, got %q", cfg.Order.TriggerButton)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("expected logging level from YAML, got %q", cfg.Logging.Level)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("API_ID", "555")
	t.Setenv("API_HASH", "h")
	t.Setenv("CONTROL_BOT_TOKEN", "tok")
	t.Setenv("CONTROL_ADMIN_ID", "1")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Telegram.APIID != 555 {
		t.Fatalf("expected api_id from env, got %d", cfg.Telegram.APIID)
	}
	if cfg.Database.Path != "autoorder.db" {
		t.Fatalf("expected default database path, got %q", cfg.Database.Path)
	}
}
