package config

import "testing"

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DISCORD_BOT_TOKEN", "bot-token")
	t.Setenv("WEBHOOK_SECRET", "hook-secret")
	t.Setenv("OPENAI_API_KEY", "sk-test")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Port = %q", cfg.Port)
	}
	if cfg.OpenAIModel != "gpt-3.5-turbo" {
		t.Errorf("OpenAIModel = %q", cfg.OpenAIModel)
	}
	if cfg.AIMaxTokens != 3000 || cfg.AITemperature != 0.7 {
		t.Errorf("AI defaults = %d / %v", cfg.AIMaxTokens, cfg.AITemperature)
	}
	if cfg.MaxPerMinute != 2 || cfg.MaxPerHour != 10 || cfg.MaxPerDay != 50 {
		t.Errorf("quota defaults = %d/%d/%d", cfg.MaxPerMinute, cfg.MaxPerHour, cfg.MaxPerDay)
	}
	if cfg.CharLimit != 1900 {
		t.Errorf("CharLimit = %d", cfg.CharLimit)
	}
	if cfg.PrivateMode {
		t.Error("PrivateMode default = true")
	}
}

func TestLoadRequiresBotToken(t *testing.T) {
	setRequired(t)
	t.Setenv("DISCORD_BOT_TOKEN", "")

	if _, err := Load(); err == nil {
		t.Fatal("Load() should fail without DISCORD_BOT_TOKEN")
	}
}

func TestLoadAllowedUsers(t *testing.T) {
	setRequired(t)
	t.Setenv("PRIVATE_MODE", "1")
	t.Setenv("ALLOWED_USERS", "100, 200 ,,300")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !cfg.PrivateMode {
		t.Error("PrivateMode = false")
	}
	if len(cfg.AllowedUsers) != 3 || cfg.AllowedUsers[1] != "200" {
		t.Errorf("AllowedUsers = %v", cfg.AllowedUsers)
	}
}
