package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	DiscordBotToken string
	WebhookSecret   string
	AdminToken      string

	OpenAIAPIKey  string
	OpenAIModel   string
	AIMaxTokens   int
	AITemperature float64
	SystemPrompt  string

	MaxPerMinute int
	MaxPerHour   int
	MaxPerDay    int

	CharLimit int

	PrivateMode  bool
	AllowedUsers []string

	Workers   int
	RedisAddr string
	DataDir   string
	Port      string
}

const defaultSystemPrompt = "You are a helpful assistant answering questions in a group chat. Keep answers concise."

func Load() (*Config, error) {
	// .env is optional — env vars may already be set (e.g. in production)
	_ = godotenv.Load()

	cfg := &Config{
		DiscordBotToken: os.Getenv("DISCORD_BOT_TOKEN"),
		WebhookSecret:   os.Getenv("WEBHOOK_SECRET"),
		AdminToken:      os.Getenv("ADMIN_TOKEN"),
		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:     os.Getenv("OPENAI_MODEL"),
		SystemPrompt:    os.Getenv("SYSTEM_PROMPT"),
		AIMaxTokens:     parseIntEnv("AI_MAX_TOKENS", 3000),
		AITemperature:   parseFloatEnv("AI_TEMPERATURE", 0.7),
		MaxPerMinute:    parseIntEnv("MAX_PER_MINUTE", 2),
		MaxPerHour:      parseIntEnv("MAX_PER_HOUR", 10),
		MaxPerDay:       parseIntEnv("MAX_PER_DAY", 50),
		CharLimit:       parseIntEnv("CHAR_LIMIT", 1900),
		PrivateMode:     os.Getenv("PRIVATE_MODE") == "1",
		AllowedUsers:    splitList(os.Getenv("ALLOWED_USERS")),
		Workers:         parseIntEnv("WORKERS", 4),
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		DataDir:         os.Getenv("DATA_DIR"),
		Port:            os.Getenv("PORT"),
	}

	if cfg.Port == "" {
		cfg.Port = "8080"
	}

	if cfg.DataDir == "" {
		cfg.DataDir = "."
	}

	if cfg.OpenAIModel == "" {
		cfg.OpenAIModel = "gpt-3.5-turbo"
	}

	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = defaultSystemPrompt
	}

	for _, req := range []struct {
		name, val string
	}{
		{"DISCORD_BOT_TOKEN", cfg.DiscordBotToken},
		{"WEBHOOK_SECRET", cfg.WebhookSecret},
		{"OPENAI_API_KEY", cfg.OpenAIAPIKey},
	} {
		if req.val == "" {
			return nil, fmt.Errorf("required env var %s is not set", req.name)
		}
	}

	return cfg, nil
}

func parseIntEnv(key string, def int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return def
	}
	return v
}

func parseFloatEnv(key string, def float64) float64 {
	v, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return def
	}
	return v
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
