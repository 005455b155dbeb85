package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/relaybots/chatrelay/internal/admin"
	"github.com/relaybots/chatrelay/internal/allowlist"
	"github.com/relaybots/chatrelay/internal/bot"
	"github.com/relaybots/chatrelay/internal/config"
	"github.com/relaybots/chatrelay/internal/convo"
	"github.com/relaybots/chatrelay/internal/discord"
	"github.com/relaybots/chatrelay/internal/history"
	"github.com/relaybots/chatrelay/internal/openai"
	"github.com/relaybots/chatrelay/internal/quota"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	hist, err := history.Open(cfg.DataDir + "/chatrelay.db")
	if err != nil {
		log.Fatalf("history: %v", err)
	}
	defer hist.Close()

	allowed, err := allowlist.Open(cfg.DataDir + "/allowlist.db")
	if err != nil {
		log.Fatalf("allowlist: %v", err)
	}
	defer allowed.Close()
	if err := allowed.Seed(cfg.AllowedUsers); err != nil {
		log.Fatalf("allowlist: seeding: %v", err)
	}

	cache, err := newInFlightCache(cfg.RedisAddr)
	if err != nil {
		log.Fatalf("quota: %v", err)
	}
	defer cache.Close()

	gate := quota.NewGate(hist, cache, quota.Limits{
		PerMinute: cfg.MaxPerMinute,
		PerHour:   cfg.MaxPerHour,
		PerDay:    cfg.MaxPerDay,
	})

	convos := convo.NewStore(cfg.SystemPrompt)

	// Periodic cleanup of idle conversations to prevent memory leaks
	go func() {
		ticker := time.NewTicker(30 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			convos.Cleanup(24 * time.Hour)
		}
	}()

	llm := openai.NewClient(cfg.OpenAIAPIKey)
	sender := discord.NewClient(cfg.DiscordBotToken)

	botHandler := bot.NewHandler(sender, llm, convos, gate, hist, allowed, bot.Options{
		Server:       "DISCORD",
		Model:        cfg.OpenAIModel,
		MaxTokens:    cfg.AIMaxTokens,
		Temperature:  cfg.AITemperature,
		SystemPrompt: cfg.SystemPrompt,
		CharLimit:    cfg.CharLimit,
		Private:      cfg.PrivateMode,
		Workers:      cfg.Workers,
	})
	webhookHandler := discord.NewWebhookHandler(cfg.WebhookSecret, botHandler.HandleMessage)
	adminHandler := admin.NewHandler(cfg.AdminToken, allowed)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Post("/webhook", webhookHandler.HandleIncoming)
	r.Route("/admin", adminHandler.Routes)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("chatrelay: listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("chatrelay: shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("shutdown: %v", err)
	}

	// Let in-flight completions finish so their replies and audit rows land.
	botHandler.Wait()
	log.Println("chatrelay: stopped")
}

// newInFlightCache picks the shared Redis driver when an address is
// configured, falling back to the per-process memory driver.
func newInFlightCache(redisAddr string) (quota.Cache, error) {
	if redisAddr == "" {
		return quota.NewCache(quota.CacheMemory)
	}
	client := redis.NewClient(&redis.Options{Addr: redisAddr})
	return quota.NewCache(quota.CacheRedis, quota.WithRedisClient(client))
}
