package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/openclaw/intake-bot-go/internal/automation"
	"github.com/openclaw/intake-bot-go/internal/command"
	"github.com/openclaw/intake-bot-go/internal/config"
	"github.com/openclaw/intake-bot-go/internal/database"
	"github.com/openclaw/intake-bot-go/internal/flow"
	"github.com/openclaw/intake-bot-go/internal/gateway"
	"github.com/openclaw/intake-bot-go/internal/handler"
	"github.com/openclaw/intake-bot-go/internal/jobs"
	"github.com/openclaw/intake-bot-go/internal/messenger"
	"github.com/openclaw/intake-bot-go/internal/middleware"
	"github.com/openclaw/intake-bot-go/internal/redis"
	"github.com/openclaw/intake-bot-go/internal/secrets"
	"github.com/openclaw/intake-bot-go/internal/store"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	isProduction := os.Getenv("FLY_APP_NAME") != ""
	if err := cfg.Validate(isProduction); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	sessions := store.NewSessionStore()

	var requests store.RequestStore = store.NewMemoryRequestStore()
	if cfg.DatabaseURL != "" {
		db, err := database.Connect(cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer db.Close()

		ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
		if err := db.Ping(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to ping database")
		}
		cancel()

		pgStore := store.NewPostgresRequestStore(db.DB)
		if err := pgStore.EnsureSchema(context.Background()); err != nil {
			log.Fatal().Err(err).Msg("failed to ensure request schema")
		}
		requests = pgStore
		log.Info().Msg("database connected")
	} else {
		log.Info().Msg("DATABASE_URL not set: request history is in-memory")
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = redis.NewClient(cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisClient.Close()
		log.Info().Msg("redis connected")
	}

	var credentials secrets.Store
	if cfg.CredentialsMasterKey != "" {
		credentials = secrets.NewVaultStore(cfg.CredentialsPath, cfg.CredentialsMasterKey)
	} else {
		credentials = secrets.NewFileStore(cfg.CredentialsPath)
	}

	agent, err := automation.NewClient(cfg.AgentAPIKey, cfg.AgentBaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build automation client")
	}

	discord, err := messenger.NewDiscordClient(cfg.BotToken)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build chat client")
	}

	triggers := cfg.TriggerPhrases
	if len(triggers) == 0 {
		triggers = config.DefaultTriggerPhrases
	}

	dialogue := flow.New(sessions, requests, agent, discord, cfg.Mode(), cfg.TempDir, cfg.MaxRemediationRounds)
	router := command.NewRouter(requests, agent, discord)
	gw := gateway.New(sessions, dialogue, router, discord, discord, cfg.HomeChannelID, triggers)

	webhookHandler := handler.NewWebhookHandler(gw)
	submitHandler := handler.NewSubmitHandler(agent, credentials, requests)

	signatureMiddleware := middleware.NewSignatureMiddleware(cfg.WebhookSecret)
	var rateLimit func(http.Handler) http.Handler
	if redisClient != nil {
		rateLimit = middleware.NewRedisRateLimitMiddleware(redisClient.Client, cfg.WebhookRateLimitPerMin).Handler
	} else {
		rateLimit = middleware.NewRateLimitMiddleware(cfg.WebhookRateLimitPerMin).Handler
	}

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"status":    "ok",
			"timestamp": time.Now().UnixMilli(),
		})
	})

	r.Route("/webhook", func(r chi.Router) {
		r.Use(rateLimit)
		r.Use(signatureMiddleware.Handler)
		r.Post("/", webhookHandler.Webhook)
	})

	r.Route("/v1", func(r chi.Router) {
		r.Use(rateLimit)
		r.Use(signatureMiddleware.Handler)
		r.Post("/requests", submitHandler.Submit)
	})

	cleanupJob := jobs.NewCleanupJob(sessions, cfg.SessionIdleTTL(), config.CleanupJobInterval)
	cleanupJob.Start()
	defer cleanupJob.Stop()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: 0,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Str("mode", string(cfg.Mode())).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
