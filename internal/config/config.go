package config

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/openclaw/intake-bot-go/internal/model"
)

var knownWeakSecrets = []string{
	"change-me", "dev-secret-change-me", "secret", "admin", "password",
}

type Config struct {
	Port int `env:"PORT" envDefault:"8080"`

	// Automation agent
	AgentBaseURL string `env:"AGENT_BASE_URL" envDefault:"https://agent.tinyfish.ai"`
	AgentAPIKey  string `env:"AGENT_API_KEY,required"`

	// Chat transport
	BotToken       string   `env:"BOT_TOKEN,required"`
	WebhookSecret  string   `env:"WEBHOOK_SECRET"`
	HomeChannelID  string   `env:"HOME_CHANNEL_ID"`
	TriggerPhrases []string `env:"TRIGGER_PHRASES" envSeparator:";"`

	// Optional backing services
	DatabaseURL string `env:"DATABASE_URL"`
	RedisURL    string `env:"REDIS_URL"`

	// Credential store
	CredentialsPath      string `env:"CREDENTIALS_PATH" envDefault:"data/credentials.json"`
	CredentialsMasterKey string `env:"CREDENTIALS_MASTER_KEY"`

	// Dialogue tuning
	FlowMode               string `env:"FLOW_MODE" envDefault:"guided"`
	TempDir                string `env:"TEMP_DIR" envDefault:"tmp/attachments"`
	SessionIdleTTLSeconds  int    `env:"SESSION_IDLE_TTL_SECONDS" envDefault:"1800"`
	MaxRemediationRounds   int    `env:"MAX_REMEDIATION_ROUNDS" envDefault:"10"`
	WebhookRateLimitPerMin int    `env:"WEBHOOK_RATE_LIMIT_PER_MIN" envDefault:"60"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) SessionIdleTTL() time.Duration {
	return time.Duration(c.SessionIdleTTLSeconds) * time.Second
}

func (c *Config) Mode() model.FlowMode {
	if strings.EqualFold(c.FlowMode, string(model.FlowModeBulk)) {
		return model.FlowModeBulk
	}
	return model.FlowModeGuided
}

func (c *Config) Validate(isProduction bool) error {
	if c.CredentialsMasterKey != "" {
		key, err := hex.DecodeString(c.CredentialsMasterKey)
		if err != nil || len(key) != 32 {
			return fmt.Errorf("CREDENTIALS_MASTER_KEY must be 32 bytes hex-encoded (generate with: openssl rand -hex 32)")
		}
	}

	switch strings.ToLower(c.FlowMode) {
	case string(model.FlowModeGuided), string(model.FlowModeBulk):
	default:
		return fmt.Errorf("FLOW_MODE must be %q or %q", model.FlowModeGuided, model.FlowModeBulk)
	}

	if isProduction {
		if c.WebhookSecret == "" {
			log.Warn().Msg("WEBHOOK_SECRET is empty in production: webhook signature verification disabled")
		} else if err := validateSecret("WEBHOOK_SECRET", c.WebhookSecret); err != nil {
			return err
		}
		if strings.HasPrefix(c.RedisURL, "redis://") {
			log.Warn().Msg("REDIS_URL uses redis:// (not TLS) in production: consider using rediss://")
		}
		if c.CredentialsMasterKey == "" {
			log.Warn().Msg("CREDENTIALS_MASTER_KEY is empty in production: credentials will be read as plaintext JSON")
		}
	}

	return nil
}

func validateSecret(name, value string) error {
	if len(value) < 32 {
		return fmt.Errorf("%s must be at least 32 characters in production (generate with: openssl rand -base64 32)", name)
	}
	for _, weak := range knownWeakSecrets {
		if value == weak {
			return fmt.Errorf("%s is a known weak default; set a strong secret in production", name)
		}
	}
	return nil
}

func Load() (*Config, error) {
	// Merge a local .env when present; real environment variables win.
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file loaded")
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
