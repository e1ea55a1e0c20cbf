package config

import (
	"fmt"
	"time"
)

const (
	DatabaseDriverPostgres = "postgres"
	DatabaseDriverSQLite   = "sqlite"
)

type Config struct {
	Env                      string
	HTTPAddr                 string
	DatabaseDriver           string
	DatabaseURL              string
	JWTSecret                string
	WSAllowedOrigins         []string
	LiveSendBuffer           int
	ShutdownTimeoutSec       int
	SessionWebhookURL        string
	DiscordToken             string
	DiscordAnnounceChannelID string
}

func (c *Config) Validate() error {
	for _, req := range c.requiredFieldChecks() {
		if req.value == "" {
			return fmt.Errorf("%s is required", req.name)
		}
	}
	switch c.DatabaseDriver {
	case DatabaseDriverPostgres, DatabaseDriverSQLite:
	default:
		return fmt.Errorf("DATABASE_DRIVER must be %q or %q, got %q", DatabaseDriverPostgres, DatabaseDriverSQLite, c.DatabaseDriver)
	}
	if len(c.JWTSecret) < 16 {
		return fmt.Errorf("JWT_SECRET must be at least 16 bytes")
	}
	if c.DiscordToken != "" && c.DiscordAnnounceChannelID == "" {
		return fmt.Errorf("DISCORD_ANNOUNCE_CHANNEL_ID is required when DISCORD_TOKEN is set")
	}
	if c.LiveSendBuffer <= 0 {
		return fmt.Errorf("LIVE_SEND_BUFFER must be positive, got %d", c.LiveSendBuffer)
	}
	if c.ShutdownTimeoutSec <= 0 {
		return fmt.Errorf("SHUTDOWN_TIMEOUT_SEC must be positive, got %d", c.ShutdownTimeoutSec)
	}
	return nil
}

type requiredEnvField struct {
	name  string
	value string
}

func (c *Config) requiredFieldChecks() []requiredEnvField {
	return []requiredEnvField{
		{name: "HTTP_ADDR", value: c.HTTPAddr},
		{name: "DATABASE_DRIVER", value: c.DatabaseDriver},
		{name: "DATABASE_URL", value: c.DatabaseURL},
		{name: "JWT_SECRET", value: c.JWTSecret},
	}
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSec) * time.Second
}

func (c *Config) DiscordEnabled() bool {
	return c.DiscordToken != ""
}
