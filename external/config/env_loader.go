package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	internalconfig "github.com/foxseedlab/tablesession/internal/config"
)

type envConfig struct {
	Env                      string   `env:"ENV" envDefault:"production"`
	HTTPAddr                 string   `env:"HTTP_ADDR" envDefault:":8080"`
	DatabaseDriver           string   `env:"DATABASE_DRIVER" envDefault:"postgres"`
	DatabaseURL              string   `env:"DATABASE_URL,required"`
	JWTSecret                string   `env:"JWT_SECRET,required"`
	WSAllowedOrigins         []string `env:"WS_ALLOWED_ORIGINS" envSeparator:","`
	LiveSendBuffer           int      `env:"LIVE_SEND_BUFFER" envDefault:"32"`
	ShutdownTimeoutSec       int      `env:"SHUTDOWN_TIMEOUT_SEC" envDefault:"10"`
	SessionWebhookURL        string   `env:"SESSION_WEBHOOK_URL"`
	DiscordToken             string   `env:"DISCORD_TOKEN"`
	DiscordAnnounceChannelID string   `env:"DISCORD_ANNOUNCE_CHANNEL_ID"`
}

func Load() (*internalconfig.Config, error) {
	var raw envConfig
	if err := env.Parse(&raw); err != nil {
		return nil, fmt.Errorf("environment variables are invalid or missing: %w", err)
	}

	cfg := &internalconfig.Config{
		Env:                      raw.Env,
		HTTPAddr:                 raw.HTTPAddr,
		DatabaseDriver:           raw.DatabaseDriver,
		DatabaseURL:              raw.DatabaseURL,
		JWTSecret:                raw.JWTSecret,
		WSAllowedOrigins:         raw.WSAllowedOrigins,
		LiveSendBuffer:           raw.LiveSendBuffer,
		ShutdownTimeoutSec:       raw.ShutdownTimeoutSec,
		SessionWebhookURL:        raw.SessionWebhookURL,
		DiscordToken:             raw.DiscordToken,
		DiscordAnnounceChannelID: raw.DiscordAnnounceChannelID,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
