// Package config loads server configuration from the environment.
package config

import (
	"context"
	"fmt"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Port          int    `env:"ECHO_PORT,default=4444"`
	MaxClients    int    `env:"ECHO_MAX_CLIENTS,default=32"`
	DBPath        string `env:"ECHO_DB_PATH,default=echochamber.db"`
	ChannelName   string `env:"ECHO_CHANNEL,default=Default"`
	ControlSocket string `env:"ECHO_CONTROL_SOCKET,default=/tmp/echochamber.sock"`
}

func Load(ctx context.Context) (Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing env vars: %w", err)
	}
	return cfg, nil
}
