package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// RelayEnv locates the chat relay that fronts the platform.
type RelayEnv struct {
	URL     string        `env:"TASKMISTRESS_RELAY_URL"`
	Token   string        `env:"TASKMISTRESS_RELAY_TOKEN"`
	Timeout time.Duration `env:"TASKMISTRESS_RELAY_TIMEOUT" envDefault:"10s"`
}

// ServeEnv holds the secrets and addresses the serve command reads at startup.
type ServeEnv struct {
	Addr      string `env:"TASKMISTRESS_ADDR" envDefault:"127.0.0.1:8080"`
	BasePath  string `env:"TASKMISTRESS_BASE_PATH" envDefault:"/v0"`
	JWTSecret string `env:"TASKMISTRESS_JWT_SECRET"`
	Relay     RelayEnv
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
