package main

import (
	"log/slog"
	"time"

	"github.com/fastprodman/referearn/internal/config"
)

type apiConfig struct {
	Port            uint16        `env:"APP_PORT" envDefault:"8080"`
	LogLevel        slog.Level    `env:"APP_LOG_LEVEL" envDefault:"INFO"`
	ShutdownTimeout time.Duration `env:"APP_SHUTDOWN_TIMEOUT" envDefault:"15s"`

	// OwnerID identifies the admin account; there is no default on purpose.
	OwnerID string `env:"APP_OWNER_ID"`

	// RequiredChannels is surfaced on /gate for the external membership check.
	RequiredChannels []string `env:"APP_REQUIRED_CHANNELS" envDefault:""`

	StoreBackend string `env:"STORE_BACKEND" envDefault:"bolt"`
	StorePath    string `env:"STORE_PATH" envDefault:"accounts.db"`

	// Empty AMQP_URL switches withdrawal events to log-only publishing.
	AMQPURL      string `env:"AMQP_URL" envDefault:""`
	AMQPExchange string `env:"AMQP_EXCHANGE" envDefault:"referearn.events"`

	Postgres config.PostgresConfig
	Rewards  config.RewardsConfig
}
