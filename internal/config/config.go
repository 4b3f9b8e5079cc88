package config

import "time"

type PostgresConfig struct {
	DSN             string        `env:"PG_DSN" envDefault:""`
	MaxOpenConns    int           `env:"PG_MAX_OPEN_CONNS" envDefault:"10"`
	MaxIdleConns    int           `env:"PG_MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxIdleTime time.Duration `env:"PG_CONN_MAX_IDLE_TIME" envDefault:"5m"`
	ConnMaxLifetime time.Duration `env:"PG_CONN_MAX_LIFETIME" envDefault:"30m"`
}

// RewardsConfig carries the reward constants. They are fixed at startup; there
// is no hot reload.
type RewardsConfig struct {
	ReferralReward          int64 `env:"REFERRAL_REWARD" envDefault:"10"`
	ReferralBonus           int64 `env:"REFERRAL_BONUS" envDefault:"5"`
	ConversionRate          int64 `env:"CONVERSION_RATE" envDefault:"10"`
	DailyBonus              int64 `env:"DAILY_BONUS" envDefault:"5"`
	MinWithdrawalMultiplier int64 `env:"MIN_WITHDRAWAL_MULTIPLIER" envDefault:"10"`
}
