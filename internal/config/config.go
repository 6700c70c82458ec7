package config

import (
	"time"
)

type Config struct {
	Server         ServerConfig
	Gateway        GatewayConfig
	Oracle         OracleConfig
	Ledger         LedgerConfig
	Admin          AdminConfig
	Pipeline       PipelineConfig
	RateLimit      RateLimitConfig
	CircuitBreaker CircuitBreakerConfig
	Logging        LoggingConfig
}

type ServerConfig struct {
	Port                int           `mapstructure:"port"`
	ReadTimeoutSeconds  time.Duration `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds time.Duration `mapstructure:"write_timeout_seconds"`
}

// GatewayConfig points at the messaging gateway used for outbound texts and
// authenticated media downloads.
type GatewayConfig struct {
	BaseURL             string `mapstructure:"base_url"`
	Instance            string `mapstructure:"instance"`
	Token               string `mapstructure:"token"`
	SendTimeoutSeconds  int    `mapstructure:"send_timeout_seconds"`
	FetchTimeoutSeconds int    `mapstructure:"fetch_timeout_seconds"`
}

type OracleConfig struct {
	APIKey         string `mapstructure:"api_key"`
	Model          string `mapstructure:"model"`
	ExpectedAmount string `mapstructure:"expected_amount"`
	MaxTokens      int    `mapstructure:"max_tokens"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

type LedgerConfig struct {
	Path  string      `mapstructure:"path"`
	Retry RetryConfig `mapstructure:"retry"`
}

type RetryConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	Multiplier      float64       `mapstructure:"multiplier"`
	MaxElapsedTime  time.Duration `mapstructure:"max_elapsed_time"`
}

type AdminConfig struct {
	// Number is compared against the digits of the sender id, so any
	// channel suffix ("@c.us" and the like) is ignored.
	Number string `mapstructure:"number"`
}

type PipelineConfig struct {
	MaxInFlight         int64 `mapstructure:"max_in_flight"`
	EventTimeoutSeconds int   `mapstructure:"event_timeout_seconds"`
}

type RateLimitConfig struct {
	Enabled         bool    `mapstructure:"enabled"`
	RPS             float64 `mapstructure:"rps"`
	Burst           int     `mapstructure:"burst"`
	CleanupInterval int     `mapstructure:"cleanup_interval"`
	MaxAge          int     `mapstructure:"max_age"`
}

type CircuitBreakerConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	MaxRequests    uint32  `mapstructure:"max_requests"`
	IntervalSec    int     `mapstructure:"interval_seconds"`
	TimeoutSec     int     `mapstructure:"timeout_seconds"`
	FailureRatio   float64 `mapstructure:"failure_ratio"`
	MinimumRequest uint32  `mapstructure:"minimum_requests"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}
