package main

import (
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"

	"recibo/internal/config"
	"recibo/internal/logger"
)

func TestBreakerConfigUsesConfiguredThresholds(t *testing.T) {
	app := NewApp(&config.Config{
		CircuitBreaker: config.CircuitBreakerConfig{
			Enabled:        true,
			MaxRequests:    5,
			IntervalSec:    30,
			TimeoutSec:     45,
			FailureRatio:   0.8,
			MinimumRequest: 10,
		},
	}, logger.NopLogger())

	cfg := app.breakerConfig()

	assert.Equal(t, "oracle", cfg.Name)
	assert.Equal(t, uint32(5), cfg.MaxRequests)
	assert.Equal(t, 30*time.Second, cfg.Interval)
	assert.Equal(t, 45*time.Second, cfg.Timeout)

	// Below the minimum request count the breaker never trips, whatever the
	// failure ratio.
	assert.False(t, cfg.ReadyToTrip(gobreaker.Counts{Requests: 9, TotalFailures: 9}))
	// At the minimum, the configured ratio decides.
	assert.False(t, cfg.ReadyToTrip(gobreaker.Counts{Requests: 10, TotalFailures: 7}))
	assert.True(t, cfg.ReadyToTrip(gobreaker.Counts{Requests: 10, TotalFailures: 8}))
}

func TestBreakerConfigDefaults(t *testing.T) {
	app := NewApp(&config.Config{
		CircuitBreaker: config.CircuitBreakerConfig{Enabled: true},
	}, logger.NopLogger())

	cfg := app.breakerConfig()

	assert.False(t, cfg.ReadyToTrip(gobreaker.Counts{Requests: 2, TotalFailures: 2}))
	assert.True(t, cfg.ReadyToTrip(gobreaker.Counts{Requests: 4, TotalFailures: 2}))
	assert.False(t, cfg.ReadyToTrip(gobreaker.Counts{Requests: 4, TotalFailures: 1}))
}
