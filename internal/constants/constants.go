package constants

import "time"

const (
	// DefaultSendTimeout bounds outbound gateway text messages.
	DefaultSendTimeout = 15 * time.Second

	// DefaultFetchTimeout bounds media downloads (URL or gateway id).
	DefaultFetchTimeout = 20 * time.Second

	// DefaultOracleTimeout bounds the vision oracle round trip.
	DefaultOracleTimeout = 60 * time.Second

	// DefaultEventTimeout bounds one full reconciliation pipeline.
	DefaultEventTimeout = 2 * time.Minute
)

const (
	DefaultOracleModel     = "gpt-4o"
	DefaultOracleMaxTokens = 250
)

const (
	DefaultMaxInFlight = 16
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	HTTPStatusOKMin = 200
	HTTPStatusOKMax = 300
)

const (
	CommandStatusList = "lista"
	CommandReset      = "!resetar"
)
