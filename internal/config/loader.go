package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"recibo/internal/constants"
)

func Load(configFile string) (*Config, error) {
	viper.Reset()

	viper.SetConfigType("yaml")
	viper.SetConfigFile(configFile)

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	bindEnvVariables()
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := ValidateStatic(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func bindEnvVariables() {
	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("server.read_timeout_seconds", "SERVER_READ_TIMEOUT_SECONDS")
	viper.BindEnv("server.write_timeout_seconds", "SERVER_WRITE_TIMEOUT_SECONDS")

	viper.BindEnv("gateway.base_url", "GATEWAY_BASE_URL")
	viper.BindEnv("gateway.instance", "GATEWAY_INSTANCE")
	viper.BindEnv("gateway.token", "GATEWAY_TOKEN")

	// The oracle key never lives in the yaml file.
	viper.BindEnv("oracle.api_key", "OPENAI_API_KEY")
	viper.BindEnv("oracle.model", "ORACLE_MODEL")
	viper.BindEnv("oracle.expected_amount", "ORACLE_EXPECTED_AMOUNT")

	viper.BindEnv("ledger.path", "LEDGER_PATH")

	viper.BindEnv("admin.number", "ADMIN_NUMBER")

	viper.BindEnv("logging.level", "LOGGING_LEVEL")
}

func setDefaults() {
	viper.SetDefault("oracle.model", constants.DefaultOracleModel)
	viper.SetDefault("oracle.max_tokens", constants.DefaultOracleMaxTokens)
	viper.SetDefault("oracle.timeout_seconds", int(constants.DefaultOracleTimeout.Seconds()))

	viper.SetDefault("gateway.send_timeout_seconds", int(constants.DefaultSendTimeout.Seconds()))
	viper.SetDefault("gateway.fetch_timeout_seconds", int(constants.DefaultFetchTimeout.Seconds()))

	viper.SetDefault("pipeline.max_in_flight", constants.DefaultMaxInFlight)
	viper.SetDefault("pipeline.event_timeout_seconds", int(constants.DefaultEventTimeout.Seconds()))

	viper.SetDefault("logging.level", "info")
}
