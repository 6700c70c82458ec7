package config

import (
	"fmt"
	"strings"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

func ValidateStatic(cfg *Config) error {
	var errs []error

	if err := validateServer(cfg.Server); err != nil {
		errs = append(errs, err)
	}

	if err := validateGateway(cfg.Gateway); err != nil {
		errs = append(errs, err)
	}

	if err := validateOracle(cfg.Oracle); err != nil {
		errs = append(errs, err)
	}

	if err := validateLedger(cfg.Ledger); err != nil {
		errs = append(errs, err)
	}

	if err := validateAdmin(cfg.Admin); err != nil {
		errs = append(errs, err)
	}

	if err := validatePipeline(cfg.Pipeline); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}

	return nil
}

func validateServer(cfg ServerConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	return nil
}

func validateGateway(cfg GatewayConfig) error {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return &ValidationError{
			Field:   "gateway.base_url",
			Message: "gateway base URL is required",
		}
	}

	if strings.TrimSpace(cfg.Instance) == "" {
		return &ValidationError{
			Field:   "gateway.instance",
			Message: "gateway instance is required",
		}
	}

	if strings.TrimSpace(cfg.Token) == "" {
		return &ValidationError{
			Field:   "gateway.token",
			Message: "gateway token is required",
		}
	}

	return nil
}

func validateOracle(cfg OracleConfig) error {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return &ValidationError{
			Field:   "oracle.api_key",
			Message: "oracle API key is required (set OPENAI_API_KEY)",
		}
	}

	if strings.TrimSpace(cfg.ExpectedAmount) == "" {
		return &ValidationError{
			Field:   "oracle.expected_amount",
			Message: "expected payment amount is required",
		}
	}

	return nil
}

func validateLedger(cfg LedgerConfig) error {
	if strings.TrimSpace(cfg.Path) == "" {
		return &ValidationError{
			Field:   "ledger.path",
			Message: "ledger file path is required",
		}
	}

	return nil
}

func validateAdmin(cfg AdminConfig) error {
	number := strings.TrimSpace(cfg.Number)
	if number == "" {
		return &ValidationError{
			Field:   "admin.number",
			Message: "admin number is required (set ADMIN_NUMBER)",
		}
	}

	// Only ASCII digits: the sender comparison strips everything else, so a
	// number that is not pure 0-9 could never match any sender.
	for _, r := range number {
		if r < '0' || r > '9' {
			return &ValidationError{
				Field:   "admin.number",
				Message: fmt.Sprintf("admin number must contain only digits 0-9, got %q", number),
			}
		}
	}

	return nil
}

func validatePipeline(cfg PipelineConfig) error {
	if cfg.MaxInFlight < 1 {
		return &ValidationError{
			Field:   "pipeline.max_in_flight",
			Message: fmt.Sprintf("max in-flight pipelines must be at least 1, got %d", cfg.MaxInFlight),
		}
	}

	return nil
}
