package config

import (
	"errors"
	"fmt"
)

// Validate checks the configuration for required fields and valid values.
// Returns an error with a descriptive field path on failure.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 {
		errs = append(errs, fmt.Errorf("server.port must be > 0, got %d", c.Server.Port))
	}

	seen := make(map[string]bool, len(c.Adapters))
	for i, a := range c.Adapters {
		if a.Name == "" {
			errs = append(errs, fmt.Errorf("adapters[%d].name is required", i))
			continue
		}
		if seen[a.Name] {
			errs = append(errs, fmt.Errorf("adapters[%d].name %q is duplicated", i, a.Name))
		}
		seen[a.Name] = true

		switch a.Type {
		case "openai-compat", "sdwebui", "pollinations":
			// valid
		default:
			errs = append(errs, fmt.Errorf("adapters[%d].type must be \"openai-compat\", \"sdwebui\", or \"pollinations\", got %q", i, a.Type))
		}

		switch a.Kind {
		case "text", "image", "":
			// valid
		default:
			errs = append(errs, fmt.Errorf("adapters[%d].kind must be \"text\" or \"image\", got %q", i, a.Kind))
		}

		// Pollinations builds URLs locally and has a built-in default base.
		if a.BaseURL == "" && a.Type != "pollinations" {
			errs = append(errs, fmt.Errorf("adapters[%d].base_url is required for type %q", i, a.Type))
		}

		if a.Timeout < 0 {
			errs = append(errs, fmt.Errorf("adapters[%d].timeout must be >= 0", i))
		}
		if a.MaxRetries < 0 {
			errs = append(errs, fmt.Errorf("adapters[%d].max_retries must be >= 0", i))
		}
	}

	switch c.Storage.Type {
	case "memory", "postgres":
		// valid
	default:
		errs = append(errs, fmt.Errorf("storage.type must be \"memory\" or \"postgres\", got %q", c.Storage.Type))
	}

	if c.Storage.Type == "postgres" {
		if c.Storage.Postgres.DSN == "" && c.Storage.Postgres.DSNFile == "" {
			errs = append(errs, fmt.Errorf("storage.postgres.dsn or storage.postgres.dsn_file is required when storage.type is \"postgres\""))
		}
	}

	switch c.Auth.Type {
	case "none", "apikey", "jwt":
		// valid
	default:
		errs = append(errs, fmt.Errorf("auth.type must be \"none\", \"apikey\", or \"jwt\", got %q", c.Auth.Type))
	}

	if c.Auth.Type == "apikey" && len(c.Auth.APIKeys) == 0 {
		errs = append(errs, fmt.Errorf("auth.api_keys must not be empty when auth.type is \"apikey\""))
	}
	if c.Auth.Type == "jwt" && c.Auth.JWTSecret == "" && c.Auth.JWTSecretFile == "" {
		errs = append(errs, fmt.Errorf("auth.jwt_secret or auth.jwt_secret_file is required when auth.type is \"jwt\""))
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error", "":
		// valid
	default:
		errs = append(errs, fmt.Errorf("logging.level must be \"debug\", \"info\", \"warn\", or \"error\", got %q", c.Logging.Level))
	}

	switch c.Logging.Format {
	case "text", "json", "":
		// valid
	default:
		errs = append(errs, fmt.Errorf("logging.format must be \"text\" or \"json\", got %q", c.Logging.Format))
	}

	return errors.Join(errs...)
}
