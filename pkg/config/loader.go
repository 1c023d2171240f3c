package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. YAML config file (explicit path, RELAY_CONFIG env, ./config.yaml, /etc/relay/config.yaml)
//  3. Environment variable overrides
//  4. File reference resolution (_file suffix)
//  5. Validation
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	for i := range cfg.Adapters {
		ApplyAdapterDefaults(&cfg.Adapters[i])
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// discoverConfigFile finds the config file path using the discovery order:
// 1. Explicit configPath argument
// 2. RELAY_CONFIG environment variable
// 3. ./config.yaml in the current directory
// 4. /etc/relay/config.yaml
//
// Returns empty string if no config file is found.
func discoverConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}

	if envPath := os.Getenv("RELAY_CONFIG"); envPath != "" {
		return envPath
	}

	candidates := []string{
		"config.yaml",
		"/etc/relay/config.yaml",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// loadYAMLFile reads and parses a YAML file into the Config struct.
// Fields not present in the YAML retain their current (default) values.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides maps environment variables to config fields.
//
// Flat overrides use the RELAY_ prefix (RELAY_PORT, RELAY_STORAGE, ...).
// Per-adapter credentials use RELAY_ADAPTER_<NAME>_API_KEY where <NAME> is
// the adapter name uppercased with dashes replaced by underscores.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RELAY_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("RELAY_STORAGE"); v != "" {
		cfg.Storage.Type = v
	}
	if v := os.Getenv("RELAY_STORAGE_SIZE"); v != "" {
		if size, err := strconv.Atoi(v); err == nil {
			cfg.Storage.MaxSize = size
		}
	}
	if v := os.Getenv("RELAY_POSTGRES_DSN"); v != "" {
		cfg.Storage.Postgres.DSN = v
	}
	if v := os.Getenv("RELAY_AUTH_TYPE"); v != "" {
		cfg.Auth.Type = v
	}
	if v := os.Getenv("RELAY_JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("RELAY_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("RELAY_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	for i := range cfg.Adapters {
		envName := adapterEnvName(cfg.Adapters[i].Name)
		if v := os.Getenv("RELAY_ADAPTER_" + envName + "_API_KEY"); v != "" {
			cfg.Adapters[i].APIKey = v
		}
		if v := os.Getenv("RELAY_ADAPTER_" + envName + "_BASE_URL"); v != "" {
			cfg.Adapters[i].BaseURL = v
		}
	}
}

// adapterEnvName converts an adapter name to its env var segment:
// "chat-free" becomes "CHAT_FREE".
func adapterEnvName(name string) string {
	return strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
}

// resolveFileReferences reads _file fields and populates the corresponding
// value fields. For each field ending in _file, if the value field is empty
// and the file field is set, the file is read, whitespace is trimmed, and
// the value field is populated.
func resolveFileReferences(cfg *Config) error {
	for i := range cfg.Adapters {
		if cfg.Adapters[i].APIKeyFile != "" && cfg.Adapters[i].APIKey == "" {
			val, err := readSecretFile(cfg.Adapters[i].APIKeyFile)
			if err != nil {
				return fmt.Errorf("adapters[%d].api_key_file: %w", i, err)
			}
			cfg.Adapters[i].APIKey = val
		}
	}

	if cfg.Storage.Postgres.DSNFile != "" && cfg.Storage.Postgres.DSN == "" {
		val, err := readSecretFile(cfg.Storage.Postgres.DSNFile)
		if err != nil {
			return fmt.Errorf("storage.postgres.dsn_file: %w", err)
		}
		cfg.Storage.Postgres.DSN = val
	}

	if cfg.Auth.JWTSecretFile != "" && cfg.Auth.JWTSecret == "" {
		val, err := readSecretFile(cfg.Auth.JWTSecretFile)
		if err != nil {
			return fmt.Errorf("auth.jwt_secret_file: %w", err)
		}
		cfg.Auth.JWTSecret = val
	}

	for i := range cfg.Auth.APIKeys {
		if cfg.Auth.APIKeys[i].KeyFile != "" && cfg.Auth.APIKeys[i].Key == "" {
			val, err := readSecretFile(cfg.Auth.APIKeys[i].KeyFile)
			if err != nil {
				return fmt.Errorf("auth.api_keys[%d].key_file: %w", i, err)
			}
			cfg.Auth.APIKeys[i].Key = val
		}
	}

	return nil
}

// readSecretFile reads a file and returns its content with surrounding whitespace trimmed.
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
