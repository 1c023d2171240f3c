// Package config provides unified configuration for the relay server.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (RELAY_ prefix)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import "time"

// Config holds all configuration for the relay server.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Adapters      []AdapterConfig     `yaml:"adapters"`
	Dispatch      DispatchConfig      `yaml:"dispatch"`
	Storage       StorageConfig       `yaml:"storage"`
	Auth          AuthConfig          `yaml:"auth"`
	Observability ObservabilityConfig `yaml:"observability"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         int           `yaml:"port"`          // default: 8080
	ReadTimeout  time.Duration `yaml:"read_timeout"`  // default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"` // default: 120s
}

// AdapterConfig describes one upstream provider adapter.
type AdapterConfig struct {
	// Name is the unique adapter identifier, used for pinning and metrics.
	Name string `yaml:"name"`

	// Type selects the adapter implementation:
	// "openai-compat", "sdwebui", or "pollinations".
	Type string `yaml:"type"`

	// Kind is "text" or "image". Defaults to "text" for openai-compat and
	// "image" for the image adapter types.
	Kind string `yaml:"kind"`

	BaseURL string `yaml:"base_url"`
	Path    string `yaml:"path"` // openai-compat completion path override

	APIKey     string `yaml:"api_key"`
	APIKeyFile string `yaml:"api_key_file"` // _file variant for api_key

	// RequiresCredential marks the adapter as unavailable when APIKey is
	// empty after loading.
	RequiresCredential bool `yaml:"requires_credential"`

	Model string `yaml:"model"`

	Priority   int           `yaml:"priority"`    // lower is tried first
	Timeout    time.Duration `yaml:"timeout"`     // default: 30s
	MaxRetries int           `yaml:"max_retries"` // default: 2

	// Streaming enables the native streaming path for openai-compat
	// adapters.
	Streaming bool `yaml:"streaming"`

	// RejectMarkup treats HTML-looking response bodies as malformed.
	RejectMarkup bool `yaml:"reject_markup"`

	// Image generation tuning (sdwebui only).
	Steps    int     `yaml:"steps"`     // default: 20
	CFGScale float64 `yaml:"cfg_scale"` // default: 7
}

// DispatchConfig tunes the cascade retry and streaming behavior.
type DispatchConfig struct {
	BackoffBase time.Duration `yaml:"backoff_base"` // default: 500ms
	BackoffMax  time.Duration `yaml:"backoff_max"`  // default: 8s
	RetryCap    int           `yaml:"retry_cap"`    // default: 3
	ChunkWords  int           `yaml:"chunk_words"`  // default: 3
	ChunkDelay  time.Duration `yaml:"chunk_delay"`  // default: 100ms
}

// StorageConfig holds conversation history settings.
type StorageConfig struct {
	Type     string         `yaml:"type"`     // "memory" or "postgres", default: "memory"
	MaxSize  int            `yaml:"max_size"` // for memory store, default: 1000 sessions
	Postgres PostgresConfig `yaml:"postgres"`
}

// PostgresConfig holds PostgreSQL-specific settings.
type PostgresConfig struct {
	DSN            string `yaml:"dsn"`
	DSNFile        string `yaml:"dsn_file"`         // _file variant for dsn
	MaxConns       int32  `yaml:"max_conns"`        // default: 25
	MigrateOnStart bool   `yaml:"migrate_on_start"` // default: false
}

// AuthConfig holds authentication settings.
type AuthConfig struct {
	Type string `yaml:"type"` // "none", "apikey", "jwt", default: "none"

	APIKeys []APIKeyConfig `yaml:"api_keys"` // entries for type=apikey

	JWTSecret     string `yaml:"jwt_secret"`      // HMAC secret for type=jwt
	JWTSecretFile string `yaml:"jwt_secret_file"` // _file variant for jwt_secret
}

// APIKeyConfig describes a single API key entry.
type APIKeyConfig struct {
	Key     string `yaml:"key"`
	KeyFile string `yaml:"key_file"` // _file variant for key
	Subject string `yaml:"subject"`
}

// ObservabilityConfig holds monitoring settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/metrics"
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error", default: "info"
	Format string `yaml:"format"` // "text" or "json", default: "json"
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 120 * time.Second,
		},
		Dispatch: DispatchConfig{
			BackoffBase: 500 * time.Millisecond,
			BackoffMax:  8 * time.Second,
			RetryCap:    3,
			ChunkWords:  3,
			ChunkDelay:  100 * time.Millisecond,
		},
		Storage: StorageConfig{
			Type:    "memory",
			MaxSize: 1000,
			Postgres: PostgresConfig{
				MaxConns: 25,
			},
		},
		Auth: AuthConfig{
			Type: "none",
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// ApplyAdapterDefaults fills per-adapter defaults that depend on the
// adapter type. Called by Load after all layers are merged.
func ApplyAdapterDefaults(a *AdapterConfig) {
	if a.Kind == "" {
		switch a.Type {
		case "sdwebui", "pollinations":
			a.Kind = "image"
		default:
			a.Kind = "text"
		}
	}
	if a.Timeout == 0 {
		a.Timeout = 30 * time.Second
	}
	if a.MaxRetries == 0 {
		a.MaxRetries = 2
	}
	if a.Type == "sdwebui" {
		if a.Steps == 0 {
			a.Steps = 20
		}
		if a.CFGScale == 0 {
			a.CFGScale = 7
		}
	}
}
