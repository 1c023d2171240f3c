// Command server runs the relay gateway.
//
// Configuration is layered: built-in defaults, a YAML config file
// (-config flag, RELAY_CONFIG, ./config.yaml, or /etc/relay/config.yaml),
// then RELAY_* environment variable overrides. See pkg/config for the
// full list of settings.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/booomerangs/relay/pkg/adapter"
	"github.com/booomerangs/relay/pkg/adapter/openaicompat"
	"github.com/booomerangs/relay/pkg/adapter/pollinations"
	"github.com/booomerangs/relay/pkg/adapter/sdwebui"
	"github.com/booomerangs/relay/pkg/auth"
	"github.com/booomerangs/relay/pkg/auth/apikey"
	authjwt "github.com/booomerangs/relay/pkg/auth/jwt"
	"github.com/booomerangs/relay/pkg/config"
	"github.com/booomerangs/relay/pkg/dispatch"
	"github.com/booomerangs/relay/pkg/fallback"
	"github.com/booomerangs/relay/pkg/storage/memory"
	"github.com/booomerangs/relay/pkg/storage/postgres"
	"github.com/booomerangs/relay/pkg/transport"
	transporthttp "github.com/booomerangs/relay/pkg/transport/http"
)

func main() {
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := buildLogger(cfg.Logging)
	slog.SetDefault(logger)

	registry, err := buildRegistry(cfg.Adapters, logger)
	if err != nil {
		return fmt.Errorf("building adapter registry: %w", err)
	}
	defer registry.Close()

	store, err := buildStore(cfg.Storage, logger)
	if err != nil {
		return fmt.Errorf("creating history store: %w", err)
	}
	if store != nil {
		defer store.Close()
	}

	dispatcher := dispatch.New(registry, fallback.New(), dispatch.Config{
		BackoffBase: cfg.Dispatch.BackoffBase,
		BackoffMax:  cfg.Dispatch.BackoffMax,
		RetryCap:    cfg.Dispatch.RetryCap,
		ChunkWords:  cfg.Dispatch.ChunkWords,
		ChunkDelay:  cfg.Dispatch.ChunkDelay,
	}, logger)

	opts := []transporthttp.ServerOption{
		transporthttp.WithAddr(fmt.Sprintf(":%d", cfg.Server.Port)),
		transporthttp.WithLogger(logger),
	}
	if !cfg.Observability.Metrics.Enabled {
		opts = append(opts, transporthttp.WithMetricsPath(""))
	} else if cfg.Observability.Metrics.Path != "" {
		opts = append(opts, transporthttp.WithMetricsPath(cfg.Observability.Metrics.Path))
	}
	if chain := buildAuthChain(cfg.Auth); chain != nil {
		opts = append(opts, transporthttp.WithAuthChain(chain))
		logger.Info("authentication enabled", "type", cfg.Auth.Type)
	}

	srv := transporthttp.NewServer(dispatcher, store, registry, opts...)

	return srv.ListenAndServe()
}

// buildLogger constructs the slog logger from the logging section.
func buildLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

// buildRegistry instantiates every configured adapter. An adapter that
// requires a credential but has none is registered as unavailable so it
// shows up in /providers without ever being attempted.
func buildRegistry(configs []config.AdapterConfig, logger *slog.Logger) (*adapter.Registry, error) {
	var entries []adapter.Entry

	for _, ac := range configs {
		profile := adapter.Profile{
			Priority:           ac.Priority,
			Timeout:            ac.Timeout,
			MaxRetries:         ac.MaxRetries,
			RequiresCredential: ac.RequiresCredential,
		}

		var (
			a   adapter.Adapter
			err error
		)
		switch ac.Type {
		case "openai-compat":
			a, err = openaicompat.New(openaicompat.Config{
				Name:         ac.Name,
				BaseURL:      ac.BaseURL,
				Path:         ac.Path,
				APIKey:       ac.APIKey,
				Model:        ac.Model,
				Profile:      profile,
				Streaming:    ac.Streaming,
				RejectMarkup: ac.RejectMarkup,
			})
		case "sdwebui":
			a, err = sdwebui.New(sdwebui.Config{
				Name:     ac.Name,
				BaseURL:  ac.BaseURL,
				Profile:  profile,
				Steps:    ac.Steps,
				CFGScale: ac.CFGScale,
			})
		case "pollinations":
			a = pollinations.New(pollinations.Config{
				Name:    ac.Name,
				BaseURL: ac.BaseURL,
				Profile: profile,
			})
		default:
			err = fmt.Errorf("unknown adapter type %q", ac.Type)
		}
		if err != nil {
			return nil, fmt.Errorf("adapter %q: %w", ac.Name, err)
		}

		available := !ac.RequiresCredential || ac.APIKey != ""
		if !available {
			logger.Warn("adapter registered without credential, will be skipped",
				"adapter", ac.Name)
		}

		entries = append(entries, adapter.Entry{Adapter: a, Available: available})
		logger.Info("adapter registered",
			"adapter", ac.Name, "type", ac.Type, "kind", ac.Kind,
			"priority", ac.Priority, "available", available)
	}

	return adapter.NewRegistry(entries)
}

// buildStore constructs the history store, or nil when disabled.
func buildStore(cfg config.StorageConfig, logger *slog.Logger) (transport.HistoryStore, error) {
	switch cfg.Type {
	case "none":
		logger.Info("history disabled")
		return nil, nil
	case "postgres":
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		store, err := postgres.New(ctx, postgres.Config{
			DSN:            cfg.Postgres.DSN,
			MaxConns:       cfg.Postgres.MaxConns,
			MigrateOnStart: cfg.Postgres.MigrateOnStart,
		})
		if err != nil {
			return nil, err
		}
		logger.Info("history enabled", "type", "postgres")
		return store, nil
	default:
		logger.Info("history enabled", "type", "memory", "max_sessions", cfg.MaxSize)
		return memory.New(cfg.MaxSize), nil
	}
}

// buildAuthChain constructs the authentication chain, or nil for open
// deployments.
func buildAuthChain(cfg config.AuthConfig) *auth.Chain {
	switch cfg.Type {
	case "apikey":
		entries := make([]apikey.RawKeyEntry, 0, len(cfg.APIKeys))
		for _, k := range cfg.APIKeys {
			subject := k.Subject
			if subject == "" {
				subject = "apikey-user"
			}
			entries = append(entries, apikey.RawKeyEntry{
				Key:      k.Key,
				Identity: auth.Identity{Subject: subject},
			})
		}
		return &auth.Chain{
			Authenticators:  []auth.Authenticator{apikey.New(entries)},
			DefaultDecision: auth.No,
		}
	case "jwt":
		return &auth.Chain{
			Authenticators: []auth.Authenticator{
				authjwt.New(authjwt.Config{Secret: cfg.JWTSecret}),
			},
			DefaultDecision: auth.No,
		}
	default:
		return nil
	}
}
