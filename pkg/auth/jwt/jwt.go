// Package jwt provides a JWT authenticator that validates HMAC-signed
// bearer tokens against a shared secret.
//
// It supports configurable issuer, audience, and subject claim extraction.
package jwt

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/booomerangs/relay/pkg/auth"
)

// Config holds the JWT authenticator configuration.
type Config struct {
	// Secret is the shared HMAC signing secret. Required.
	Secret string

	// Issuer is the expected JWT issuer (iss claim). If empty, issuer is
	// not validated.
	Issuer string

	// Audience is the expected JWT audience (aud claim). If empty,
	// audience is not validated.
	Audience string

	// UserClaim is the JWT claim used as the identity subject. Default: "sub".
	UserClaim string
}

func (c *Config) applyDefaults() {
	if c.UserClaim == "" {
		c.UserClaim = "sub"
	}
}

// Authenticator validates HMAC-signed JWT bearer tokens.
type Authenticator struct {
	config Config
	secret []byte
}

// New creates a JWT authenticator with the given configuration.
func New(cfg Config) *Authenticator {
	cfg.applyDefaults()
	return &Authenticator{
		config: cfg,
		secret: []byte(cfg.Secret),
	}
}

// Authenticate extracts a bearer token from the Authorization header,
// validates it as a JWT, and returns an identity on success.
//
// Decision outcomes:
//   - Abstain: no Authorization header or not a Bearer scheme
//   - No: bearer token present but invalid (expired, wrong issuer, bad signature)
//   - Yes: valid JWT with populated Identity
func (a *Authenticator) Authenticate(_ context.Context, r *http.Request) auth.Result {
	header := r.Header.Get("Authorization")
	if header == "" {
		return auth.Result{Decision: auth.Abstain}
	}

	if !strings.HasPrefix(header, "Bearer ") {
		return auth.Result{Decision: auth.Abstain}
	}

	tokenStr := strings.TrimPrefix(header, "Bearer ")
	if tokenStr == "" {
		return auth.Result{
			Decision: auth.No,
			Err:      fmt.Errorf("empty bearer token"),
		}
	}

	token, err := jwtlib.Parse(tokenStr, func(token *jwtlib.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	}, a.parserOptions()...)
	if err != nil {
		slog.Debug("JWT validation failed", "error", err)
		return auth.Result{
			Decision: auth.No,
			Err:      fmt.Errorf("invalid JWT: %w", err),
		}
	}

	claims, ok := token.Claims.(jwtlib.MapClaims)
	if !ok || !token.Valid {
		return auth.Result{
			Decision: auth.No,
			Err:      fmt.Errorf("invalid JWT claims"),
		}
	}

	subject := claimString(claims, a.config.UserClaim)
	if subject == "" {
		return auth.Result{
			Decision: auth.No,
			Err:      fmt.Errorf("JWT missing %q claim", a.config.UserClaim),
		}
	}

	return auth.Result{
		Decision: auth.Yes,
		Identity: &auth.Identity{Subject: subject},
	}
}

// parserOptions builds JWT parser options based on the configuration.
func (a *Authenticator) parserOptions() []jwtlib.ParserOption {
	opts := []jwtlib.ParserOption{
		jwtlib.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
	}

	if a.config.Issuer != "" {
		opts = append(opts, jwtlib.WithIssuer(a.config.Issuer))
	}

	if a.config.Audience != "" {
		opts = append(opts, jwtlib.WithAudience(a.config.Audience))
	}

	return opts
}

// claimString extracts a string value from JWT claims.
// Returns empty string if the claim is missing or not a string.
func claimString(claims jwtlib.MapClaims, key string) string {
	val, ok := claims[key]
	if !ok {
		return ""
	}
	s, ok := val.(string)
	if !ok {
		return ""
	}
	return s
}
