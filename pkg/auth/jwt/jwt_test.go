package jwt

import (
	"context"
	"net/http"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/booomerangs/relay/pkg/auth"
)

const testSecret = "test-signing-secret"

func signToken(t *testing.T, secret string, claims jwtlib.MapClaims) string {
	t.Helper()
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return signed
}

func requestWithToken(token string) *http.Request {
	r, _ := http.NewRequest("GET", "/", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	return r
}

func TestValidToken(t *testing.T) {
	a := New(Config{Secret: testSecret})
	token := signToken(t, testSecret, jwtlib.MapClaims{
		"sub": "alice",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	result := a.Authenticate(context.Background(), requestWithToken(token))

	if result.Decision != auth.Yes {
		t.Fatalf("Decision = %d, want Yes (err: %v)", result.Decision, result.Err)
	}
	if result.Identity.Subject != "alice" {
		t.Errorf("Subject = %q, want %q", result.Identity.Subject, "alice")
	}
}

func TestWrongSecret(t *testing.T) {
	a := New(Config{Secret: testSecret})
	token := signToken(t, "other-secret", jwtlib.MapClaims{"sub": "alice"})

	result := a.Authenticate(context.Background(), requestWithToken(token))

	if result.Decision != auth.No {
		t.Fatalf("Decision = %d, want No", result.Decision)
	}
}

func TestExpiredToken(t *testing.T) {
	a := New(Config{Secret: testSecret})
	token := signToken(t, testSecret, jwtlib.MapClaims{
		"sub": "alice",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})

	result := a.Authenticate(context.Background(), requestWithToken(token))

	if result.Decision != auth.No {
		t.Fatalf("Decision = %d, want No (expired)", result.Decision)
	}
}

func TestMissingSubject(t *testing.T) {
	a := New(Config{Secret: testSecret})
	token := signToken(t, testSecret, jwtlib.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	result := a.Authenticate(context.Background(), requestWithToken(token))

	if result.Decision != auth.No {
		t.Fatalf("Decision = %d, want No (no subject)", result.Decision)
	}
}

func TestIssuerValidation(t *testing.T) {
	a := New(Config{Secret: testSecret, Issuer: "relay"})

	good := signToken(t, testSecret, jwtlib.MapClaims{"sub": "alice", "iss": "relay"})
	if result := a.Authenticate(context.Background(), requestWithToken(good)); result.Decision != auth.Yes {
		t.Errorf("matching issuer: Decision = %d, want Yes (err: %v)", result.Decision, result.Err)
	}

	bad := signToken(t, testSecret, jwtlib.MapClaims{"sub": "alice", "iss": "someone-else"})
	if result := a.Authenticate(context.Background(), requestWithToken(bad)); result.Decision != auth.No {
		t.Errorf("wrong issuer: Decision = %d, want No", result.Decision)
	}
}

func TestCustomUserClaim(t *testing.T) {
	a := New(Config{Secret: testSecret, UserClaim: "username"})
	token := signToken(t, testSecret, jwtlib.MapClaims{"username": "bob"})

	result := a.Authenticate(context.Background(), requestWithToken(token))

	if result.Decision != auth.Yes {
		t.Fatalf("Decision = %d, want Yes (err: %v)", result.Decision, result.Err)
	}
	if result.Identity.Subject != "bob" {
		t.Errorf("Subject = %q, want %q", result.Identity.Subject, "bob")
	}
}

func TestNoHeaderAbstains(t *testing.T) {
	a := New(Config{Secret: testSecret})
	r, _ := http.NewRequest("GET", "/", nil)

	result := a.Authenticate(context.Background(), r)

	if result.Decision != auth.Abstain {
		t.Fatalf("Decision = %d, want Abstain", result.Decision)
	}
}
