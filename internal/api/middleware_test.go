package api

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testKeyID = "test-key"

var (
	signingKeyOnce sync.Once
	signingKey     *rsa.PrivateKey
)

func testSigningKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	signingKeyOnce.Do(func() {
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			panic(err)
		}
		signingKey = key
	})
	return signingKey
}

func testAuthenticator(t *testing.T) *Authenticator {
	key := testSigningKey(t)
	return NewAuthenticator(func(kid string) (interface{}, error) {
		if kid != testKeyID {
			return nil, fmt.Errorf("unknown kid %s", kid)
		}
		return &key.PublicKey, nil
	}, "moderator")
}

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = testKeyID
	signed, err := token.SignedString(testSigningKey(t))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func bearer(t *testing.T, sub string, extra jwt.MapClaims) string {
	claims := jwt.MapClaims{"sub": sub, "exp": time.Now().Add(time.Hour).Unix()}
	for k, v := range extra {
		claims[k] = v
	}
	return "Bearer " + signToken(t, claims)
}

func actorEcho() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := ActorFromContext(r.Context())
		if !ok {
			w.Write([]byte("anonymous"))
			return
		}
		fmt.Fprintf(w, "%s:%t", actor.UserID, actor.Moderator)
	})
}

func TestAuthenticatorRequired(t *testing.T) {
	auth := testAuthenticator(t)
	hmacToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "user_1"}).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("failed to sign hmac token: %v", err)
	}

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantBody   string
	}{
		{name: "missing header", header: "", wantStatus: http.StatusUnauthorized},
		{name: "not a bearer token", header: "Token abc", wantStatus: http.StatusUnauthorized},
		{name: "host token", header: bearer(t, "user_1", nil), wantStatus: http.StatusOK, wantBody: "user_1:false"},
		{name: "moderator via role", header: bearer(t, "user_2", jwt.MapClaims{"role": "moderator"}), wantStatus: http.StatusOK, wantBody: "user_2:true"},
		{name: "moderator via roles list", header: bearer(t, "user_3", jwt.MapClaims{"roles": []string{"host", "moderator"}}), wantStatus: http.StatusOK, wantBody: "user_3:true"},
		{name: "moderator via metadata", header: bearer(t, "user_4", jwt.MapClaims{"metadata": map[string]string{"role": "moderator"}}), wantStatus: http.StatusOK, wantBody: "user_4:true"},
		{name: "missing subject", header: bearer(t, "", nil), wantStatus: http.StatusUnauthorized},
		{name: "expired token", header: "Bearer " + signToken(t, jwt.MapClaims{"sub": "user_1", "exp": time.Now().Add(-time.Hour).Unix()}), wantStatus: http.StatusUnauthorized},
		{name: "hmac signed token", header: "Bearer " + hmacToken, wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			auth.Required(actorEcho()).ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d (%s)", tt.wantStatus, rec.Code, rec.Body.String())
			}
			if tt.wantBody != "" && rec.Body.String() != tt.wantBody {
				t.Fatalf("expected body %q, got %q", tt.wantBody, rec.Body.String())
			}
		})
	}
}

func TestAuthenticatorOptional(t *testing.T) {
	auth := testAuthenticator(t)

	rec := httptest.NewRecorder()
	auth.Optional(actorEcho()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "anonymous" {
		t.Fatalf("expected anonymous pass-through, got %d %q", rec.Code, rec.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rec = httptest.NewRecorder()
	auth.Optional(actorEcho()).ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected a bad token to be rejected, got %d", rec.Code)
	}
}

func TestClerkAuthenticatorFetchesJWKS(t *testing.T) {
	key := testSigningKey(t)
	var fetches int
	var mu sync.Mutex
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		fetches++
		mu.Unlock()
		json.NewEncoder(w).Encode(map[string]interface{}{
			"keys": []map[string]string{{
				"kid": testKeyID,
				"kty": "RSA",
				"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
			}},
		})
	}))
	defer server.Close()

	auth := NewClerkAuthenticator(server.URL, "moderator")
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", bearer(t, "user_1", nil))
		rec := httptest.NewRecorder()
		auth.Required(actorEcho()).ServeHTTP(rec, req)
		if rec.Code != http.StatusOK || rec.Body.String() != "user_1:false" {
			t.Fatalf("expected verified host, got %d %q", rec.Code, rec.Body.String())
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if fetches != 1 {
		t.Fatalf("expected JWKS to be fetched once and cached, got %d fetches", fetches)
	}
}

func TestParseRSAPublicKey(t *testing.T) {
	key := testSigningKey(t)
	pub, err := parseRSAPublicKey(
		base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
		base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pub.N.Cmp(key.N) != 0 || pub.E != key.E {
		t.Fatal("expected parsed key to match the signing key")
	}

	if _, err := parseRSAPublicKey("***", "AQAB"); err == nil {
		t.Fatal("expected invalid modulus to be rejected")
	}
}
