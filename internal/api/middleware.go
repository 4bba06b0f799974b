/**
 * @description
 * Authentication middleware. Tokens are Clerk-issued RS256 JWTs verified against the JWKS
 * endpoint; the subject becomes the actor's user id and a role claim marks moderators.
 */

package api

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/IVSOLOV/car-connect-sub000/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

type actorContextKey string

const actorKey actorContextKey = "actor"

const jwksCacheTTL = 10 * time.Minute

// KeyLookup resolves the verification key for a token's kid.
type KeyLookup func(kid string) (interface{}, error)

// Authenticator validates bearer tokens and resolves the calling actor.
type Authenticator struct {
	keys          KeyLookup
	moderatorRole string
}

// NewClerkAuthenticator verifies tokens with keys fetched from jwksURL.
func NewClerkAuthenticator(jwksURL, moderatorRole string) *Authenticator {
	cache := &jwksCache{url: jwksURL, client: &http.Client{Timeout: 10 * time.Second}}
	return NewAuthenticator(cache.lookup, moderatorRole)
}

func NewAuthenticator(keys KeyLookup, moderatorRole string) *Authenticator {
	return &Authenticator{keys: keys, moderatorRole: strings.TrimSpace(moderatorRole)}
}

// Required rejects requests without a valid token.
func (a *Authenticator) Required(next http.Handler) http.Handler {
	return a.middleware(next, false)
}

// Optional lets anonymous requests through but still rejects a bad token.
func (a *Authenticator) Optional(next http.Handler) http.Handler {
	return a.middleware(next, true)
}

func (a *Authenticator) middleware(next http.Handler, optional bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			if optional {
				next.ServeHTTP(w, r)
				return
			}
			http.Error(w, "Authorization header required", http.StatusUnauthorized)
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			http.Error(w, "Invalid Authorization header format", http.StatusUnauthorized)
			return
		}

		actor, err := a.authenticate(tokenString)
		if err != nil {
			http.Error(w, fmt.Sprintf("Invalid token: %v", err), http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), actorKey, actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *Authenticator) authenticate(tokenString string) (domain.Actor, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		kid, ok := token.Header["kid"].(string)
		if !ok {
			return nil, fmt.Errorf("kid not found in token header")
		}
		return a.keys(kid)
	})
	if err != nil {
		return domain.Actor{}, err
	}
	if !token.Valid {
		return domain.Actor{}, fmt.Errorf("token is not valid")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return domain.Actor{}, fmt.Errorf("invalid token claims")
	}
	userID, _ := claims["sub"].(string)
	if userID == "" {
		return domain.Actor{}, fmt.Errorf("user id not found in token")
	}

	return domain.Actor{UserID: userID, Moderator: a.hasModeratorRole(claims)}, nil
}

// hasModeratorRole looks for the role in "role", "roles" and "metadata.role".
func (a *Authenticator) hasModeratorRole(claims jwt.MapClaims) bool {
	if a.moderatorRole == "" {
		return false
	}
	if role, ok := claims["role"].(string); ok && role == a.moderatorRole {
		return true
	}
	if roles, ok := claims["roles"].([]interface{}); ok {
		for _, r := range roles {
			if s, ok := r.(string); ok && s == a.moderatorRole {
				return true
			}
		}
	}
	if metadata, ok := claims["metadata"].(map[string]interface{}); ok {
		if role, ok := metadata["role"].(string); ok && role == a.moderatorRole {
			return true
		}
	}
	return false
}

// ActorFromContext returns the authenticated actor, if any.
func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorKey).(domain.Actor)
	return actor, ok
}

// jwksCache keeps the JWKS document in memory and refetches it when stale or on an unknown kid.
type jwksCache struct {
	url     string
	client  *http.Client
	mu      sync.Mutex
	keys    map[string]*rsa.PublicKey
	fetched time.Time
}

func (c *jwksCache) lookup(kid string) (interface{}, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if key, ok := c.keys[kid]; ok && time.Since(c.fetched) < jwksCacheTTL {
		return key, nil
	}
	if err := c.refresh(); err != nil {
		return nil, err
	}
	if key, ok := c.keys[kid]; ok {
		return key, nil
	}
	return nil, fmt.Errorf("key with kid %s not found", kid)
}

func (c *jwksCache) refresh() error {
	resp, err := c.client.Get(c.url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("jwks endpoint returned status %d", resp.StatusCode)
	}

	var jwks struct {
		Keys []struct {
			Kid string `json:"kid"`
			Kty string `json:"kty"`
			N   string `json:"n"`
			E   string `json:"e"`
		} `json:"keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&jwks); err != nil {
		return err
	}

	keys := make(map[string]*rsa.PublicKey, len(jwks.Keys))
	for _, key := range jwks.Keys {
		if key.Kty != "" && key.Kty != "RSA" {
			continue
		}
		pub, err := parseRSAPublicKey(key.N, key.E)
		if err != nil {
			return fmt.Errorf("failed to parse key %s: %w", key.Kid, err)
		}
		keys[key.Kid] = pub
	}
	c.keys = keys
	c.fetched = time.Now()
	return nil
}

// parseRSAPublicKey builds a key from base64url modulus and exponent.
func parseRSAPublicKey(n, e string) (*rsa.PublicKey, error) {
	nb, err := base64.RawURLEncoding.DecodeString(n)
	if err != nil {
		return nil, fmt.Errorf("failed to decode modulus: %w", err)
	}
	eb, err := base64.RawURLEncoding.DecodeString(e)
	if err != nil {
		return nil, fmt.Errorf("failed to decode exponent: %w", err)
	}

	var exp uint64
	for _, b := range eb {
		exp = (exp << 8) | uint64(b)
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(nb), E: int(exp)}, nil
}
