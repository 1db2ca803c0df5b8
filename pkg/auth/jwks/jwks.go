// Package jwks fetches and time-caches the identity provider's signing-key
// set and verifies bearer tokens against it.
package jwks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v3/jwk"

	"github.com/popcorntime/session/pkg/logger"
	"github.com/popcorntime/session/pkg/networking"
)

const (
	// cacheTTL bounds how long a fetched key set may be used for
	// verification before a refetch is forced.
	cacheTTL = 3600 * time.Second

	// leeway is the clock-skew allowance applied to time-based claims.
	leeway = 60 * time.Second
)

// Common errors
var (
	ErrKeyNotFound          = errors.New("key not found in JWKS")
	ErrUnsupportedAlgorithm = errors.New("unsupported signing algorithm")
	ErrFailedToFetchJWKS    = errors.New("failed to fetch JWKS")
)

// Client verifies tokens against a time-cached JWKS document.
//
// One key set is cached at a time together with its fetch time, guarded by a
// single mutex. The lock is never held across network I/O; concurrent stale
// readers may each trigger a refetch, which is accepted over the complexity
// of dogpile prevention for a once-an-hour event.
type Client struct {
	httpClient *http.Client
	jwksURL    string

	mu        sync.Mutex
	cached    jwk.Set
	fetchedAt time.Time
}

// NewClient creates a client for the given JWKS URL.
func NewClient(jwksURL string) *Client {
	logger.Infof("creating JWKS client for %s", jwksURL)
	return &Client{
		httpClient: networking.NewHttpClientBuilder().WithoutRedirects().Build(),
		jwksURL:    jwksURL,
	}
}

// Verify checks the token's signature and time-based claims against the
// cached key set and returns the token's subject identifier.
//
// Audience validation is intentionally disabled: the provider does not yet
// attach an audience to desktop tokens. Issuer validation is likewise off
// until internal service tokens are re-signed with the public issuer.
func (c *Client) Verify(ctx context.Context, tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("%w: %v", ErrUnsupportedAlgorithm, token.Header["alg"])
		}

		kid, ok := token.Header["kid"].(string)
		if !ok {
			return nil, errors.New("token header missing kid")
		}

		key, err := c.getKey(ctx, kid)
		if err != nil {
			return nil, err
		}

		var rawKey any
		if err := jwk.Export(key, &rawKey); err != nil {
			return nil, fmt.Errorf("failed to export raw key: %w", err)
		}
		return rawKey, nil
	},
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithLeeway(leeway),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to verify token: %w", err)
	}

	return claims.Subject, nil
}

// getKey resolves a key id against the cache, refetching the key set at most
// once when the cache is expired or the id is unknown.
func (c *Client) getKey(ctx context.Context, kid string) (jwk.Key, error) {
	c.mu.Lock()
	cached, fetchedAt := c.cached, c.fetchedAt
	c.mu.Unlock()

	if cached != nil && time.Since(fetchedAt) < cacheTTL {
		if key, ok := cached.LookupKeyID(kid); ok {
			return key, nil
		}
	}

	// Cache miss, expiry, or unknown kid: one synchronous refetch, no retry.
	refreshed, err := c.refresh(ctx)
	if err != nil {
		return nil, err
	}

	key, ok := refreshed.LookupKeyID(kid)
	if !ok {
		return nil, fmt.Errorf("%w: kid %s", ErrKeyNotFound, kid)
	}
	return key, nil
}

// refresh fetches the key set and replaces the cache entry wholesale.
func (c *Client) refresh(ctx context.Context) (jwk.Set, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.jwksURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToFetchJWKS, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToFetchJWKS, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: endpoint returned status %d", ErrFailedToFetchJWKS, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToFetchJWKS, err)
	}

	set, err := jwk.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToFetchJWKS, err)
	}

	c.mu.Lock()
	c.cached = set
	c.fetchedAt = time.Now()
	c.mu.Unlock()

	logger.Debugf("JWKS cache refreshed with %d keys", set.Len())
	return set, nil
}
