package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	"github.com/invisibleacropolis-ops/GIF-hold-sub001/internal/config"
)

const discoveryTimeout = 15 * time.Second

var (
	// ErrInvalidToken covers signature, expiry, issuer and shape failures
	ErrInvalidToken = errors.New("invalid token")
	// ErrWrongAudience means the token was issued for another client
	ErrWrongAudience = errors.New("token audience mismatch")
)

// TokenVerifier checks a bearer token issued by the identity provider
type TokenVerifier interface {
	Validate(tokenString string) (*Claims, error)
	Close() error
}

// Claims carried by provider tokens
type Claims struct {
	UserID            string `json:"sub"`
	Email             string `json:"email,omitempty"`
	Name              string `json:"name,omitempty"`
	PreferredUsername string `json:"preferred_username,omitempty"`
	jwt.RegisteredClaims
}

// DisplayName picks the friendliest name the provider sent
func (c *Claims) DisplayName() string {
	for _, n := range []string{c.Name, c.PreferredUsername, c.Email} {
		if n != "" {
			return n
		}
	}
	return c.UserID
}

// JWKSVerifier validates tokens against the provider's published keys
type JWKSVerifier struct {
	keys     keyfunc.Keyfunc
	issuer   string
	audience string
	stop     context.CancelFunc
}

// NewJWKSVerifier resolves the provider's key set through OIDC discovery.
// Keys refresh in the background until Close.
func NewJWKSVerifier(cfg *config.OIDCConfig) (*JWKSVerifier, error) {
	issuer := strings.TrimRight(cfg.Issuer, "/")
	if issuer == "" {
		return nil, errors.New("oidc: issuer is required")
	}

	lookupCtx, cancelLookup := context.WithTimeout(context.Background(), discoveryTimeout)
	defer cancelLookup()
	jwksURL, err := discoverJWKSURL(lookupCtx, issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc: %w", err)
	}

	refreshCtx, stop := context.WithCancel(context.Background())
	keys, err := keyfunc.NewDefaultCtx(refreshCtx, []string{jwksURL})
	if err != nil {
		stop()
		return nil, fmt.Errorf("oidc: load key set %s: %w", jwksURL, err)
	}

	return &JWKSVerifier{keys: keys, issuer: issuer, audience: cfg.ClientID, stop: stop}, nil
}

func discoverJWKSURL(ctx context.Context, issuer string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, issuer+"/.well-known/openid-configuration", nil)
	if err != nil {
		return "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("discovery: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("discovery: status %d", resp.StatusCode)
	}

	var doc struct {
		JWKSURI string `json:"jwks_uri"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return "", fmt.Errorf("discovery: decode: %w", err)
	}
	if doc.JWKSURI == "" {
		return "", errors.New("discovery: jwks_uri not found")
	}
	return doc.JWKSURI, nil
}

func (v *JWKSVerifier) Validate(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, v.keys.Keyfunc,
		jwt.WithIssuer(v.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if v.audience != "" && !slices.Contains(claims.Audience, v.audience) {
		return nil, ErrWrongAudience
	}
	return claims, nil
}

func (v *JWKSVerifier) Close() error {
	v.stop()
	return nil
}
