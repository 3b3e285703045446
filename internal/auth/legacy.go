package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	legacyIssuer = "gifblend-api"
	legacyLeeway = 30 * time.Second
)

// LegacyClaims are carried by HS256 tokens signed with the shared secret.
// They predate the OIDC provider and stay valid for service clients.
type LegacyClaims struct {
	UserID string `json:"userId"`
	Email  string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// ValidateLegacyToken accepts only HS256 tokens from this API
func ValidateLegacyToken(tokenString, secret string) (*LegacyClaims, error) {
	if secret == "" {
		return nil, errors.New("legacy tokens disabled")
	}
	claims := &LegacyClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (interface{}, error) { return []byte(secret), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(legacyIssuer),
		jwt.WithLeeway(legacyLeeway),
	)
	if err != nil {
		return nil, err
	}
	if claims.UserID == "" {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

// IssueLegacyToken signs a token for a user. A zero ttl issues a token
// without expiry.
func IssueLegacyToken(userID, email, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := LegacyClaims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   legacyIssuer,
			Subject:  userID,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
