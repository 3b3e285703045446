package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invisibleacropolis-ops/GIF-hold-sub001/internal/config"
)

func TestLegacyToken_RoundTrip(t *testing.T) {
	token, err := IssueLegacyToken("user-1", "a@example.com", "secret", time.Hour)
	require.NoError(t, err)

	claims, err := ValidateLegacyToken(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "a@example.com", claims.Email)
	assert.Equal(t, legacyIssuer, claims.Issuer)
}

func TestLegacyToken_WrongSecret(t *testing.T) {
	token, err := IssueLegacyToken("user-1", "", "secret", 0)
	require.NoError(t, err)

	_, err = ValidateLegacyToken(token, "other")
	assert.Error(t, err)
}

func TestLegacyToken_Expired(t *testing.T) {
	claims := LegacyClaims{
		UserID: "user-1",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    legacyIssuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = ValidateLegacyToken(token, "secret")
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestLegacyToken_RejectsNonHMAC(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, LegacyClaims{UserID: "x"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = ValidateLegacyToken(token, "secret")
	assert.Error(t, err)
}

func TestLegacyToken_RejectsForeignIssuer(t *testing.T) {
	claims := LegacyClaims{UserID: "user-1", RegisteredClaims: jwt.RegisteredClaims{Issuer: "someone-else"}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = ValidateLegacyToken(token, "secret")
	assert.ErrorIs(t, err, jwt.ErrTokenInvalidIssuer)
}

func TestLegacyToken_RequiresUser(t *testing.T) {
	token, err := IssueLegacyToken("", "", "secret", time.Hour)
	require.NoError(t, err)

	_, err = ValidateLegacyToken(token, "secret")
	assert.ErrorIs(t, err, jwt.ErrTokenInvalidClaims)

	_, err = ValidateLegacyToken(token, "")
	assert.Error(t, err)
}

func TestDiscoverJWKSURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/.well-known/openid-configuration" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"jwks_uri":"https://issuer.test/keys"}`))
	}))
	defer srv.Close()

	u, err := discoverJWKSURL(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "https://issuer.test/keys", u)

	_, err = discoverJWKSURL(context.Background(), srv.URL+"/missing")
	assert.ErrorContains(t, err, "status 404")
}

func TestDiscoverJWKSURL_MissingURI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	_, err := discoverJWKSURL(context.Background(), srv.URL)
	assert.ErrorContains(t, err, "jwks_uri not found")
}

func TestNewJWKSVerifier_RequiresIssuer(t *testing.T) {
	_, err := NewJWKSVerifier(&config.OIDCConfig{})
	assert.Error(t, err)
}

func TestClaims_DisplayName(t *testing.T) {
	assert.Equal(t, "Ada", (&Claims{UserID: "u1", Name: "Ada", PreferredUsername: "ada"}).DisplayName())
	assert.Equal(t, "ada", (&Claims{UserID: "u1", PreferredUsername: "ada", Email: "a@x.test"}).DisplayName())
	assert.Equal(t, "a@x.test", (&Claims{UserID: "u1", Email: "a@x.test"}).DisplayName())
	assert.Equal(t, "u1", (&Claims{UserID: "u1"}).DisplayName())
}
