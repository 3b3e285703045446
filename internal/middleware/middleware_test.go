package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invisibleacropolis-ops/GIF-hold-sub001/internal/auth"
)

const testSecret = "middleware-test-secret"

type stubVerifier struct {
	claims *auth.Claims
}

func (s stubVerifier) Validate(token string) (*auth.Claims, error) {
	if token == "oidc-token" {
		return s.claims, nil
	}
	return nil, errors.New("bad token")
}

func (stubVerifier) Close() error { return nil }

func whoami(c *fiber.Ctx) error {
	id := CurrentIdentity(c)
	if id == nil {
		return c.SendString("|")
	}
	return c.SendString(id.UserID + "|" + id.Email)
}

func call(t *testing.T, app *fiber.App, headers map[string]string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	buf := make([]byte, 512)
	n, _ := resp.Body.Read(buf)
	return resp.StatusCode, string(buf[:n])
}

func TestAuthenticate_Legacy(t *testing.T) {
	app := fiber.New()
	app.Get("/", NewAuthMiddleware(nil, testSecret).Authenticate(), whoami)

	token, err := auth.IssueLegacyToken("user-1", "u@example.com", testSecret, time.Hour)
	require.NoError(t, err)

	status, body := call(t, app, map[string]string{"Authorization": "Bearer " + token})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "user-1|u@example.com", body)
}

func TestAuthenticate_Rejections(t *testing.T) {
	app := fiber.New()
	app.Get("/", NewAuthMiddleware(nil, testSecret).Authenticate(), whoami)

	cases := map[string]map[string]string{
		"missing header": nil,
		"wrong scheme":   {"Authorization": "Basic abc"},
		"bad token":      {"Authorization": "Bearer not-a-jwt"},
	}
	for name, headers := range cases {
		t.Run(name, func(t *testing.T) {
			status, _ := call(t, app, headers)
			assert.Equal(t, http.StatusUnauthorized, status)
		})
	}
}

func TestAuthenticate_VerifierThenFallback(t *testing.T) {
	m := NewAuthMiddleware(stubVerifier{claims: &auth.Claims{UserID: "oidc-user", Email: "o@example.com"}}, testSecret)
	app := fiber.New()
	app.Get("/", m.Authenticate(), whoami)

	status, body := call(t, app, map[string]string{"Authorization": "Bearer oidc-token"})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "oidc-user|o@example.com", body)

	legacy, err := auth.IssueLegacyToken("legacy-user", "", testSecret, 0)
	require.NoError(t, err)
	status, body = call(t, app, map[string]string{"Authorization": "Bearer " + legacy})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "legacy-user|", body)
}

func TestAuthenticate_NotConfigured(t *testing.T) {
	app := fiber.New()
	app.Get("/", NewAuthMiddleware(nil, "").Authenticate(), whoami)

	status, body := call(t, app, map[string]string{"Authorization": "Bearer x"})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Contains(t, body, "not configured")
}

func TestGatewayAuth(t *testing.T) {
	app := fiber.New()
	app.Get("/", GatewayAuth(), whoami)

	status, _ := call(t, app, nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body := call(t, app, map[string]string{"X-User-Id": "gw-user", "X-User-Email": "g@example.com"})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "gw-user|g@example.com", body)
}

func TestBearerToken(t *testing.T) {
	tok, ok := BearerToken("bearer abc")
	assert.True(t, ok)
	assert.Equal(t, "abc", tok)

	_, ok = BearerToken("Bearer ")
	assert.False(t, ok)
}

func TestRateLimiter_NilRedisPassesThrough(t *testing.T) {
	app := fiber.New()
	app.Get("/", GatewayAuth(), NewRateLimiter(nil, nil).DispatchLimit(1), whoami)

	for i := 0; i < 3; i++ {
		status, _ := call(t, app, map[string]string{"X-User-Id": "u"})
		assert.Equal(t, http.StatusOK, status)
	}
}

func TestRateLimiter_Redis(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "localhost:6379", DB: 15})
	ctx := context.Background()
	if err := rdb.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}
	t.Cleanup(func() { _ = rdb.Close() })

	user := "ratelimit-" + time.Now().Format("150405.000000")
	now := time.Date(2026, 1, 1, 10, 59, 30, 0, time.UTC)
	t.Cleanup(func() {
		keys, _ := rdb.Keys(ctx, "ratelimit:share:"+user+":*").Result()
		if len(keys) > 0 {
			rdb.Del(ctx, keys...)
		}
	})

	rl := NewRateLimiter(rdb, nil)
	rl.now = func() time.Time { return now }
	app := fiber.New()
	app.Get("/", GatewayAuth(), rl.ShareLimit(2), whoami)

	headers := map[string]string{HeaderUserID: user}
	for i := 0; i < 2; i++ {
		status, _ := call(t, app, headers)
		require.Equal(t, http.StatusOK, status)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderUserID, user)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "31", resp.Header.Get("Retry-After"))
	assert.Equal(t, "0", resp.Header.Get("X-RateLimit-Remaining"))

	// the next window starts a fresh count
	now = now.Add(time.Minute)
	status, _ := call(t, app, headers)
	assert.Equal(t, http.StatusOK, status)
}
