package router

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/invisibleacropolis-ops/GIF-hold-sub001/internal/auth"
	"github.com/invisibleacropolis-ops/GIF-hold-sub001/internal/config"
	"github.com/invisibleacropolis-ops/GIF-hold-sub001/internal/middleware"
	"github.com/invisibleacropolis-ops/GIF-hold-sub001/internal/notify"
	"github.com/invisibleacropolis-ops/GIF-hold-sub001/internal/service"
	"github.com/invisibleacropolis-ops/GIF-hold-sub001/internal/store"
	ws "github.com/invisibleacropolis-ops/GIF-hold-sub001/internal/websocket"
)

const testJWTSecret = "test-secret-for-e2e"

type recordingQueue struct {
	mu    sync.Mutex
	tasks []*asynq.Task
}

func (q *recordingQueue) Enqueue(task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, task)
	return &asynq.TaskInfo{ID: "t"}, nil
}

// testApp holds all components needed for testing
type testApp struct {
	app      *fiber.App
	pipeline *service.PipelineService
	hub      *ws.Hub
	queue    *recordingQueue
}

// setupApp builds the app the way main does, with an in-memory store, a
// recording queue and no object storage.
func setupApp(t *testing.T, mutate ...func(*config.Config)) *testApp {
	t.Helper()

	cfg := &config.Config{
		Server:    config.ServerConfig{Port: "0", AuthMode: config.AuthModeJWT},
		RateLimit: config.RateLimitConfig{DispatchPerHour: 10000, SharePerHour: 10000},
		Notify:    config.NotifyConfig{DedupeWindowMs: 1500},
	}
	for _, fn := range mutate {
		fn(cfg)
	}

	st := store.NewMemoryStore()
	queue := &recordingQueue{}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hub := ws.NewHub(nil)
	go hub.Run(ctx)

	pipeline := service.NewPipelineService(st, notify.NewRegistry(cfg.Notify.DedupeWindow(), nil), nil, nil, nil)
	app := New(Deps{
		Config:   cfg,
		Pipeline: pipeline,
		Dispatch: service.NewDispatchService(pipeline, st, queue, nil),
		Share:    service.NewShareService(pipeline, hub, nil, nil),
		Clips:    service.NewClipService(pipeline, nil),
		Hub:      hub,
		Auth:     middleware.NewAuthMiddleware(nil, testJWTSecret),
		Limiter:  middleware.NewRateLimiter(nil, nil),
		Services: map[string]bool{"redis": false, "r2": false, "encoder": false},
		Quiet:    true,
	})

	return &testApp{app: app, pipeline: pipeline, hub: hub, queue: queue}
}

// generateToken creates a legacy HMAC JWT token for test requests.
func generateToken(t *testing.T) string {
	t.Helper()
	token, err := auth.IssueLegacyToken("test-user-123", "test@example.com", testJWTSecret, time.Hour)
	require.NoError(t, err)
	return token
}

// doRequest is a helper to perform HTTP requests against the test app.
func doRequest(app *fiber.App, method, path string, body string, headers map[string]string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, path, bodyReader)
	if err != nil {
		return nil, err
	}

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return app.Test(req, -1)
}

// doAuthRequest performs an authenticated request.
func doAuthRequest(t *testing.T, app *fiber.App, method, path, body string) *http.Response {
	t.Helper()
	resp, err := doRequest(app, method, path, body, map[string]string{
		"Authorization": "Bearer " + generateToken(t),
	})
	require.NoError(t, err)
	return resp
}

// doUpload posts a multipart file with the given content type.
func doUpload(t *testing.T, app *fiber.App, path, filename, contentType string, data []byte) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	h := make(map[string][]string)
	h["Content-Disposition"] = []string{`form-data; name="file"; filename="` + filename + `"`}
	h["Content-Type"] = []string{contentType}
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req, err := http.NewRequest(http.MethodPost, path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+generateToken(t))
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

// parseJSON parses response body into a map.
func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var result map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &result), "body: %s", b)
	return result
}

// assertStatus checks the HTTP status code.
func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		b, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected status %d, got %d\nbody: %s", expected, resp.StatusCode, b)
	}
}

// errorCode returns error.code of an error response.
func errorCode(t *testing.T, body map[string]interface{}) string {
	t.Helper()
	e, ok := body["error"].(map[string]interface{})
	require.True(t, ok, "expected error object in %v", body)
	return e["code"].(string)
}

// createSession opens a session and returns its id.
func createSession(t *testing.T, ta *testApp) string {
	t.Helper()
	resp := doAuthRequest(t, ta.app, http.MethodPost, "/api/sessions", `{"layerCount":1}`)
	assertStatus(t, resp, http.StatusCreated)
	id, _ := parseJSON(t, resp)["sessionId"].(string)
	require.NotEmpty(t, id)
	return id
}
