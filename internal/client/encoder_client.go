package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/invisibleacropolis-ops/GIF-hold-sub001/internal/config"
)

// Encoder is the GIF encoding service. Every call writes its output to
// object storage under OutputKey.
type Encoder interface {
	Render(ctx context.Context, req *RenderRequest) (*EncodeResponse, error)
	Blend(ctx context.Context, req *BlendRequest) (*EncodeResponse, error)
	Master(ctx context.Context, req *BlendRequest) (*EncodeResponse, error)
	HealthCheck(ctx context.Context) error
}

// EncoderClient implements Encoder over the encoding service's HTTP API
type EncoderClient struct {
	httpClient *http.Client
	baseURL    string
}

// RenderRequest renders one stream of a source clip to a GIF
type RenderRequest struct {
	SourceURI         string  `json:"source_uri"`
	ResolutionPercent float64 `json:"resolution_percent"`
	FrameRate         float64 `json:"frame_rate"`
	MaxColors         int     `json:"max_colors"`
	DurationSeconds   float64 `json:"duration_seconds"`
	NegateColors      bool    `json:"negate_colors"`
	OutputKey         string  `json:"output_key"`
}

// BlendRequest composites GIFs with a blend mode. It serves both the layer
// blend and the master blend endpoints.
type BlendRequest struct {
	Inputs    []string `json:"inputs"`
	Mode      string   `json:"mode"`
	Opacity   float64  `json:"opacity"`
	OutputKey string   `json:"output_key"`
}

// EncodeResponse describes a written GIF
type EncodeResponse struct {
	OutputKey string `json:"output_key"`
	OutputURL string `json:"output_url"`
	Frames    int    `json:"frames"`
	Size      int64  `json:"size"`
}

// EncoderError is a non-2xx answer from the encoding service
type EncoderError struct {
	Endpoint string
	Status   int
	Message  string
}

func (e *EncoderError) Error() string {
	return fmt.Sprintf("encoder %s: status %d: %s", e.Endpoint, e.Status, e.Message)
}

// Temporary reports whether the service may succeed on a later attempt
func (e *EncoderError) Temporary() bool {
	return e.Status >= 500 || e.Status == http.StatusTooManyRequests
}

// IsTemporary reports whether err is an encoder failure worth retrying
func IsTemporary(err error) bool {
	var ee *EncoderError
	return errors.As(err, &ee) && ee.Temporary()
}

// maxErrorBody bounds how much of a failed response is kept in the error
const maxErrorBody = 4 << 10

func NewEncoderClient(cfg *config.EncoderConfig) *EncoderClient {
	return &EncoderClient{
		httpClient: &http.Client{Timeout: time.Duration(cfg.Timeout) * time.Second},
		baseURL:    strings.TrimRight(cfg.ServiceURL, "/"),
	}
}

// IsConfigured reports whether a service URL was given
func (c *EncoderClient) IsConfigured() bool {
	return c.baseURL != ""
}

func (c *EncoderClient) Render(ctx context.Context, req *RenderRequest) (*EncodeResponse, error) {
	return c.encode(ctx, "/render", req)
}

func (c *EncoderClient) Blend(ctx context.Context, req *BlendRequest) (*EncodeResponse, error) {
	return c.encode(ctx, "/blend", req)
}

func (c *EncoderClient) Master(ctx context.Context, req *BlendRequest) (*EncodeResponse, error) {
	return c.encode(ctx, "/master", req)
}

func (c *EncoderClient) HealthCheck(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/health", nil)
	return err
}

func (c *EncoderClient) encode(ctx context.Context, endpoint string, body interface{}) (*EncodeResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoder %s: marshal: %w", endpoint, err)
	}
	data, err := c.do(ctx, http.MethodPost, endpoint, payload)
	if err != nil {
		return nil, err
	}
	var out EncodeResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("encoder %s: decode: %w", endpoint, err)
	}
	return &out, nil
}

// do sends one request and returns the body of a 2xx answer
func (c *EncoderClient) do(ctx context.Context, method, endpoint string, payload []byte) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("encoder %s: %w", endpoint, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("encoder %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &EncoderError{Endpoint: endpoint, Status: resp.StatusCode, Message: errorMessage(raw)}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("encoder %s: read: %w", endpoint, err)
	}
	return data, nil
}

// errorMessage prefers the service's {"error": "..."} body over raw text
func errorMessage(raw []byte) string {
	var doc struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &doc) == nil && doc.Error != "" {
		return doc.Error
	}
	return strings.TrimSpace(string(raw))
}
