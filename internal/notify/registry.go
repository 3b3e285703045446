package notify

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Registry holds one Center per pipeline session.
type Registry struct {
	window time.Duration
	logger *zap.Logger

	mu      sync.Mutex
	centers map[string]*Center
}

// NewRegistry creates a registry whose centers use the given dedupe window.
func NewRegistry(window time.Duration, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		window:  window,
		logger:  logger,
		centers: make(map[string]*Center),
	}
}

// For returns the session's center, creating it on first use.
func (r *Registry) For(sessionID string) *Center {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.centers[sessionID]
	if !ok {
		c = NewCenter(
			WithDedupeWindow(r.window),
			WithLogger(r.logger.With(zap.String("session", sessionID))),
		)
		r.centers[sessionID] = c
	}
	return c
}

// Drop forgets a session's center. Existing subscriptions keep running
// until their contexts end.
func (r *Registry) Drop(sessionID string) {
	r.mu.Lock()
	delete(r.centers, sessionID)
	r.mu.Unlock()
}
