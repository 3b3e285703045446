// Package notify coalesces user-facing messages and delivers them to
// subscribers without ever blocking the producer.
package notify

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/invisibleacropolis-ops/GIF-hold-sub001/internal/model"
)

// DefaultDedupeWindow is how long an identical message stays suppressed.
const DefaultDedupeWindow = 1500 * time.Millisecond

// Center accepts messages from any number of producers, drops repeats of
// the last accepted message within the dedupe window, and fans the rest
// out to subscribers in post order.
type Center struct {
	window time.Duration
	now    func() time.Time
	logger *zap.Logger

	mu      sync.Mutex
	last    model.UiMessage
	lastAt  time.Time
	hasLast bool
	subs    map[*Subscription]struct{}
}

// Option configures a Center.
type Option func(*Center)

// WithDedupeWindow overrides DefaultDedupeWindow. Non-positive values
// disable deduplication.
func WithDedupeWindow(d time.Duration) Option {
	return func(c *Center) { c.window = d }
}

// WithClock replaces time.Now. The clock must be monotonic.
func WithClock(now func() time.Time) Option {
	return func(c *Center) { c.now = now }
}

// WithLogger sets the logger used for suppressed-message debug logs.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Center) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCenter creates a notification center. The default clock is time.Now,
// whose monotonic reading makes the window immune to wall-clock changes.
func NewCenter(opts ...Option) *Center {
	c := &Center{
		window: DefaultDedupeWindow,
		now:    time.Now,
		logger: zap.NewNop(),
		subs:   make(map[*Subscription]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Post publishes text to every current subscriber. Blank text is ignored.
// It reports whether the message was accepted (not blank, not a duplicate).
func (c *Center) Post(text string, isError bool) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	msg := model.UiMessage{Text: text, IsError: isError}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.hasLast && msg == c.last && now.Sub(c.lastAt) < c.window {
		c.logger.Debug("duplicate message suppressed", zap.String("text", text), zap.Bool("error", isError))
		return false
	}
	c.last = msg
	c.lastAt = now
	c.hasLast = true

	for sub := range c.subs {
		sub.deliver(msg)
	}
	return true
}

// Subscribe returns a live feed of messages posted after this call. The
// feed ends and its channel is closed when ctx is done.
func (c *Center) Subscribe(ctx context.Context) *Subscription {
	sub := &Subscription{
		center: c,
		ch:     make(chan model.UiMessage),
		wake:   make(chan struct{}, 1),
	}

	c.mu.Lock()
	c.subs[sub] = struct{}{}
	c.mu.Unlock()

	go sub.pump(ctx)
	return sub
}

// Subscribers returns the number of live subscriptions.
func (c *Center) Subscribers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

// Subscription is one subscriber's ordered view of a Center's feed.
type Subscription struct {
	center *Center
	ch     chan model.UiMessage
	wake   chan struct{}

	// guarded by center.mu
	pending []model.UiMessage
	busy    bool
	closed  bool
}

// C returns the feed channel. It is closed when the subscription ends.
func (s *Subscription) C() <-chan model.UiMessage {
	return s.ch
}

// deliver hands msg to the subscriber. Must be called with center.mu held.
func (s *Subscription) deliver(msg model.UiMessage) {
	if s.closed {
		return
	}
	// A direct hand-off is only allowed when nothing older is still
	// waiting, otherwise it would overtake queued messages.
	if len(s.pending) == 0 && !s.busy {
		select {
		case s.ch <- msg:
			return
		default:
		}
	}
	s.pending = append(s.pending, msg)
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// pump drains queued messages in order until ctx is done.
func (s *Subscription) pump(ctx context.Context) {
	mu := &s.center.mu
	defer func() {
		mu.Lock()
		s.closed = true
		s.pending = nil
		delete(s.center.subs, s)
		close(s.ch)
		mu.Unlock()
	}()

	for {
		mu.Lock()
		if len(s.pending) == 0 {
			s.busy = false
			mu.Unlock()
			select {
			case <-s.wake:
				continue
			case <-ctx.Done():
				return
			}
		}
		msg := s.pending[0]
		s.pending = s.pending[1:]
		s.busy = true
		mu.Unlock()

		select {
		case s.ch <- msg:
		case <-ctx.Done():
			return
		}
	}
}
