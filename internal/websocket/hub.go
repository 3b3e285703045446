package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"go.uber.org/zap"

	"github.com/invisibleacropolis-ops/GIF-hold-sub001/internal/logging"
	"github.com/invisibleacropolis-ops/GIF-hold-sub001/internal/model"
	"github.com/invisibleacropolis-ops/GIF-hold-sub001/internal/notify"
)

const (
	sendBuffer   = 256
	pingInterval = 30 * time.Second
)

// Client represents a WebSocket client
type Client struct {
	SessionID string
	Conn      *websocket.Conn
	Send      chan []byte

	mu     sync.Mutex
	closed bool
}

// NewClient creates a client for a session. conn may be nil in tests.
func NewClient(sessionID string, conn *websocket.Conn) *Client {
	return &Client{
		SessionID: sessionID,
		Conn:      conn,
		Send:      make(chan []byte, sendBuffer),
	}
}

// enqueue queues data without blocking. It reports false when the client
// is gone or its buffer is full.
func (c *Client) enqueue(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.Send)
	}
	c.mu.Unlock()
}

// Hub maintains active WebSocket connections
type Hub struct {
	// Clients grouped by session ID
	clients map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client

	// Broadcast messages to session subscribers
	broadcast chan *BroadcastMessage

	// done is closed once Run returns
	done     chan struct{}
	stopOnce sync.Once

	logger *zap.Logger
	mu     sync.RWMutex
}

// BroadcastMessage represents a message to broadcast
type BroadcastMessage struct {
	SessionID string
	Message   []byte
}

// NewHub creates a new Hub
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *BroadcastMessage, sendBuffer),
		done:       make(chan struct{}),
		logger:     logging.OrNop(logger),
	}
}

// Run starts the hub's main loop. It returns when ctx is done, closing
// every client; later calls to Register, Unregister and the broadcasts
// return immediately.
func (h *Hub) Run(ctx context.Context) {
	defer h.stop()
	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.SessionID] == nil {
				h.clients[client.SessionID] = make(map[*Client]bool)
			}
			h.clients[client.SessionID][client] = true
			h.mu.Unlock()
			h.logger.Debug("client registered", zap.String("session", client.SessionID))

		case client := <-h.unregister:
			h.remove(client)
			h.logger.Debug("client unregistered", zap.String("session", client.SessionID))

		case msg := <-h.broadcast:
			h.mu.RLock()
			var slow []*Client
			for client := range h.clients[msg.SessionID] {
				if !client.enqueue(msg.Message) {
					slow = append(slow, client)
				}
			}
			h.mu.RUnlock()
			for _, client := range slow {
				h.remove(client)
			}
		}
	}
}

func (h *Hub) stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		h.mu.Lock()
		for _, clients := range h.clients {
			for client := range clients {
				client.close()
			}
		}
		h.clients = make(map[string]map[*Client]bool)
		h.mu.Unlock()
	})
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	if clients, ok := h.clients[client.SessionID]; ok {
		if _, ok := clients[client]; ok {
			delete(clients, client)
			if len(clients) == 0 {
				delete(h.clients, client.SessionID)
			}
		}
	}
	h.mu.Unlock()
	client.close()
}

// Register adds a new client. A client registered after the hub stopped
// is closed straight away.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		client.close()
	}
}

// Unregister removes a client
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
		client.close()
	}
}

// Connected returns the number of clients attached to a session
func (h *Hub) Connected(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[sessionID])
}

func (h *Hub) publish(sessionID string, msg model.WSEvent) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to marshal message", zap.Error(err))
		return
	}
	select {
	case h.broadcast <- &BroadcastMessage{SessionID: sessionID, Message: data}:
	case <-h.done:
	}
}

func (h *Hub) BroadcastProgress(sessionID, jobID string, progress int, status model.JobStatus, step string) {
	h.publish(sessionID, model.WSEvent{
		Type: model.WSJobProgress,
		Job:  &model.WSJobEvent{ID: jobID, Status: status, Progress: progress, Step: step},
	})
}

func (h *Hub) BroadcastComplete(sessionID, jobID string, result interface{}) {
	h.publish(sessionID, model.WSEvent{
		Type: model.WSJobComplete,
		Job:  &model.WSJobEvent{ID: jobID, Status: model.JobStatusSucceeded, Progress: 100, Result: result},
	})
}

func (h *Hub) BroadcastError(sessionID, jobID, code, message string) {
	h.publish(sessionID, model.WSEvent{
		Type: model.WSJobFailed,
		Job: &model.WSJobEvent{
			ID:     jobID,
			Status: model.JobStatusFailed,
			Error:  &model.WSError{Code: code, Message: message},
		},
	})
}

// deliver hands data to every client of a session right away and returns
// how many accepted it
func (h *Hub) deliver(sessionID string, msg model.WSEvent) (int, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return 0, err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for client := range h.clients[sessionID] {
		if client.enqueue(data) {
			n++
		}
	}
	return n, nil
}

// Sharer returns a share port that forwards intents to the session's clients
func (h *Hub) Sharer(sessionID string) notify.Sharer {
	return intentPort{hub: h, sessionID: sessionID}
}

// Clipboard returns a clipboard port that forwards to the session's clients
func (h *Hub) Clipboard(sessionID string) notify.Clipboard {
	return intentPort{hub: h, sessionID: sessionID}
}

type intentPort struct {
	hub       *Hub
	sessionID string
}

func (p intentPort) Share(_ context.Context, text, title, subject string) error {
	return p.send(model.WSShareIntent, &model.WSIntent{Text: text, Title: title, Subject: subject})
}

func (p intentPort) Copy(text string) error {
	return p.send(model.WSCopyIntent, &model.WSIntent{Text: text})
}

func (p intentPort) send(kind model.WSEventType, intent *model.WSIntent) error {
	n, err := p.hub.deliver(p.sessionID, model.WSEvent{Type: kind, Intent: intent})
	if err != nil {
		return err
	}
	if n == 0 {
		return notify.ErrNoReceiver
	}
	return nil
}

// forwardToasts relays the session feed to one client until ctx ends
func (h *Hub) forwardToasts(ctx context.Context, client *Client, center *notify.Center) {
	sub := center.Subscribe(ctx)
	go notify.Forward(sub, notify.ToasterFunc(func(msg model.UiMessage) {
		data, err := json.Marshal(model.WSEvent{Type: model.WSToast, Toast: &msg})
		if err != nil {
			return
		}
		if !client.enqueue(data) {
			h.logger.Debug("toast dropped", zap.String("session", client.SessionID))
		}
	}))
}

// HandleConnection serves one WebSocket connection until it closes. The
// client receives job events and the session's notification feed.
func (h *Hub) HandleConnection(c *websocket.Conn, sessionID string, center *notify.Center) {
	client := NewClient(sessionID, c)

	h.Register(client)
	defer h.Unregister(client)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.forwardToasts(ctx, client, center)

	// Start writer goroutine
	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()

		for {
			select {
			case message, ok := <-client.Send:
				if !ok {
					_ = c.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
				if err := c.WriteMessage(websocket.TextMessage, message); err != nil {
					return
				}

			case <-ticker.C:
				if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	// Reader loop
	for {
		_, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn("websocket error", zap.String("session", sessionID), zap.Error(err))
			}
			break
		}

		var msg model.WSEvent
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}

		if msg.Type == model.WSPing {
			data, _ := json.Marshal(model.WSEvent{Type: model.WSPong})
			client.enqueue(data)
		}
	}
}
