// ABOUTME: WebSocket client for the rehearsal control protocol
// ABOUTME: Handles connection, hello, request correlation and pushed events
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/choirless/rehearsal/internal/control"
	"github.com/choirless/rehearsal/internal/logging"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const helloTimeout = 5 * time.Second

// ErrClosed is returned by requests on a closed client.
var ErrClosed = errors.New("not connected")

// Config holds client configuration
type Config struct {
	ServerAddr string // host:port
	Path       string // defaults to /control
}

// Event is a pushed bus event.
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Name returns the event name without its prefix.
func (e Event) Name() string {
	return strings.TrimPrefix(e.Type, "event/")
}

// Layer is a finished take delivered as a binary frame.
type Layer struct {
	ID      string
	Samples []float32
}

// RequestError is a reply with ok=false.
type RequestError struct {
	Type    string
	Message string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// reply mirrors control.Reply with the payload left undecoded.
type reply struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	OK      bool            `json:"ok"`
	Error   string          `json:"error,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Client represents a control connection
type Client struct {
	config Config
	conn   *websocket.Conn
	mu     sync.RWMutex
	logger *slog.Logger

	// Hello is the server's greeting, set by Connect.
	Hello control.ServerHello

	// Message channels
	Events chan Event
	Layers chan Layer

	pendingMu sync.Mutex
	pending   map[string]chan reply

	// State
	connected bool
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewClient creates a new control client
func NewClient(config Config) *Client {
	if config.Path == "" {
		config.Path = "/control"
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Client{
		config:  config,
		logger:  logging.GetLogger("client"),
		Events:  make(chan Event, 100),
		Layers:  make(chan Layer, 4),
		pending: make(map[string]chan reply),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Connect dials the server and waits for server/hello
func (c *Client) Connect(ctx context.Context) error {
	u := url.URL{Scheme: "ws", Host: c.config.ServerAddr, Path: c.config.Path}
	c.logger.Info("Connecting", "url", u.String())

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	if err := c.handshake(); err != nil {
		c.Close()
		return fmt.Errorf("handshake failed: %w", err)
	}

	go c.readMessages()
	return nil
}

func (c *Client) handshake() error {
	_ = c.conn.SetReadDeadline(time.Now().Add(helloTimeout))
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("failed to read server/hello: %w", err)
	}
	_ = c.conn.SetReadDeadline(time.Time{})

	var push Event
	if err := json.Unmarshal(data, &push); err != nil {
		return fmt.Errorf("failed to parse server/hello: %w", err)
	}
	if push.Type != "server/hello" {
		return fmt.Errorf("expected server/hello, got %s", push.Type)
	}
	if err := json.Unmarshal(push.Payload, &c.Hello); err != nil {
		return fmt.Errorf("failed to parse server/hello: %w", err)
	}

	c.logger.Info("Handshake complete", "server", c.Hello.Name, "client_id", c.Hello.ClientID)
	return nil
}

// Request sends one command and waits for its reply. A nil payload is
// omitted.
func (c *Client) Request(ctx context.Context, typ string, payload any) (json.RawMessage, error) {
	msg := control.Message{ID: uuid.NewString(), Type: typ}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		msg.Payload = raw
	}

	ch := make(chan reply, 1)
	c.pendingMu.Lock()
	c.pending[msg.ID] = ch
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, msg.ID)
		c.pendingMu.Unlock()
	}()

	if err := c.sendJSON(msg); err != nil {
		return nil, err
	}

	select {
	case r := <-ch:
		if !r.OK {
			return nil, &RequestError{Type: typ, Message: r.Error}
		}
		return r.Payload, nil
	case <-c.ctx.Done():
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// sendJSON sends a JSON message
func (c *Client) sendJSON(msg any) error {
	// Lock held for the write; gorilla allows one concurrent writer
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return ErrClosed
	}
	return c.conn.WriteJSON(msg)
}

// readMessages reads and routes incoming messages
func (c *Client) readMessages() {
	defer c.Close()

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if c.ctx.Err() == nil {
				c.logger.Warn("Read error", "error", err)
			}
			return
		}

		switch messageType {
		case websocket.BinaryMessage:
			c.handleBinaryMessage(data)
		case websocket.TextMessage:
			c.handleJSONMessage(data)
		}
	}
}

// handleBinaryMessage handles finished layers
func (c *Client) handleBinaryMessage(data []byte) {
	id, samples, err := control.ParseLayerFrame(data)
	if err != nil {
		c.logger.Warn("Invalid binary message", "error", err)
		return
	}

	select {
	case c.Layers <- Layer{ID: id, Samples: samples}:
	default:
		c.logger.Warn("Layer channel full, dropping layer", "layer", id)
	}
}

// handleJSONMessage routes replies to waiting requests and events to Events
func (c *Client) handleJSONMessage(data []byte) {
	var r reply
	if err := json.Unmarshal(data, &r); err != nil {
		c.logger.Warn("Failed to parse JSON message", "error", err)
		return
	}

	if r.ID != "" {
		c.pendingMu.Lock()
		ch, ok := c.pending[r.ID]
		c.pendingMu.Unlock()
		if ok {
			ch <- r
			return
		}
	}

	switch {
	case strings.HasPrefix(r.Type, "event/"):
		select {
		case c.Events <- Event{Type: r.Type, Payload: r.Payload}:
		default:
			c.logger.Debug("Event channel full, dropping event", "type", r.Type)
		}
	case r.Type == "error":
		c.logger.Warn("Server rejected message", "error", r.Error)
	default:
		c.logger.Debug("Unhandled message", "type", r.Type, "id", r.ID)
	}
}

// Close closes the connection
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		c.connected = false
		c.cancel()
		_ = c.conn.Close()
		c.logger.Info("Connection closed")
	}
}

// IsConnected returns connection status
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}
