// ABOUTME: WebSocket control server for the rehearsal engine
// ABOUTME: Serves commands from the UI, pushes events and finished layers
package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/choirless/rehearsal/internal/discovery"
	"github.com/choirless/rehearsal/internal/events"
	"github.com/choirless/rehearsal/internal/logging"
	"github.com/choirless/rehearsal/internal/metrics"
	"github.com/choirless/rehearsal/internal/session"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	sendBuffer     = 256
	writeDeadline  = 10 * time.Second
	pingInterval   = 30 * time.Second
	requestTimeout = 2 * time.Minute
)

// Config holds server configuration
type Config struct {
	Addr       string
	Name       string
	Path       string
	Version    string
	EnableMDNS bool

	// Metrics, when set, is served on /metrics.
	Metrics *prometheus.Registry
}

// Server exposes an Orchestrator over WebSocket.
type Server struct {
	config   Config
	serverID string
	orch     *session.Orchestrator
	logger   *slog.Logger

	upgrader websocket.Upgrader
	mux      *http.ServeMux
	handlers map[string]handlerFunc

	clients   map[string]*Client
	clientsMu sync.RWMutex

	mdnsManager *discovery.Manager
	httpServer  *http.Server
	addr        chan net.Addr

	shutdownMu sync.RWMutex
	isShutdown bool
	wg         sync.WaitGroup
}

// Client is one connected UI.
type Client struct {
	ID   string
	Conn *websocket.Conn

	sendChan chan any
	done     chan struct{}
}

// New creates a server for orch.
func New(config Config, orch *session.Orchestrator) *Server {
	if config.Path == "" {
		config.Path = "/control"
	}
	s := &Server{
		config:   config,
		serverID: uuid.NewString(),
		orch:     orch,
		logger:   logging.GetLogger("control"),
		mux:      http.NewServeMux(),
		clients:  make(map[string]*Client),
		addr:     make(chan net.Addr, 1),
	}
	s.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			// The engine serves a UI on the same machine or trusted LAN
			if origin := r.Header.Get("Origin"); origin != "" {
				s.logger.Debug("Accepting WebSocket origin", "origin", origin)
			}
			return true
		},
	}
	s.handlers = s.routes()

	s.mux.HandleFunc(config.Path, s.handleWebSocket)
	s.mux.HandleFunc("/status", s.handleStatus)
	if config.Metrics != nil {
		s.mux.Handle("/metrics", metrics.Handler(config.Metrics))
	}
	return s
}

// Handler returns the HTTP handler, for embedding and tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Addr blocks until the listener is bound and returns its address.
func (s *Server) Addr(ctx context.Context) (net.Addr, error) {
	select {
	case a := <-s.addr:
		s.addr <- a
		return a, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Addr, err)
	}
	s.addr <- ln.Addr()
	s.logger.Info("Control server listening", "addr", ln.Addr().String(), "path", s.config.Path, "server_id", s.serverID)

	if s.config.EnableMDNS {
		port := 0
		if tcp, ok := ln.Addr().(*net.TCPAddr); ok {
			port = tcp.Port
		}
		s.mdnsManager = discovery.NewManager(discovery.Config{
			ServiceName: s.config.Name,
			Port:        port,
			Path:        s.config.Path,
			Version:     s.config.Version,
		})
		if err := s.mdnsManager.Advertise(); err != nil {
			s.logger.Warn("Failed to start mDNS advertisement", "error", err)
			s.mdnsManager = nil
		}
	}

	s.httpServer = &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		s.logger.Info("Control server shutting down")
	case err := <-errChan:
		s.logger.Error("HTTP server error", "error", err)
		serverErr = err
	}

	s.shutdownMu.Lock()
	s.isShutdown = true
	s.shutdownMu.Unlock()

	if s.mdnsManager != nil {
		s.mdnsManager.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("HTTP server shutdown error", "error", err)
	}
	s.closeClients()
	s.wg.Wait()

	if serverErr != nil {
		return fmt.Errorf("HTTP server failed: %w", serverErr)
	}
	return nil
}

// ClientCount returns the number of connected clients.
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.orch.Status()); err != nil {
		s.logger.Warn("Failed to write status", "error", err)
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.shutdownMu.RLock()
	if s.isShutdown {
		s.shutdownMu.RUnlock()
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	s.wg.Add(1)
	s.shutdownMu.RUnlock()
	defer s.wg.Done()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade error", "error", err)
		return
	}
	s.logger.Info("New control connection", "remote", r.RemoteAddr)

	s.handleConnection(r.Context(), conn)
}

func (s *Server) handleConnection(ctx context.Context, conn *websocket.Conn) {
	defer conn.Close()

	client := &Client{
		ID:       uuid.NewString(),
		Conn:     conn,
		sendChan: make(chan any, sendBuffer),
		done:     make(chan struct{}),
	}

	s.clientsMu.Lock()
	s.clients[client.ID] = client
	s.clientsMu.Unlock()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.clientWriter(client)
	}()

	unsubscribe := func() {}
	defer func() {
		unsubscribe()
		s.clientsMu.Lock()
		delete(s.clients, client.ID)
		s.clientsMu.Unlock()
		client.close()
		<-writerDone
		s.logger.Info("Control client disconnected", "client", client.ID)
	}()

	hello := ServerHello{
		ServerID:   s.serverID,
		ClientID:   client.ID,
		Name:       s.config.Name,
		Version:    ProtocolVersion,
		SampleRate: s.orch.Config().SampleRate,
	}
	if err := s.send(client, Push{Type: "server/hello", Payload: hello}); err != nil {
		s.logger.Warn("Error sending server hello", "error", err)
		return
	}
	unsubscribe = s.orch.Bus().SubscribeAll(func(e events.Event) {
		s.pushEvent(client, e)
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("WebSocket error", "client", client.ID, "error", err)
			}
			return
		}
		s.handleClientMessage(ctx, client, data)
	}
}

// clientWriter sends queued messages and keeps the connection alive
func (s *Server) clientWriter(client *Client) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-client.done:
			return

		case msg := <-client.sendChan:
			var err error
			_ = client.Conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			switch v := msg.(type) {
			case []byte:
				err = client.Conn.WriteMessage(websocket.BinaryMessage, v)
			default:
				var data []byte
				data, err = json.Marshal(v)
				if err != nil {
					s.logger.Error("Error marshaling message", "error", err)
					continue
				}
				err = client.Conn.WriteMessage(websocket.TextMessage, data)
			}
			if err != nil {
				s.logger.Warn("Error writing message", "client", client.ID, "error", err)
				return
			}

		case <-ticker.C:
			if err := client.Conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeDeadline)); err != nil {
				return
			}
		}
	}
}

// handleClientMessage dispatches one request and queues its reply
func (s *Server) handleClientMessage(ctx context.Context, client *Client, data []byte) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		s.logger.Warn("Error unmarshaling message", "client", client.ID, "error", err)
		_ = s.send(client, Reply{Type: "error", Error: fmt.Sprintf("%v: %v", ErrMalformed, err)})
		return
	}

	reply := Reply{ID: msg.ID, Type: msg.Type}
	handler, ok := s.handlers[msg.Type]
	if !ok {
		s.logger.Warn("Unknown message type", "type", msg.Type)
		reply.Error = "unknown message type: " + msg.Type
		_ = s.send(client, reply)
		return
	}

	reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	payload, err := handler(reqCtx, msg.Payload)
	if err != nil {
		s.logger.Warn("Command failed", "type", msg.Type, "error", err)
		reply.Error = err.Error()
	} else {
		reply.OK = true
		reply.Payload = payload
	}
	if err := s.send(client, reply); err != nil {
		s.logger.Warn("Error sending reply", "client", client.ID, "error", err)
	}
}

// pushEvent forwards a bus event; finished layers also get a binary frame.
func (s *Server) pushEvent(client *Client, e events.Event) {
	if err := s.send(client, Push{Type: eventPrefix + events.Name(e), Payload: e}); err != nil {
		s.logger.Debug("Dropped event", "client", client.ID, "event", events.Name(e), "error", err)
		return
	}

	finished, ok := e.(events.RecordingFinishedEvent)
	if !ok {
		return
	}
	frame, err := CreateLayerFrame(finished.LayerID, finished.AudioData)
	if err != nil {
		s.logger.Warn("Cannot send layer", "layer", finished.LayerID, "error", err)
		return
	}
	if err := s.send(client, frame); err != nil {
		s.logger.Warn("Dropped layer", "client", client.ID, "layer", finished.LayerID, "error", err)
	}
}

// send queues a message without blocking
func (s *Server) send(client *Client, msg any) error {
	select {
	case <-client.done:
		return errors.New("client closed")
	default:
	}
	select {
	case client.sendChan <- msg:
		return nil
	default:
		return errors.New("client send buffer full")
	}
}

func (s *Server) closeClients() {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	for _, c := range s.clients {
		_ = c.Conn.Close()
	}
}

func (c *Client) close() {
	select {
	case <-c.done:
	default:
		close(c.done)
	}
}
