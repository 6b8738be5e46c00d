// Package dashboard serves a live WebSocket feed of memo changes.
//
// The dashboard broadcasts person changes, sync results, mode switches and cloud
// notices to connected WebSocket clients, and exposes /health, /metrics and a JSON
// snapshot of the collection.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/datememo/datememo/internal/observability"
	"github.com/datememo/datememo/internal/person"
)

// MessageType defines the type of dashboard message
type MessageType string

const (
	// MessageTypePersonUpdate indicates a person was added, updated or deleted
	MessageTypePersonUpdate MessageType = "person_update"

	// MessageTypeReplaced indicates the whole local collection was replaced
	MessageTypeReplaced MessageType = "replaced"

	// MessageTypeSyncComplete indicates a full reconciliation completed
	MessageTypeSyncComplete MessageType = "sync_complete"

	// MessageTypeMode indicates the data mode changed
	MessageTypeMode MessageType = "mode"

	// MessageTypeNotice carries a user-facing warning, such as a failed cloud write
	MessageTypeNotice MessageType = "notice"

	// MessageTypeStats carries collection statistics
	MessageTypeStats MessageType = "stats"
)

// Message represents a dashboard broadcast message
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// PersonSource provides the current collection.
type PersonSource interface {
	GetAll() []person.Person
}

// Server pushes memo changes to dashboard viewers over WebSocket.
type Server struct {
	addr     string
	listener net.Listener
	server   *http.Server
	source   PersonSource

	viewersMu sync.RWMutex
	viewers   map[*websocket.Conn]struct{}

	// outbox buffers messages between Broadcast and the fan-out goroutine.
	outbox chan Message

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger *log.Logger
}

// Config holds server configuration
type Config struct {
	// Port to listen on (default: 8787, 0 picks a free port)
	Port int

	// Host to bind (default: 127.0.0.1)
	Host string

	// Source backs /api/persons and the stats messages. Optional.
	Source PersonSource

	// Logger for server activity (default: stderr logger)
	Logger *log.Logger
}

// outboxSize bounds the messages queued for viewers before Broadcast drops.
const outboxSize = 100

// writeTimeout caps one write to one viewer.
const writeTimeout = 5 * time.Second

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Port:   8787,
		Host:   "127.0.0.1",
		Logger: log.New(os.Stderr, "[dashboard] ", log.LstdFlags),
	}
}

// NewServer creates a dashboard server. It does not listen until Start.
func NewServer(config *Config) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[dashboard] ", log.LstdFlags)
	}
	if config.Host == "" {
		config.Host = "127.0.0.1"
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		addr:    net.JoinHostPort(config.Host, fmt.Sprint(config.Port)),
		source:  config.Source,
		viewers: make(map[*websocket.Conn]struct{}),
		outbox:  make(chan Message, outboxSize),
		ctx:     ctx,
		cancel:  cancel,
		logger:  config.Logger,
	}
}

// Handler returns the HTTP routes. Start serves them; tests may mount them directly.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/persons", s.handlePersons)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/", s.handleRoot)
	return mux
}

// Start listens on the configured address and begins fanning out memo messages.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln

	s.server = &http.Server{
		Handler:     s.Handler(),
		ReadTimeout: 10 * time.Second,
	}

	s.wg.Add(2)
	go s.fanOut()
	go func() {
		defer s.wg.Done()
		s.logger.Printf("Dashboard listening on %s", ln.Addr())
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Printf("Dashboard serve error: %v", err)
		}
	}()
	return nil
}

// Stop disconnects every viewer and shuts the HTTP server down.
func (s *Server) Stop() error {
	s.logger.Println("Stopping dashboard")
	s.cancel()

	s.viewersMu.Lock()
	for conn := range s.viewers {
		s.forget(conn)
		_ = conn.Close(websocket.StatusGoingAway, "dashboard closed")
	}
	s.viewersMu.Unlock()

	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shut down dashboard: %w", err)
		}
	}

	s.wg.Wait()
	s.logger.Println("Dashboard stopped")
	return nil
}

// Broadcast queues msg for every viewer. When the outbox is full the message is
// dropped; viewers catch up from the next stats message or /api/persons.
func (s *Server) Broadcast(msg Message) {
	select {
	case s.outbox <- msg:
	case <-s.ctx.Done():
	default:
		s.logger.Printf("Warning: dashboard outbox full, dropping %s message", msg.Type)
	}
}

// fanOut writes each queued message to the viewers connected at that moment.
func (s *Server) fanOut() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		case msg := <-s.outbox:
			if msg.Timestamp.IsZero() {
				msg.Timestamp = time.Now()
			}
			data, err := json.Marshal(msg)
			if err != nil {
				s.logger.Printf("Failed to encode %s message: %v", msg.Type, err)
				continue
			}
			for _, conn := range s.snapshotViewers() {
				if err := s.write(conn, data); err != nil {
					s.logger.Printf("Dropping viewer after failed %s write: %v", msg.Type, err)
					s.disconnect(conn)
				}
			}
		}
	}
}

func (s *Server) snapshotViewers() []*websocket.Conn {
	s.viewersMu.RLock()
	defer s.viewersMu.RUnlock()
	out := make([]*websocket.Conn, 0, len(s.viewers))
	for conn := range s.viewers {
		out = append(out, conn)
	}
	return out
}

func (s *Server) write(conn *websocket.Conn, data []byte) error {
	ctx, cancel := context.WithTimeout(s.ctx, writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, data)
}

// handleWebSocket registers a viewer, sends it the current stats, and holds the
// connection open until the viewer leaves. Viewers never send anything we act on.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"localhost:*", "127.0.0.1:*"},
	})
	if err != nil {
		s.logger.Printf("Viewer handshake failed: %v", err)
		return
	}
	defer s.disconnect(conn)

	s.viewersMu.Lock()
	s.viewers[conn] = struct{}{}
	n := len(s.viewers)
	s.viewersMu.Unlock()
	observability.WSConnections.Inc()
	s.logger.Printf("Viewer connected (%d watching)", n)

	if stats, err := statsMessage(s.source); err == nil {
		if data, err := json.Marshal(stats); err == nil {
			_ = s.write(conn, data)
		}
	}

	for {
		if _, _, err := conn.Read(s.ctx); err != nil {
			return
		}
	}
}

// disconnect removes a viewer once, whichever of the fan-out or the read side
// notices first.
func (s *Server) disconnect(conn *websocket.Conn) {
	s.viewersMu.Lock()
	_, ok := s.viewers[conn]
	if ok {
		s.forget(conn)
	}
	n := len(s.viewers)
	s.viewersMu.Unlock()
	if !ok {
		return
	}

	_ = conn.Close(websocket.StatusNormalClosure, "")
	s.logger.Printf("Viewer disconnected (%d watching)", n)
}

// forget drops conn from the viewer set. viewersMu must be held.
func (s *Server) forget(conn *websocket.Conn) {
	delete(s.viewers, conn)
	observability.WSConnections.Dec()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"clients": s.ClientCount(),
	})
}

func (s *Server) handlePersons(w http.ResponseWriter, r *http.Request) {
	persons := []person.Person{}
	if s.source != nil {
		persons = s.source.GetAll()
	}
	person.SortByUpdated(persons, true)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(persons)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html")
	_, _ = fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head>
    <title>Dating Memo Dashboard</title>
</head>
<body>
    <h1>Dating Memo Dashboard</h1>
    <p>WebSocket endpoint: <code>ws://%s/ws</code></p>
    <p>Snapshot: <a href="/api/persons">/api/persons</a></p>
    <p>Health check: <a href="/health">/health</a> &middot; Metrics: <a href="/metrics">/metrics</a></p>
</body>
</html>`, r.Host)
}

// GetAddr returns the server's listening address
func (s *Server) GetAddr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// ClientCount returns how many viewers are connected.
func (s *Server) ClientCount() int {
	s.viewersMu.RLock()
	defer s.viewersMu.RUnlock()
	return len(s.viewers)
}
