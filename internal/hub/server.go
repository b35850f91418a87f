// Package hub provides the WebSocket session server for the task dashboard.
//
// Each connected client gets a Session with its own URL state and selection
// store. Clients report query-string changes as navigate messages; the server
// answers with selection updates, history-replace commands, and transient
// notifications, and broadcasts task changes to every session.
package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/taskdeck/taskdeck/internal/task"
)

// Server manages WebSocket sessions and broadcasts task updates.
type Server struct {
	addr     string
	listener net.Listener
	server   *http.Server

	tasks *task.Store

	sessions   map[*Session]bool
	sessionsMu sync.RWMutex

	broadcast chan Message

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger *log.Logger
}

// Config holds server configuration.
type Config struct {
	// Port to listen on (default: 8080)
	Port int

	// Tasks is the cache sessions resolve selections from. Required.
	Tasks *task.Store

	// Logger for server activity (default: stderr logger)
	Logger *log.Logger
}

// NewServer creates a new hub server.
func NewServer(config *Config) *Server {
	if config.Logger == nil {
		config.Logger = log.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		addr:      fmt.Sprintf(":%d", config.Port),
		tasks:     config.Tasks,
		sessions:  make(map[*Session]bool),
		broadcast: make(chan Message, 100),
		ctx:       ctx,
		cancel:    cancel,
		logger:    config.Logger,
	}
}

// Start begins the HTTP server and WebSocket handler.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/", s.handleRoot)

	s.server = &http.Server{
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	s.wg.Add(1)
	go s.broadcastLoop()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Printf("Hub server listening on %s", ln.Addr())
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Printf("Server error: %v", err)
		}
	}()

	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() error {
	s.logger.Println("Stopping hub server")

	s.cancel()

	s.sessionsMu.Lock()
	for sess := range s.sessions {
		sess.close()
		_ = sess.conn.Close(websocket.StatusGoingAway, "Server shutting down")
		delete(s.sessions, sess)
	}
	s.sessionsMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	s.wg.Wait()

	s.logger.Println("Hub server stopped")
	return nil
}

// Broadcast sends a message to every connected session.
func (s *Server) Broadcast(msg Message) {
	select {
	case s.broadcast <- msg:
	case <-s.ctx.Done():
	default:
		s.logger.Println("Warning: broadcast channel full, dropping message")
	}
}

// BroadcastTaskUpdate formats and broadcasts a task change, followed by
// refreshed statistics.
func (s *Server) BroadcastTaskUpdate(data TaskUpdateData) {
	msg, err := newMessage(MessageTypeTaskUpdate, data)
	if err != nil {
		s.logger.Printf("Failed to marshal task update: %v", err)
		return
	}
	s.Broadcast(msg)
	s.broadcastStats()
}

// broadcastStats sends current cache statistics to all sessions.
func (s *Server) broadcastStats() {
	stats, err := s.currentStats()
	if err != nil {
		s.logger.Printf("Failed to compute stats: %v", err)
		return
	}

	msg, err := newMessage(MessageTypeStats, stats)
	if err != nil {
		s.logger.Printf("Failed to marshal stats: %v", err)
		return
	}
	s.Broadcast(msg)
}

// currentStats reads task counts from the cache.
func (s *Server) currentStats() (StatsData, error) {
	total, err := s.tasks.Count()
	if err != nil {
		return StatsData{}, err
	}
	byStatus, err := s.tasks.CountByStatus()
	if err != nil {
		return StatsData{}, err
	}
	return StatsData{Total: total, ByStatus: byStatus}, nil
}

// broadcastLoop fans broadcast messages out to every session's queue.
func (s *Server) broadcastLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return

		case msg := <-s.broadcast:
			if msg.Timestamp.IsZero() {
				msg.Timestamp = time.Now()
			}

			s.sessionsMu.RLock()
			sessions := make([]*Session, 0, len(s.sessions))
			for sess := range s.sessions {
				sessions = append(sessions, sess)
			}
			s.sessionsMu.RUnlock()

			for _, sess := range sessions {
				sess.enqueue(msg)
			}
		}
	}
}

// handleWebSocket upgrades HTTP connections and runs a session.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"}, // Allow all origins for development
	})
	if err != nil {
		s.logger.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	sess := newSession(s.ctx, conn, s.tasks, s.logger)

	s.sessionsMu.Lock()
	s.sessions[sess] = true
	count := len(s.sessions)
	s.sessionsMu.Unlock()

	s.logger.Printf("Session connected (total: %d)", count)

	// Initial stats so a fresh client can render counts immediately.
	if stats, err := s.currentStats(); err == nil {
		sess.send(MessageTypeStats, stats)
	}

	go sess.writeLoop()
	go func() {
		sess.readLoop()
		s.removeSession(sess)
	}()
}

// removeSession tears down a disconnected session.
func (s *Server) removeSession(sess *Session) {
	s.sessionsMu.Lock()
	if _, exists := s.sessions[sess]; !exists {
		s.sessionsMu.Unlock()
		return
	}
	delete(s.sessions, sess)
	count := len(s.sessions)
	s.sessionsMu.Unlock()

	sess.close()
	_ = sess.conn.Close(websocket.StatusNormalClosure, "")
	s.logger.Printf("Session disconnected (total: %d)", count)
}

// handleHealth returns server health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.sessionsMu.RLock()
	count := len(s.sessions)
	s.sessionsMu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":   "ok",
		"sessions": count,
	})
}

// handleRoot returns basic server information.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	_, _ = fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head>
    <title>Taskdeck</title>
</head>
<body>
    <h1>Taskdeck Hub</h1>
    <p>WebSocket endpoint: <code>ws://%s/ws</code></p>
    <p>Health check: <a href="/health">/health</a></p>
    <p>Send navigate messages to keep your selection in sync with the URL.</p>
</body>
</html>`, r.Host)
}

// GetAddr returns the server's listening address.
func (s *Server) GetAddr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// SessionCount returns the current number of connected sessions.
func (s *Server) SessionCount() int {
	s.sessionsMu.RLock()
	defer s.sessionsMu.RUnlock()
	return len(s.sessions)
}
