// Package server provides the HTTP API and the real-time WebSocket feed.
//
// The REST endpoints are thin plumbing over the coordinator, scheduler, and
// store; the WebSocket endpoint broadcasts run completions and scheduler
// state changes to connected clients.
package server

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

	"taskmirror/internal/bridge"
	"taskmirror/internal/scheduler"
	"taskmirror/internal/store"
	"taskmirror/internal/syncrun"
)

// Server manages the HTTP API and WebSocket broadcast connections.
type Server struct {
	addr     string
	listener net.Listener
	server   *http.Server

	store       *store.Store
	coordinator *syncrun.Coordinator
	scheduler   *scheduler.Scheduler
	remote      bridge.RemoteTaskStore
	local       bridge.LocalReminderStore

	// defaultInterval is the fallback scheduler cadence in minutes when
	// the settings table has none. Guarded by intervalMu so a config
	// reload can swap it while requests are in flight.
	defaultInterval int
	intervalMu      sync.Mutex

	clients   map[*websocket.Conn]bool
	clientsMu sync.RWMutex

	broadcast chan Message

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger *log.Logger
}

// Config holds server configuration.
type Config struct {
	// Addr is the address to listen on (default: 127.0.0.1:8080)
	Addr string

	// DefaultInterval is the fallback scheduler cadence in minutes when
	// the settings table has none.
	DefaultInterval int

	// Logger for server activity (default: stderr logger)
	Logger *log.Logger
}

// New creates a server over the given collaborators.
func New(cfg Config, st *store.Store, coord *syncrun.Coordinator, sched *scheduler.Scheduler, remote bridge.RemoteTaskStore, local bridge.LocalReminderStore) *Server {
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8080"
	}
	if cfg.DefaultInterval <= 0 {
		cfg.DefaultInterval = 15
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		addr:            cfg.Addr,
		store:           st,
		coordinator:     coord,
		scheduler:       sched,
		remote:          remote,
		local:           local,
		defaultInterval: cfg.DefaultInterval,
		clients:         make(map[*websocket.Conn]bool),
		broadcast:       make(chan Message, 100),
		ctx:             ctx,
		cancel:          cancel,
		logger:          cfg.Logger,
	}
}

// Start begins serving the API and WebSocket feed.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/settings", s.handleSettings)
	mux.HandleFunc("/api/sync/trigger", s.handleTrigger)
	mux.HandleFunc("/api/sync/logs", s.handleLogs)
	mux.HandleFunc("/api/scheduler/start", s.handleSchedulerStart)
	mux.HandleFunc("/api/scheduler/stop", s.handleSchedulerStop)

	s.server = &http.Server{
		Handler:     mux,
		ReadTimeout: 10 * time.Second,
		// No WriteTimeout: a sync trigger can legitimately outlive a
		// fixed deadline, and /ws connections are long-lived.
	}

	s.wg.Add(1)
	go s.broadcastLoop()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Printf("API server listening on %s", s.addr)
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Printf("Server error: %v", err)
		}
	}()

	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() error {
	s.logger.Println("Stopping API server")

	s.cancel()

	s.clientsMu.Lock()
	for conn := range s.clients {
		_ = conn.Close(websocket.StatusGoingAway, "Server shutting down")
		delete(s.clients, conn)
	}
	s.clientsMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	s.wg.Wait()

	s.logger.Println("API server stopped")
	return nil
}

// Addr returns the server's listening address.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// SetDefaultInterval replaces the fallback scheduler cadence, e.g. after a
// config reload. A value persisted in the settings table still wins.
func (s *Server) SetDefaultInterval(minutes int) {
	if minutes <= 0 {
		return
	}
	s.intervalMu.Lock()
	s.defaultInterval = minutes
	s.intervalMu.Unlock()
}

func (s *Server) defaultIntervalMinutes() int {
	s.intervalMu.Lock()
	defer s.intervalMu.Unlock()
	return s.defaultInterval
}

// ClientCount returns the current number of WebSocket clients.
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

// NotifyRun broadcasts a finished run to all clients. Wire this as the
// coordinator's Notify hook.
func (s *Server) NotifyRun(run *store.SyncRun) {
	data, err := json.Marshal(RunData{
		RunID:           run.ID,
		Status:          run.Status,
		Direction:       string(run.Direction),
		TasksSynced:     run.TasksSynced,
		RemindersSynced: run.RemindersSynced,
		ErrorMessage:    run.ErrorMessage,
	})
	if err != nil {
		s.logger.Printf("Failed to marshal run data: %v", err)
		return
	}
	s.Broadcast(Message{Type: MessageTypeRunComplete, Data: data})
}

// notifyScheduler broadcasts the current scheduler state.
func (s *Server) notifyScheduler() {
	sd := SchedulerData{Running: s.scheduler.Running()}
	if sd.Running {
		sd.IntervalMinutes = int(s.scheduler.Interval() / time.Minute)
		if next, ok := s.scheduler.NextRun(); ok {
			sd.NextRunAt = &next
		}
	}

	data, err := json.Marshal(sd)
	if err != nil {
		s.logger.Printf("Failed to marshal scheduler data: %v", err)
		return
	}
	s.Broadcast(Message{Type: MessageTypeScheduler, Data: data})
}

// Broadcast sends a message to all connected clients.
func (s *Server) Broadcast(msg Message) {
	select {
	case s.broadcast <- msg:
	case <-s.ctx.Done():
		return
	default:
		s.logger.Println("Warning: broadcast channel full, dropping message")
	}
}

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

			data, err := json.Marshal(msg)
			if err != nil {
				s.logger.Printf("Failed to marshal message: %v", err)
				continue
			}

			s.clientsMu.RLock()
			clients := make([]*websocket.Conn, 0, len(s.clients))
			for conn := range s.clients {
				clients = append(clients, conn)
			}
			s.clientsMu.RUnlock()

			// Write outside the lock so a slow client can't stall
			// broadcasts.
			for _, conn := range clients {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				err := conn.Write(ctx, websocket.MessageText, data)
				cancel()

				if err != nil {
					s.logger.Printf("Failed to send to client: %v", err)
					s.removeClient(conn)
				}
			}
		}
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.logger.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	s.clientsMu.Lock()
	s.clients[conn] = true
	clientCount := len(s.clients)
	s.clientsMu.Unlock()

	s.logger.Printf("Client connected (total: %d)", clientCount)

	go s.readLoop(conn)
}

// readLoop keeps the connection alive and detects client disconnects.
// Client messages are not processed.
func (s *Server) readLoop(conn *websocket.Conn) {
	defer s.removeClient(conn)

	for {
		_, _, err := conn.Read(s.ctx)
		if err != nil {
			return
		}
	}
}

func (s *Server) removeClient(conn *websocket.Conn) {
	s.clientsMu.Lock()
	if _, exists := s.clients[conn]; exists {
		delete(s.clients, conn)
		clientCount := len(s.clients)
		s.clientsMu.Unlock()

		_ = conn.Close(websocket.StatusNormalClosure, "")
		s.logger.Printf("Client disconnected (total: %d)", clientCount)
	} else {
		s.clientsMu.Unlock()
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"clients": s.ClientCount(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
