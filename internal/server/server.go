package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"

	rand "math/rand/v2"

	"github.com/coder/quartz"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/lox/rpsparty/internal/game"
	"github.com/lox/rpsparty/internal/roomcode"
)

// Server accepts WebSocket connections, allocates connection ids and
// spawns one session per connection. Rooms and the registry are the
// only state sessions share.
type Server struct {
	upgrader websocket.Upgrader
	registry *Registry
	rooms    *RoomStore

	mu          sync.RWMutex
	connections map[uint64]*Connection
	nextID      atomic.Uint64

	config     *ServerConfig
	clock      quartz.Clock
	logger     zerolog.Logger
	httpServer *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithConfig replaces the default configuration.
func WithConfig(cfg *ServerConfig) Option {
	return func(s *Server) {
		s.config = cfg
	}
}

// WithClock injects the clock used for connection keepalives. Tests
// use a quartz mock here.
func WithClock(clock quartz.Clock) Option {
	return func(s *Server) {
		s.clock = clock
	}
}

// NewServer creates a server. The RNG seeds room code generation and
// the round dealer, so a fixed seed makes the whole broker
// deterministic.
func NewServer(logger zerolog.Logger, rng *rand.Rand, opts ...Option) *Server {
	s := &Server{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// The broker does no authentication; origin checking
				// belongs to a fronting proxy.
				return true
			},
		},
		connections: make(map[uint64]*Connection),
		config:      DefaultServerConfig(),
		clock:       quartz.NewReal(),
		logger:      logger.With().Str("component", "server").Logger(),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.registry = NewRegistry(logger)

	// The code generator runs under the store lock and the dealer
	// under its own, so each gets a stream derived from the seed
	// rather than sharing one Rand across two locks.
	dealerRNG := rand.New(rand.NewPCG(rng.Uint64(), rng.Uint64()))
	s.rooms = NewRoomStore(logger, s.registry, roomcode.NewGenerator(rng), game.NewDealer(dealerRNG))

	return s
}

// Rooms exposes the room store.
func (s *Server) Rooms() *RoomStore {
	return s.rooms
}

// Start listens on addr and serves until Shutdown.
func (s *Server) Start(addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/stats", s.handleStats)

	s.httpServer = &http.Server{Addr: addr, Handler: mux}

	s.logger.Info().Str("addr", addr).Msg("Starting WebSocket server")
	return s.httpServer.ListenAndServe()
}

// Shutdown stops the listener and closes every live connection.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	conns := make([]*Connection, 0, len(s.connections))
	for _, conn := range s.connections {
		conns = append(conns, conn)
	}
	s.mu.Unlock()

	for _, conn := range conns {
		_ = conn.Close()
	}

	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// handleWebSocket upgrades the request and spawns a session.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to upgrade connection")
		return
	}

	id := s.nextID.Add(1)
	conn := NewConnection(id, ws, s)

	if err := s.registry.Register(id, conn.Outbound()); err != nil {
		// Monotonic ids make this unreachable short of a bug.
		s.logger.Error().Err(err).Uint64("conn_id", id).Msg("Connection registration failed")
		_ = ws.Close()
		return
	}

	s.mu.Lock()
	s.connections[id] = conn
	total := len(s.connections)
	s.mu.Unlock()

	s.logger.Info().Uint64("conn_id", id).Int("total", total).Msg("Client connected")

	conn.Start()

	go func() {
		<-conn.Done()
		s.mu.Lock()
		delete(s.connections, id)
		total := len(s.connections)
		s.mu.Unlock()
		s.logger.Info().Uint64("conn_id", id).Int("total", total).Msg("Client disconnected")
	}()
}

// disconnect force-closes another connection, used for the host-left
// cascade. The close waits for the write pump to flush the room-closed
// notice. The closed session runs its own cleanup; removal from the
// registry and room store is idempotent either way.
func (s *Server) disconnect(id uint64) {
	s.mu.RLock()
	conn, ok := s.connections[id]
	s.mu.RUnlock()

	if ok {
		go conn.closeAfterFlush()
	}
	s.registry.Unregister(id)
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "OK")
}

// handleStats reports broker occupancy.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	conns := len(s.connections)
	s.mu.RUnlock()

	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "Connected clients: %d\n", conns)
	_, _ = fmt.Fprintf(w, "Active rooms: %d\n", s.rooms.RoomCount())
}
