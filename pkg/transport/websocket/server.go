package websocket

import (
	"net/http"
	"sync"

	"github.com/HMasataka/hubsim/internal/config"
	"github.com/HMasataka/hubsim/internal/logging"
	"github.com/HMasataka/hubsim/pkg/hub"
	"github.com/gorilla/websocket"
	"github.com/rs/xid"
)

// Server upgrades browser sockets and gives each one its own hub session
type Server struct {
	upgrader websocket.Upgrader
	logger   *logging.Logger
	options  ServerOptions

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewServer creates a new WebSocket server
func NewServer(opts ...ServerOption) *Server {
	options := ServerOptions{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
		Simulation: config.DefaultSimulation(),
		Conn:       DefaultConnOptions(),
	}

	for _, opt := range opts {
		opt(&options)
	}

	if options.Logger == nil {
		options.Logger = logging.Discard()
	}

	return &Server{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  options.ReadBufferSize,
			WriteBufferSize: options.WriteBufferSize,
			CheckOrigin:     options.CheckOrigin,
		},
		logger:   options.Logger,
		options:  options,
		sessions: make(map[string]*Session),
	}
}

// Sessions returns the number of open sessions
func (s *Server) Sessions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade error",
			"error", err,
			"remote_addr", r.RemoteAddr,
		)
		return
	}

	sessionID := xid.New().String()
	sessionLogger := s.logger.WithFields(map[string]any{"session_id": sessionID})

	client := hub.NewClient(hub.Options{
		Simulation:   s.options.Simulation,
		Logger:       sessionLogger,
		Scheduler:    s.options.Scheduler,
		ErrorHandler: s.options.ErrorHandler,
	})

	conn := NewConn(sessionID, ws, s.logger, s.options.Conn)
	session := NewSession(sessionID, client, conn, s.logger)

	s.mu.Lock()
	s.sessions[sessionID] = session
	s.mu.Unlock()

	conn.Start()

	s.logger.Info("session opened",
		"session_id", sessionID,
		"remote_addr", r.RemoteAddr,
	)

	<-conn.Done()

	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()

	if err := session.Close(); err != nil {
		s.logger.Warn("failed to close session", "session_id", sessionID, "error", err)
	}
	conn.Close()

	s.logger.Info("session closed", "session_id", sessionID)
}
