// Package ws exposes rooms to game clients over WebSocket.
//
// Routes:
//
//	GET /healthz                  liveness
//	GET /rooms                    running rooms
//	GET /rooms/:roomId            one room
//	GET /ws/matchmaking           join the shared matchmaking room
//	GET /ws/rooms/:roomId         join a game room with a seat credential
package ws

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/giapdoan01/SoulDungeonBE/internal/multiplayer"
)

// Config holds transport settings.
type Config struct {
	// AllowedOrigins lists accepted Origin headers. Empty allows any origin.
	AllowedOrigins  []string
	ReadBufferSize  int
	WriteBufferSize int
	SendQueueSize   int   // Per-connection outgoing event buffer
	MaxMessageSize  int64 // Largest accepted client frame, in bytes
	JoinTimeout     time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendQueueSize:   256,
		MaxMessageSize:  4096,
		JoinTimeout:     5 * time.Second,
	}
}

// Server serves the HTTP and WebSocket routes for a coordinator.
type Server struct {
	coord    *multiplayer.Coordinator
	config   Config
	logger   *log.Logger
	upgrader websocket.Upgrader
	http     *http.Server
}

// NewServer creates a server listening on addr.
func NewServer(addr string, coord *multiplayer.Coordinator, cfg Config, logger *log.Logger) *Server {
	def := DefaultConfig()
	if cfg.SendQueueSize <= 0 {
		cfg.SendQueueSize = def.SendQueueSize
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = def.MaxMessageSize
	}
	if cfg.JoinTimeout <= 0 {
		cfg.JoinTimeout = def.JoinTimeout
	}
	if logger == nil {
		logger = log.Default()
	}

	s := &Server{
		coord:  coord,
		config: cfg,
		logger: logger,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  cfg.ReadBufferSize,
		WriteBufferSize: cfg.WriteBufferSize,
		CheckOrigin:     s.checkOrigin,
	}
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Router builds the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(s.requestLogger())

	router.GET("/healthz", s.handleHealth)
	router.GET("/rooms", s.handleListRooms)
	router.GET("/rooms/:roomId", s.handleGetRoom)
	router.GET("/ws/matchmaking", s.handleMatchmaking)
	router.GET("/ws/rooms/:roomId", s.handleGameRoom)
	return router
}

// ListenAndServe blocks until the server stops. It returns nil after Shutdown.
func (s *Server) ListenAndServe() error {
	s.logger.Info("starting HTTP server", "address", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops accepting requests. Hijacked WebSocket
// connections are closed when their rooms dispose.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.http.Addr
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "rooms": s.coord.RoomCount()})
}

func (s *Server) handleListRooms(c *gin.Context) {
	c.JSON(http.StatusOK, s.coord.List())
}

func (s *Server) handleGetRoom(c *gin.Context) {
	room, err := s.coord.Get(multiplayer.RoomID(c.Param("roomId")))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}
	c.JSON(http.StatusOK, room.Stats())
}

func (s *Server) handleMatchmaking(c *gin.Context) {
	room, err := s.coord.JoinOrCreate(multiplayer.RoomTypeMatchmaking)
	if err != nil {
		s.logger.Error("matchmaking unavailable", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "matchmaking unavailable"})
		return
	}
	s.serveRoom(c, room)
}

func (s *Server) handleGameRoom(c *gin.Context) {
	room, err := s.coord.Get(multiplayer.RoomID(c.Param("roomId")))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}
	if c.Query("sessionId") == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sessionId is required"})
		return
	}
	s.serveRoom(c, room)
}

// serveRoom upgrades the request and attaches the connection to room.
// The identity query parameters are trusted; authentication happens
// upstream.
func (s *Server) serveRoom(c *gin.Context, room multiplayer.Room) {
	sessionID := c.Query("sessionId")
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	level, err := strconv.Atoi(c.DefaultQuery("level", "1"))
	if err != nil || level < 1 {
		level = 1
	}
	opts := multiplayer.JoinOptions{
		DisplayName: c.Query("name"),
		Level:       level,
		UserID:      c.Query("userId"),
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("failed to upgrade connection", "error", err)
		return
	}

	logger := s.logger.With("session", sessionID, "room", string(room.ID()))
	cl := newClient(multiplayer.SessionID(sessionID), conn, s.config, logger)
	go cl.writePump()

	ctx, cancel := context.WithTimeout(context.Background(), s.config.JoinTimeout)
	defer cancel()
	if err := room.Join(ctx, cl, opts); err != nil {
		logger.Info("join refused", "error", err)
		cl.close(CloseJoinRefused, err.Error())
		return
	}

	go cl.readPump(room)
	go func() {
		select {
		case <-room.Done():
			cl.close(websocket.CloseGoingAway, "room closed")
		case <-cl.Done():
		}
	}()
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.config.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	return origin == "" || slices.Contains(s.config.AllowedOrigins, origin)
}

// requestLogger logs each HTTP request.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"took", time.Since(start),
		)
	}
}
