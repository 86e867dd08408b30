package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/astralcore/haven/internal/crisis"
	"github.com/astralcore/haven/internal/hub"
	"github.com/astralcore/haven/internal/middleware"
	"github.com/astralcore/haven/internal/models"
	"github.com/astralcore/haven/internal/presence"
)

// Server exposes the websocket entry point and the small read-only HTTP
// surface around the hub. Everything stateful happens over the socket;
// HTTP is for connecting, health, and operational visibility.
type Server struct {
	hub         *hub.Hub
	presence    *presence.Tracker
	coordinator *crisis.Coordinator
	registry    *prometheus.Registry
	jwtSecret   string
	logger      *zap.Logger

	upgrader websocket.Upgrader
}

func NewServer(h *hub.Hub, tracker *presence.Tracker, coordinator *crisis.Coordinator, registry *prometheus.Registry, jwtSecret string, logger *zap.Logger) *Server {
	return &Server{
		hub:         h,
		presence:    tracker,
		coordinator: coordinator,
		registry:    registry,
		jwtSecret:   jwtSecret,
		logger:      logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Browser clients come from app origins the gateway already
			// vetted; the hub re-checks the credential itself.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	srv := gin.New()
	srv.Use(gin.Recovery(), middleware.RequestLogger(s.logger))

	srv.GET("/v1/health", s.handleHealth)
	srv.GET("/v1/ws", s.handleWebsocket)
	srv.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))

	// Operational surface, visible to the crisis board roles only.
	ops := srv.Group("/v1")
	ops.Use(middleware.RequireRole(s.jwtSecret, func(role models.Role) bool {
		return models.PermissionsFor(role).Has(models.CapViewCrisisBoard)
	}))
	ops.GET("/stats", s.handleStats)
	ops.GET("/users/:id/online", s.handleUserOnline)

	return srv
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleWebsocket upgrades the request and hands the socket to the hub.
// The credential rides in the token query parameter or the Authorization
// header; an empty credential connects anonymously.
func (s *Server) handleWebsocket(c *gin.Context) {
	credential := c.Query("token")
	if credential == "" {
		if h := c.GetHeader("Authorization"); len(h) > 7 && h[:7] == "Bearer " {
			credential = h[7:]
		}
	}
	deviceLabel := c.Query("device")

	ws, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	if _, perr := s.hub.Connect(ws, credential, deviceLabel); perr != nil {
		// The handshake already succeeded, so the rejection goes over
		// the socket before it closes.
		ws.WriteJSON(gin.H{"error": perr})
		ws.Close()
		return
	}
}

func (s *Server) handleStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"active_connections": s.hub.ActiveConnections(),
		"online_users":       s.presence.OnlineCount(),
		"active_counselors":  s.coordinator.ActiveCounselorsCount(),
		"open_alerts":        s.coordinator.OpenAlertCounts(),
	})
}

func (s *Server) handleUserOnline(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user_id": userID,
		"online":  s.hub.IsUserOnline(userID),
	})
}
