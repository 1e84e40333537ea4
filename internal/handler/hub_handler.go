package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/yourorg/taskboard/internal/hub"
	"github.com/yourorg/taskboard/internal/middleware"
)

// HubHandler upgrades authenticated requests to push channels.
type HubHandler struct {
	hub       *hub.Hub
	validator middleware.TokenValidator
	upgrader  websocket.Upgrader
	logger    *zap.Logger
}

// NewHubHandler creates a new hub handler
func NewHubHandler(h *hub.Hub, validator middleware.TokenValidator, logger *zap.Logger) *HubHandler {
	return &HubHandler{
		hub:       h,
		validator: validator,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The channel is authenticated by token, not by origin.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

// Connect authenticates and upgrades the request, then hands the connection
// to the hub. The token arrives either as an access_token query parameter
// (browser websocket clients cannot set headers) or as a bearer header.
// GET /notificationHub
func (h *HubHandler) Connect(c *gin.Context) {
	token := c.Query("access_token")
	if token == "" {
		authHeader := c.GetHeader("Authorization")
		if parts := strings.Split(authHeader, " "); len(parts) == 2 && parts[0] == "Bearer" {
			token = parts[1]
		}
	}
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization required"})
		return
	}

	userID, err := h.validator.ValidateToken(token)
	if err != nil {
		h.logger.Debug("hub token validation failed", zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	h.hub.Register(userID, conn)
}
