package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"chatrelay/internal/auth"
	"chatrelay/internal/models"
	"chatrelay/internal/session"
	"chatrelay/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ConfigStore is the configuration repository surface the handlers use.
type ConfigStore interface {
	Upsert(ctx context.Context, cfg *models.ClientAgentConfig) (bool, error)
	Get(ctx context.Context, clientID, configID string) (*models.ClientAgentConfig, error)
	ListClientIDs(ctx context.Context) ([]string, error)
	ListConfigs(ctx context.Context, clientID string) ([]models.ConfigSummary, error)
}

// Handler wires HTTP routes to the relay's services.
type Handler struct {
	configs  ConfigStore
	auth     *auth.Service
	chat     *session.Orchestrator
	basePath string
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

// NewHandler constructs a Handler instance.
func NewHandler(configs ConfigStore, authService *auth.Service, chat *session.Orchestrator, basePath string) *Handler {
	return &Handler{
		configs:  configs,
		auth:     authService,
		chat:     chat,
		basePath: basePath,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log: log.With().Str("component", "api").Logger(),
	}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	root := router.Group(h.basePath)
	root.POST("/login", h.login)
	root.GET("/chat/:client_id/:config_id/:chat_id", h.startChat)

	authMW := h.auth.Middleware()
	root.GET("/validate", authMW, h.validate)

	mgmt := root.Group("", authMW)
	mgmt.POST("/add_config", h.addConfig)
	mgmt.POST("/get_config", h.getConfig)
	mgmt.GET("/clients", h.listClients)
	mgmt.GET("/clients/:client_id/configs", h.listConfigs)
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	token, err := h.auth.Login(req.Username, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"access_token": token,
		"token_type":   "bearer",
	})
}

func (h *Handler) validate(c *gin.Context) {
	username, ok := auth.UsernameFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"username": username})
}

func (h *Handler) addConfig(c *gin.Context) {
	var req models.ClientAgentConfig
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if strings.TrimSpace(req.ClientID) == "" || strings.TrimSpace(req.ConfigID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "client_id and config_id are required"})
		return
	}
	req.ApplyDefaults()
	updated, err := h.configs.Upsert(c.Request.Context(), &req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	message := "Configuration inserted successfully"
	if updated {
		message = "Configuration updated successfully"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":      "success",
		"status_code": http.StatusOK,
		"message":     message,
	})
}

func (h *Handler) getConfig(c *gin.Context) {
	var req models.FetchClientAgentConfig
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	cfg, err := h.configs.Get(c.Request.Context(), req.ClientID, req.ConfigID)
	if err != nil {
		if errors.Is(err, storage.ErrConfigNotFound) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "No such bot config found."})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, cfg)
}

func (h *Handler) listClients(c *gin.Context) {
	clients, err := h.configs.ListClientIDs(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"clients": clients})
}

func (h *Handler) listConfigs(c *gin.Context) {
	clientID := c.Param("client_id")
	configs, err := h.configs.ListConfigs(c.Request.Context(), clientID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"configs": configs})
}

// startChat upgrades the connection and hands it to the orchestrator,
// blocking until the session ends. The chat endpoint is unauthenticated.
func (h *Handler) startChat(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	h.chat.Run(c.Request.Context(), conn,
		c.Param("client_id"), c.Param("config_id"), c.Param("chat_id"))
}
