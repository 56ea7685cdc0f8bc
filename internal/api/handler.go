package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/fzkn4/gate-security/internal/models"
	"github.com/fzkn4/gate-security/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Version is reported by the health endpoint
const Version = "1.0.0"

// Handler serves the HTTP API on top of a Service
type Handler struct {
	service service.Service
	log     logrus.FieldLogger
}

// NewHandler creates a new Handler
func NewHandler(svc service.Service, log logrus.FieldLogger) *Handler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handler{service: svc, log: log}
}

// SetupRoutes registers every route on router
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(RequestID(), RequestLogger(h.log))

	router.GET("/", h.Health)

	api := router.Group("/api")
	api.POST("/auth/login", h.Login)

	authed := api.Group("")
	authed.Use(AuthMiddleware(h.service, h.log))
	{
		authed.POST("/auth/logout", h.Logout)
		authed.GET("/auth/me", h.Me)

		authed.POST("/users", h.CreateUser)
		authed.GET("/users", h.ListUsers)
		authed.GET("/users/:id", h.GetUser)
		authed.PUT("/users/:id", h.UpdateUser)
		authed.DELETE("/users/:id", h.DeleteUser)

		authed.POST("/vehicles", h.CreateVehicle)
		authed.GET("/vehicles", h.ListVehicles)
		authed.GET("/vehicles/:id", h.GetVehicle)
		authed.PUT("/vehicles/:id", h.UpdateVehicle)
		authed.DELETE("/vehicles/:id", h.DeleteVehicle)
		authed.GET("/vehicles/:id/code.png", h.VehicleCode)

		authed.POST("/scan", h.Scan)
		authed.GET("/entries", h.ListEntries)
		authed.GET("/stats", h.Stats)
	}
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, models.HealthResponse{
		Message: "Gate Security API",
		Status:  "running",
		Version: Version,
		Time:    time.Now().UTC(),
	})
}

// Authentication handlers
func (h *Handler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	resp, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) Logout(c *gin.Context) {
	if err := h.service.Logout(c.Request.Context(), c.GetString(tokenKey)); err != nil {
		writeError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, models.MessageResponse{
		Status:  "success",
		Message: "Logged out",
	})
}

func (h *Handler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, models.IdentityResponse{
		Status: "success",
		User:   currentIdentity(c),
	})
}

// parseID reads a positive integer path parameter
func parseID(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %s must be a positive integer", models.ErrInvalidInput, name)
	}
	return id, nil
}

// parseOptionalID reads a positive integer query parameter; absent is nil
func parseOptionalID(c *gin.Context, name string) (*int64, error) {
	raw, ok := c.GetQuery(name)
	if !ok || raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil, fmt.Errorf("%w: %s must be a positive integer", models.ErrInvalidInput, name)
	}
	return &id, nil
}
