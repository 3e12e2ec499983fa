package auth

import (
	"net/http"

	"battdevy/internal/common"

	"github.com/gin-gonic/gin"
)

// Handler handles HTTP requests for accounts
type Handler struct {
	service *Service
}

// NewHandler creates a new auth handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Signup creates an account
// POST /api/v1/auth/signup
func (h *Handler) Signup(c *gin.Context) {
	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	response, err := h.service.Signup(c.Request.Context(), &req)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response)
}

// Login issues a session token
// POST /api/v1/auth/login
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	response, err := h.service.Login(c.Request.Context(), &req)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// DemoLogin issues a session for the demo account
// POST /api/v1/auth/demo
func (h *Handler) DemoLogin(c *gin.Context) {
	response, err := h.service.DemoLogin(c.Request.Context())
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// Me returns the current user
// GET /api/v1/auth/me
func (h *Handler) Me(c *gin.Context) {
	userID, err := common.GetUserID(c)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	user, err := h.service.Me(c.Request.Context(), userID)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}

// UpdateMe edits the current user's profile
// PUT /api/v1/auth/me
func (h *Handler) UpdateMe(c *gin.Context) {
	userID, err := common.GetUserID(c)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	user, err := h.service.UpdateProfile(c.Request.Context(), userID, &req)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}

// RegisterPublicRoutes mounts signup and login.
func (h *Handler) RegisterPublicRoutes(rg *gin.RouterGroup) {
	rg.POST("/auth/signup", h.Signup)
	rg.POST("/auth/login", h.Login)
	rg.POST("/auth/demo", h.DemoLogin)
}

// RegisterRoutes mounts the endpoints needing a session. writeGuards run
// before UpdateMe only.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, writeGuards ...gin.HandlerFunc) {
	rg.GET("/auth/me", h.Me)
	rg.PUT("/auth/me", append(writeGuards, h.UpdateMe)...)
}
