package plan

import (
	"net/http"

	"battdevy/internal/common"

	"github.com/gin-gonic/gin"
)

// Handler handles HTTP requests for plans
type Handler struct {
	service *Service
}

// NewHandler creates a new plan handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// GetUsage returns the plan with current usage
// GET /api/v1/plan
func (h *Handler) GetUsage(c *gin.Context) {
	userID, err := common.GetUserID(c)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	response, err := h.service.Usage(c.Request.Context(), userID)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// ChangeTier switches the user's plan tier
// PUT /api/v1/plan
func (h *Handler) ChangeTier(c *gin.Context) {
	userID, err := common.GetUserID(c)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	var req ChangeTierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}
	tier, err := ParseTier(req.Tier)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	if _, err := h.service.ChangeTier(c.Request.Context(), userID, tier); err != nil {
		common.RespondError(c, err)
		return
	}
	response, err := h.service.Usage(c.Request.Context(), userID)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// RegisterRoutes mounts the plan endpoints on an authenticated group.
// writeGuards run before ChangeTier only.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, writeGuards ...gin.HandlerFunc) {
	rg.GET("/plan", h.GetUsage)
	rg.PUT("/plan", append(writeGuards, h.ChangeTier)...)
}
