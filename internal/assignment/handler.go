package assignment

import (
	"net/http"

	"battdevy/internal/common"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AssignRequest represents the desired set of installed batteries
type AssignRequest struct {
	BatteryIDs []uuid.UUID `json:"battery_ids"`
}

// Handler handles HTTP requests for battery assignment
type Handler struct {
	service *Service
}

// NewHandler creates a new assignment handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// AssignBatteries replaces the batteries installed in a device
// PUT /api/v1/devices/:id/batteries
func (h *Handler) AssignBatteries(c *gin.Context) {
	userID, err := common.GetUserID(c)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	deviceID, err := common.ParamUUID(c, "id")
	if err != nil {
		common.RespondError(c, err)
		return
	}

	var req AssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	response, err := h.service.AssignBatteriesToDevice(c.Request.Context(), userID, deviceID, req.BatteryIDs)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// RemoveBatteries empties a device
// DELETE /api/v1/devices/:id/batteries
func (h *Handler) RemoveBatteries(c *gin.Context) {
	userID, err := common.GetUserID(c)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	deviceID, err := common.ParamUUID(c, "id")
	if err != nil {
		common.RespondError(c, err)
		return
	}

	response, err := h.service.RemoveBatteriesFromDevice(c.Request.Context(), userID, deviceID)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// AddBattery installs one more battery into a device
// POST /api/v1/devices/:id/batteries/:battery_id
func (h *Handler) AddBattery(c *gin.Context) {
	userID, err := common.GetUserID(c)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	deviceID, err := common.ParamUUID(c, "id")
	if err != nil {
		common.RespondError(c, err)
		return
	}
	batteryID, err := common.ParamUUID(c, "battery_id")
	if err != nil {
		common.RespondError(c, err)
		return
	}

	response, err := h.service.AddBatteryToDevice(c.Request.Context(), userID, deviceID, batteryID)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// RegisterRoutes mounts the assignment endpoints on an authenticated group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.PUT("/devices/:id/batteries", h.AssignBatteries)
	rg.DELETE("/devices/:id/batteries", h.RemoveBatteries)
	rg.POST("/devices/:id/batteries/:battery_id", h.AddBattery)
}
