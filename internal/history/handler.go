package history

import (
	"net/http"

	"battdevy/internal/common"

	"github.com/gin-gonic/gin"
)

// Handler handles HTTP requests for usage history
type Handler struct {
	service *Service
}

// NewHandler creates a new history handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// GetDeviceHistory lists which batteries a device held
// GET /api/v1/devices/:id/history
func (h *Handler) GetDeviceHistory(c *gin.Context) {
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

	response, err := h.service.ListByDevice(c.Request.Context(), userID, deviceID)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// GetBatteryHistory lists the devices a battery sat in
// GET /api/v1/batteries/:id/history
func (h *Handler) GetBatteryHistory(c *gin.Context) {
	userID, err := common.GetUserID(c)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	batteryID, err := common.ParamUUID(c, "id")
	if err != nil {
		common.RespondError(c, err)
		return
	}

	response, err := h.service.ListByBattery(c.Request.Context(), userID, batteryID)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// RegisterRoutes mounts the history endpoints on an authenticated group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/devices/:id/history", h.GetDeviceHistory)
	rg.GET("/batteries/:id/history", h.GetBatteryHistory)
}
