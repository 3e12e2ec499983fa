package device

import (
	"fmt"
	"net/http"
	"strings"

	"battdevy/internal/common"
	"battdevy/internal/inventory"
	"battdevy/internal/media"

	"github.com/gin-gonic/gin"
)

// Handler handles HTTP requests for devices
type Handler struct {
	service *Service
}

// NewHandler creates a new device handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// GetDevices returns the user's devices
// GET /api/v1/devices
func (h *Handler) GetDevices(c *gin.Context) {
	userID, err := common.GetUserID(c)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	filter, key, desc, err := parseQuery(c)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	response, err := h.service.ListDevices(c.Request.Context(), userID, filter, key, desc)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// CreateDevice registers a device. Accepts JSON, or multipart form fields
// with an optional "image" file.
// POST /api/v1/devices
func (h *Handler) CreateDevice(c *gin.Context) {
	userID, err := common.GetUserID(c)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	var req CreateDeviceRequest
	var img *media.Upload
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		if err := c.ShouldBind(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
			return
		}
		if fh, err := c.FormFile("image"); err == nil {
			up, closer, err := media.FromFileHeader(fh)
			if err != nil {
				common.RespondError(c, err)
				return
			}
			defer closer.Close()
			img = up
		}
	} else if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	response, err := h.service.CreateDevice(c.Request.Context(), userID, &req, img)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response)
}

// GetDevice returns one device
// GET /api/v1/devices/:id
func (h *Handler) GetDevice(c *gin.Context) {
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

	response, err := h.service.GetDevice(c.Request.Context(), userID, deviceID)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// UpdateDevice edits a device
// PUT /api/v1/devices/:id
func (h *Handler) UpdateDevice(c *gin.Context) {
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

	var req UpdateDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	response, err := h.service.UpdateDevice(c.Request.Context(), userID, deviceID, &req)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// DeleteDevice removes a device
// DELETE /api/v1/devices/:id
func (h *Handler) DeleteDevice(c *gin.Context) {
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

	if err := h.service.DeleteDevice(c.Request.Context(), userID, deviceID); err != nil {
		common.RespondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// UploadDeviceImage replaces the device image
// POST /api/v1/devices/:id/image
func (h *Handler) UploadDeviceImage(c *gin.Context) {
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

	fh, err := c.FormFile("image")
	if err != nil {
		common.RespondError(c, fmt.Errorf("image file required: %w", common.ErrInvalidImage))
		return
	}
	up, closer, err := media.FromFileHeader(fh)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	defer closer.Close()

	response, err := h.service.SetDeviceImage(c.Request.Context(), userID, deviceID, up)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// RegisterRoutes mounts the device endpoints on an authenticated group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	devices := rg.Group("/devices")
	{
		devices.GET("", h.GetDevices)
		devices.POST("", h.CreateDevice)
		devices.GET("/:id", h.GetDevice)
		devices.PUT("/:id", h.UpdateDevice)
		devices.DELETE("/:id", h.DeleteDevice)
		devices.POST("/:id/image", h.UploadDeviceImage)
	}
}

func parseQuery(c *gin.Context) (Filter, SortKey, bool, error) {
	f := Filter{Query: c.Query("q")}
	var err error
	if v := c.Query("type"); v != "" {
		if f.Type, err = inventory.ParseDeviceType(v); err != nil {
			return f, "", false, err
		}
	}
	if v := c.Query("shape"); v != "" {
		if f.Shape, err = inventory.ParseShape(v); err != nil {
			return f, "", false, err
		}
	}
	if f.HasBatteries, err = common.QueryBool(c, "installed"); err != nil {
		return f, "", false, err
	}

	key, ok := ParseSortKey(c.Query("sort"))
	if !ok {
		return f, "", false, fmt.Errorf("invalid sort %q: %w", c.Query("sort"), common.ErrValidation)
	}
	desc, err := common.QueryDesc(c)
	if err != nil {
		return f, "", false, err
	}
	return f, key, desc, nil
}
