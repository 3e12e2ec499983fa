package battery

import (
	"fmt"
	"net/http"
	"strings"

	"battdevy/internal/common"
	"battdevy/internal/inventory"
	"battdevy/internal/media"

	"github.com/gin-gonic/gin"
)

// Handler handles HTTP requests for battery management
type Handler struct {
	service *Service
}

// NewHandler creates a new battery handler
func NewHandler(service *Service) *Handler {
	return &Handler{
		service: service,
	}
}

// GetGroups returns the user's battery groups
// GET /api/v1/battery-groups
func (h *Handler) GetGroups(c *gin.Context) {
	userID, err := common.GetUserID(c)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	filter, key, desc, err := parseGroupQuery(c)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	response, err := h.service.ListGroups(c.Request.Context(), userID, filter, key, desc)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// CreateGroup registers a new battery pack. Accepts JSON, or multipart form
// fields with an optional "image" file.
// POST /api/v1/battery-groups
func (h *Handler) CreateGroup(c *gin.Context) {
	userID, err := common.GetUserID(c)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	var req CreateGroupRequest
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

	response, err := h.service.CreateGroup(c.Request.Context(), userID, &req, img)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response)
}

// GetGroup returns one group with its units
// GET /api/v1/battery-groups/:id
func (h *Handler) GetGroup(c *gin.Context) {
	userID, err := common.GetUserID(c)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	groupID, err := common.ParamUUID(c, "id")
	if err != nil {
		common.RespondError(c, err)
		return
	}

	response, err := h.service.GetGroup(c.Request.Context(), userID, groupID)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// UpdateGroup edits a group
// PUT /api/v1/battery-groups/:id
func (h *Handler) UpdateGroup(c *gin.Context) {
	userID, err := common.GetUserID(c)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	groupID, err := common.ParamUUID(c, "id")
	if err != nil {
		common.RespondError(c, err)
		return
	}

	var req UpdateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	response, err := h.service.UpdateGroup(c.Request.Context(), userID, groupID, &req)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// DeleteGroup removes a group with its units
// DELETE /api/v1/battery-groups/:id
func (h *Handler) DeleteGroup(c *gin.Context) {
	userID, err := common.GetUserID(c)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	groupID, err := common.ParamUUID(c, "id")
	if err != nil {
		common.RespondError(c, err)
		return
	}

	if err := h.service.DeleteGroup(c.Request.Context(), userID, groupID); err != nil {
		common.RespondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// UploadGroupImage replaces the group image
// POST /api/v1/battery-groups/:id/image
func (h *Handler) UploadGroupImage(c *gin.Context) {
	userID, err := common.GetUserID(c)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	groupID, err := common.ParamUUID(c, "id")
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

	response, err := h.service.SetGroupImage(c.Request.Context(), userID, groupID, up)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// MarkAllEmpty marks every unit of the group empty
// POST /api/v1/battery-groups/:id/mark-empty
func (h *Handler) MarkAllEmpty(c *gin.Context) {
	userID, err := common.GetUserID(c)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	groupID, err := common.ParamUUID(c, "id")
	if err != nil {
		common.RespondError(c, err)
		return
	}

	response, err := h.service.MarkAllEmpty(c.Request.Context(), userID, groupID)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// GetBatteries returns the user's units for selection screens
// GET /api/v1/batteries
func (h *Handler) GetBatteries(c *gin.Context) {
	userID, err := common.GetUserID(c)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	filter, err := parseBatteryQuery(c)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	response, err := h.service.ListBatteries(c.Request.Context(), userID, filter)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// SetBatteryStatus applies a manual status change
// PUT /api/v1/batteries/:id/status
func (h *Handler) SetBatteryStatus(c *gin.Context) {
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

	var req SetStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}
	status, err := inventory.ParseStatus(req.Status)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	response, err := h.service.SetBatteryStatus(c.Request.Context(), userID, batteryID, status)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// RegisterRoutes mounts the battery endpoints on an authenticated group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	groups := rg.Group("/battery-groups")
	{
		groups.GET("", h.GetGroups)
		groups.POST("", h.CreateGroup)
		groups.GET("/:id", h.GetGroup)
		groups.PUT("/:id", h.UpdateGroup)
		groups.DELETE("/:id", h.DeleteGroup)
		groups.POST("/:id/image", h.UploadGroupImage)
		groups.POST("/:id/mark-empty", h.MarkAllEmpty)
	}

	batteries := rg.Group("/batteries")
	{
		batteries.GET("", h.GetBatteries)
		batteries.PUT("/:id/status", h.SetBatteryStatus)
	}
}

// Helper functions

func parseGroupQuery(c *gin.Context) (GroupFilter, SortKey, bool, error) {
	f := GroupFilter{Query: c.Query("q")}
	if v := c.Query("kind"); v != "" {
		kind, err := inventory.ParseKind(v)
		if err != nil {
			return f, "", false, err
		}
		f.Kind = kind
	}
	if v := c.Query("shape"); v != "" {
		shape, err := inventory.ParseShape(v)
		if err != nil {
			return f, "", false, err
		}
		f.Shape = shape
	}

	key := SortCreatedAt
	switch SortKey(c.Query("sort")) {
	case "", SortCreatedAt:
	case SortName:
		key = SortName
	default:
		return f, "", false, fmt.Errorf("invalid sort %q: %w", c.Query("sort"), common.ErrValidation)
	}
	desc, err := common.QueryDesc(c)
	if err != nil {
		return f, "", false, err
	}
	return f, key, desc, nil
}

func parseBatteryQuery(c *gin.Context) (BatteryFilter, error) {
	f := BatteryFilter{Query: c.Query("q")}
	installed, err := common.QueryBool(c, "installed")
	if err != nil {
		return f, err
	}
	f.Installed = installed
	if v := c.Query("status"); v != "" {
		if f.Status, err = inventory.ParseStatus(v); err != nil {
			return f, err
		}
	}
	if v := c.Query("shape"); v != "" {
		if f.Shape, err = inventory.ParseShape(v); err != nil {
			return f, err
		}
	}
	if v := c.Query("kind"); v != "" {
		if f.Kind, err = inventory.ParseKind(v); err != nil {
			return f, err
		}
	}
	return f, nil
}
