package export

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"battdevy/internal/common"

	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Handler handles HTTP requests for exports
type Handler struct {
	service *Service
}

// NewHandler creates a new export handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// GetInventory streams the inventory workbook
// GET /api/v1/export/inventory.xlsx
func (h *Handler) GetInventory(c *gin.Context) {
	userID, err := common.GetUserID(c)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	buf := &bytes.Buffer{}
	if err := h.service.Write(c.Request.Context(), userID, buf); err != nil {
		common.RespondError(c, err)
		return
	}

	fileName := fmt.Sprintf("battdevy_%s.xlsx", time.Now().Format("20060102_150405"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, fileName))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// RegisterRoutes mounts the export endpoints on an authenticated group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/export/inventory.xlsx", h.GetInventory)
}
