package media

import (
	"net/http"
	"strings"

	"battdevy/internal/common"

	"github.com/gin-gonic/gin"
)

// Handler serves stable image links that redirect to fresh signed URLs
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// GetImage redirects to a signed URL for one of the caller's own images
// GET /api/v1/media/:bucket/*path
func (h *Handler) GetImage(c *gin.Context) {
	userID, err := common.GetUserID(c)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	bucket := c.Param("bucket")
	path := strings.TrimPrefix(c.Param("path"), "/")

	// path traversal and foreign objects
	if !validBucket(bucket) || strings.Contains(path, "..") || !strings.HasPrefix(path, userID.String()+"/") {
		c.JSON(http.StatusNotFound, gin.H{"error": "Image not found"})
		return
	}

	url, err := h.service.SignedURL(c.Request.Context(), bucket, path)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.Header("Cache-Control", "private, max-age=300")
	c.Redirect(http.StatusFound, url)
}

// RegisterRoutes mounts the media endpoints on an authenticated group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/media/:bucket/*path", h.GetImage)
}
