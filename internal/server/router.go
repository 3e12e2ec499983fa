// Package server wires the HTTP handlers into one gin engine.
package server

import (
	"net/http"
	"time"

	"battdevy/internal/assignment"
	"battdevy/internal/auth"
	"battdevy/internal/battery"
	"battdevy/internal/device"
	"battdevy/internal/export"
	"battdevy/internal/history"
	"battdevy/internal/logging"
	"battdevy/internal/media"
	"battdevy/internal/metrics"
	"battdevy/internal/plan"
	"battdevy/pkg/middleware"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Deps - everything the router needs. Media and Redis are optional and
// RateLimitPerMinute <= 0 disables rate limiting.
type Deps struct {
	DB                 *gorm.DB
	Redis              *redis.Client
	Media              *media.Service
	Auth               auth.Config
	CORS               middleware.CORSConfig
	RateLimitPerMinute int
}

// NewRouter builds the engine with every API route mounted under /api/v1.
func NewRouter(deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logging.GinLogger())
	r.Use(metrics.Middleware())
	r.Use(middleware.CORS(deps.CORS))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})
	r.GET("/metrics", metrics.Handler())

	planService := plan.NewService(deps.DB)
	authService := auth.NewService(deps.DB, deps.Auth)

	// nil interfaces, not typed nils, when storage is off
	var groupImages battery.ImageStore
	var deviceImages device.ImageStore
	if deps.Media != nil {
		groupImages = deps.Media
		deviceImages = deps.Media
	}

	authHandler := auth.NewHandler(authService)
	batteryHandler := battery.NewHandler(battery.NewService(deps.DB, planService, groupImages))
	deviceHandler := device.NewHandler(device.NewService(deps.DB, planService, deviceImages))
	assignmentHandler := assignment.NewHandler(assignment.NewService(deps.DB))
	historyHandler := history.NewHandler(history.NewService(deps.DB))
	planHandler := plan.NewHandler(planService)
	exportHandler := export.NewHandler(export.NewService(deps.DB))

	v1 := r.Group("/api/v1")
	authHandler.RegisterPublicRoutes(v1)

	protected := v1.Group("")
	protected.Use(middleware.RequireAuth(authService))
	protected.Use(middleware.NewRateLimiter(deps.Redis, deps.RateLimitPerMinute).Limit())
	{
		demoGuard := middleware.DemoGuard(authService)

		authHandler.RegisterRoutes(protected, demoGuard)
		planHandler.RegisterRoutes(protected, demoGuard)
		batteryHandler.RegisterRoutes(protected)
		deviceHandler.RegisterRoutes(protected)
		assignmentHandler.RegisterRoutes(protected)
		historyHandler.RegisterRoutes(protected)
		exportHandler.RegisterRoutes(protected)
		if deps.Media != nil {
			media.NewHandler(deps.Media).RegisterRoutes(protected)
		}
	}

	return r
}
