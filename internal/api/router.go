package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/demesis221/PawRescue/internal/api/auth"
	"github.com/demesis221/PawRescue/internal/api/dashboard"
	"github.com/demesis221/PawRescue/internal/api/report"
	"github.com/demesis221/PawRescue/internal/service"
)

// Deps carries the constructed services into the router. Handlers never
// build their own clients.
type Deps struct {
	Auth      *service.AuthService
	Reports   *service.ReportService
	Lifecycle *service.LifecycleService
	Events    *service.Events
	Storage   *service.DiskStorage
}

// SetupRouter configures all routes
func SetupRouter(r *gin.Engine, deps Deps) {
	r.Use(CORSMiddleware())

	// Public URLs issued by the object store resolve here
	r.Static("/uploads", deps.Storage.Dir())

	authHandler := auth.NewHandler(deps.Auth)
	reportHandler := report.NewHandler(
		deps.Reports,
		deps.Lifecycle,
		deps.Events,
		service.NewAnonReportRateLimit(5*time.Minute, 10),
	)
	dashboardHandler := dashboard.NewHandler(deps.Reports)

	api := r.Group("/api")
	{
		api.GET("/health", func(c *gin.Context) {
			c.JSON(200, gin.H{
				"status":  "OK",
				"message": "PawRescue API is running",
			})
		})

		authRoutes := api.Group("/auth")
		{
			authRoutes.POST("/register", authHandler.Register)
			authRoutes.POST("/login", authHandler.Login)
			authRoutes.GET("/me", auth.AuthRequired(), authHandler.Me)
		}

		reports := api.Group("/reports")
		{
			reports.POST("", auth.AuthOptional(), reportHandler.Create)
			reports.GET("", reportHandler.List)
			reports.GET("/stream", reportHandler.Stream)
			reports.GET("/:id", reportHandler.Get)
			reports.GET("/:id/history", reportHandler.History)
			// No ownership check on status transitions: anonymous reports
			// must stay actionable by rescuers without accounts
			reports.PATCH("/:id/status", auth.AuthOptional(), reportHandler.UpdateStatus)
			reports.POST("/:id/image", auth.AuthOptional(), reportHandler.AttachImage)
			reports.PUT("/:id", auth.AuthRequired(), reportHandler.Update)
			reports.DELETE("/:id", auth.AuthRequired(), reportHandler.Delete)
		}

		api.GET("/dashboard/stats", dashboardHandler.Stats)
	}
}

// CORSMiddleware provides CORS support
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, PATCH, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
