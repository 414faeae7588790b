package router

import (
	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/amhang-backend/internal/config"
	"github.com/ignatzorin/amhang-backend/internal/http/handlers"
	"github.com/ignatzorin/amhang-backend/internal/http/middleware"
	"github.com/ignatzorin/amhang-backend/internal/metrics"
	"github.com/ignatzorin/amhang-backend/internal/models"
	"github.com/ignatzorin/amhang-backend/internal/service"
)

// Handlers - все HTTP хэндлеры приложения.
type Handlers struct {
	Mission      *handlers.MissionHandler
	Review       *handlers.ReviewHandler
	Settlement   *handlers.SettlementHandler
	Admin        *handlers.AdminHandler
	Notification *handlers.NotificationHandler
	Health       *handlers.HealthHandler
	WS           *handlers.WSHandler
}

func SetupRouter(cfg *config.Config, h Handlers, tokenManager *service.TokenManager) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()
	r.Use(metrics.Middleware())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", h.Health.Health)
	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api")
	if h.WS != nil {
		api.GET("/ws", h.WS.Handle)
	}

	protected := api.Group("")
	protected.Use(middleware.AuthMiddleware(tokenManager))

	// Платёжные маршруты ограничены отдельно: каждый вызов идёт в Toss или банк
	paymentRateLimit := middleware.RateLimitMiddleware(cfg.RateLimitLimit, cfg.RateLimitPeriod)

	protected.GET("/notifications", h.Notification.ListNotifications)

	missions := protected.Group("/missions")
	missions.Use(middleware.RequireRole(models.RoleBusiness))
	{
		missions.POST("", h.Mission.CreateMission)
		missions.POST("/:id/pay", middleware.UUIDValidator("id"), paymentRateLimit, h.Mission.PayMission)
		missions.POST("/:id/cancel", middleware.UUIDValidator("id"), paymentRateLimit, h.Mission.CancelMission)
	}

	reviews := protected.Group("/reviews")
	reviews.Use(middleware.RequireRole(models.RoleBusiness))
	{
		reviews.POST("/:id/dispute", middleware.UUIDValidator("id"), h.Review.DisputeReview)
	}

	settlements := protected.Group("/settlements")
	settlements.Use(middleware.RequireRole(models.RoleReviewer))
	{
		settlements.GET("", h.Settlement.ListSettlements)
		settlements.GET("/:id", middleware.UUIDValidator("id"), h.Settlement.GetSettlement)
		settlements.POST("/:id/retry", middleware.UUIDValidator("id"), h.Settlement.RetrySettlement)
		settlements.POST("/bank-account/verify", paymentRateLimit, h.Settlement.VerifyBankAccount)
	}

	admin := protected.Group("/admin")
	admin.Use(middleware.RequireRole(models.RoleAdmin))
	{
		admin.GET("/jobs", h.Admin.ListJobs)
		admin.POST("/jobs/:name/run", h.Admin.RunJob)
		admin.POST("/settlements/:id/process", middleware.UUIDValidator("id"), h.Admin.ProcessSettlement)
		admin.POST("/missions/:id/assign", middleware.UUIDValidator("id"), h.Admin.AssignReviewer)
	}

	return r
}
