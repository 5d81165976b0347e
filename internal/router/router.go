package router

import (
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/d60-Lab/club-overlay/internal/api/handler"
	"github.com/d60-Lab/club-overlay/internal/api/middleware"
)

type Deps struct {
	Handler     *handler.Handler
	Verifier    *middleware.TokenVerifier
	RateLimiter *middleware.RateLimiter
	DB          *gorm.DB
	Redis       *redis.Client
	ServiceName string
}

// New assembles the engine. A nil RateLimiter disables limiting.
func New(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(
		middleware.Recovery(),
		middleware.Sentry(),
		middleware.RequestID(),
		middleware.AccessLog(),
		otelgin.Middleware(d.ServiceName),
		gzip.Gzip(gzip.DefaultCompression),
	)

	r.GET("/health", handler.Health(d.DB, d.Redis))
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := r.Group("/api/v1", middleware.Identity(d.Verifier))
	if d.RateLimiter != nil {
		api.Use(d.RateLimiter.Limit())
	}

	h := d.Handler
	inbox := api.Group("/inbox")
	inbox.GET("", h.ListInbox)
	inbox.GET("/unread-count", h.UnreadCount)
	inbox.PATCH("", h.MarkRead)
	inbox.POST("/read-all", h.MarkAllRead)
	inbox.GET("/:id", h.GetMessage)

	checklist := api.Group("/checklist")
	checklist.GET("", h.ListChecklist)
	checklist.GET("/incomplete-count", h.IncompleteCount)
	checklist.PATCH("", h.SetCompleted)

	admin := api.Group("/admin", middleware.RequireRole(middleware.RoleAdmin))
	admin.POST("/messages", h.CreateMessage)
	admin.DELETE("/messages/:id", h.DeactivateMessage)
	admin.POST("/checklist", h.CreateChecklistItem)
	admin.DELETE("/checklist/:id", h.DeactivateChecklistItem)

	return r
}
