package router

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/noah-isme/sgea-api/internal/handler"
	"github.com/noah-isme/sgea-api/internal/middleware"
	"github.com/noah-isme/sgea-api/internal/models"
	"github.com/noah-isme/sgea-api/internal/service"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	APIPrefix   string
	EnableDocs  bool
	RateLimited bool

	Tokens      middleware.TokenValidator
	RateLimiter middleware.RateLimiter

	AuthHandler        *handler.AuthHandler
	EventHandler       *handler.EventHandler
	EnrollmentHandler  *handler.EnrollmentHandler
	CertificateHandler *handler.CertificateHandler
	AuditHandler       *handler.AuditHandler
	MetricsHandler     *handler.MetricsHandler
}

// Register wires the HTTP routes into the gin engine.
func Register(r *gin.Engine, deps Dependencies) {
	if deps.MetricsHandler != nil {
		r.GET("/health", deps.MetricsHandler.Health)
		r.GET("/ready", deps.MetricsHandler.Ready)
		r.GET("/metrics", deps.MetricsHandler.Prometheus)
	}
	if deps.EnableDocs {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(deps.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", deps.AuthHandler.Login)
	auth.POST("/register", deps.AuthHandler.Register)
	auth.GET("/confirm/:uid/:token", deps.AuthHandler.Confirm)

	limit := func(scope string) gin.HandlerFunc {
		if !deps.RateLimited || deps.RateLimiter == nil {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimit(deps.RateLimiter, scope)
	}

	secured := api.Group("", middleware.JWT(deps.Tokens))
	organizer := middleware.RequireRoles(models.RoleOrganizer)

	// Catalog and participation
	secured.GET("/events", limit(service.RateScopeEvents), deps.EventHandler.List)
	secured.GET("/events/:id", deps.EventHandler.Get)
	secured.DELETE("/events/:id/enrollment", deps.EventHandler.CancelEnrollment)
	secured.POST("/enrollments", limit(service.RateScopeEnrollments), deps.EnrollmentHandler.Create)
	secured.GET("/me/enrollments", deps.EnrollmentHandler.Mine)
	secured.GET("/me/certificates", deps.CertificateHandler.Mine)
	secured.GET("/certificates/:id/download", deps.CertificateHandler.Download)

	// Organizer tools
	secured.POST("/events", organizer, deps.EventHandler.Create)
	secured.PUT("/events/:id", organizer, deps.EventHandler.Update)
	secured.GET("/organizer/events", organizer, deps.EventHandler.Mine)
	secured.GET("/events/:id/enrollments", organizer, deps.EventHandler.Enrollments)
	secured.GET("/events/:id/roster", organizer, deps.EventHandler.Roster)
	secured.POST("/events/:id/certificates", organizer, deps.EventHandler.IssueCertificates)
	secured.PATCH("/enrollments/:id/attendance", organizer, deps.EnrollmentHandler.Attendance)
	secured.GET("/audit", organizer, deps.AuditHandler.List)
}

// RedisPinger adapts a go-redis client to the readiness check.
type RedisPinger struct {
	Client *redis.Client
}

// PingContext issues PING.
func (p RedisPinger) PingContext(ctx context.Context) error {
	return p.Client.Ping(ctx).Err()
}
