package handler

import (
	"strings"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	internalmiddleware "github.com/noah-isme/student-roster-api/internal/middleware"
	"github.com/noah-isme/student-roster-api/internal/service"
	"github.com/noah-isme/student-roster-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/student-roster-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/student-roster-api/pkg/middleware/requestid"
)

// RouterOptions carries the collaborators mounted on the HTTP engine.
type RouterOptions struct {
	Students       *StudentHandler
	Metrics        *MetricsHandler
	MetricsService *service.MetricsService
	Logger         *zap.Logger
	AllowedOrigins []string
	APIPrefix      string
	EnableDocs     bool
}

// NewRouter builds the gin engine. Student routes are served at the root and
// again under APIPrefix when one is configured.
func NewRouter(opts RouterOptions) *gin.Engine {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	r := gin.New()
	// Route on the escaped path so search text containing "/" stays one segment.
	r.UseRawPath = true
	r.UnescapePathValues = true

	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(opts.Logger))
	r.Use(internalmiddleware.Metrics(opts.MetricsService))
	r.Use(corsmiddleware.New(opts.AllowedOrigins))

	if opts.Metrics != nil {
		r.GET("/health", opts.Metrics.Health)
		r.GET("/ready", opts.Metrics.Ready)
		r.GET("/metrics", opts.Metrics.Prometheus)
	}

	if opts.EnableDocs {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	if opts.Students != nil {
		RegisterStudentRoutes(r.Group(""), opts.Students)
		if prefix := strings.TrimRight(opts.APIPrefix, "/"); prefix != "" {
			RegisterStudentRoutes(r.Group(prefix), opts.Students)
		}
	}

	return r
}

// RegisterStudentRoutes mounts the student endpoints on the group.
func RegisterStudentRoutes(g *gin.RouterGroup, h *StudentHandler) {
	students := g.Group("/students")
	students.GET("", h.List)
	students.GET("/search", h.List)
	students.GET("/search/:query", h.Search)
	students.GET("/export", h.Export)
	students.GET("/:id", h.Get)
	students.POST("", h.Create)
	students.PUT("/:id", h.Update)
	students.DELETE("/:id", h.Delete)
}
