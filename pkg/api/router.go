// Package api assembles the HTTP surface: routing, middleware and
// request handlers.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/eodatahub/action-creator/pkg/api/dto"
	"github.com/eodatahub/action-creator/pkg/api/handlers"
	"github.com/eodatahub/action-creator/pkg/api/middleware"
)

// RouterOptions bundles everything the router mounts.
type RouterOptions struct {
	JWTSecret   []byte
	Logger      *logrus.Logger
	Auth        *handlers.AuthHandler
	Functions   *handlers.FunctionsHandler
	Submissions *handlers.SubmissionHandler
	WS          *handlers.WSHandler
	Limiter     *middleware.RateLimiter
}

// NewRouter builds the gin engine with all routes mounted. Every route
// under /action-creator requires a bearer token; the WebSocket endpoint
// authenticates on its handshake instead of through the middleware so
// it can speak frames after the upgrade.
func NewRouter(opts RouterOptions) *gin.Engine {
	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.ErrorHandler(opts.Logger))
	router.Use(middleware.Logger(opts.Logger))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, dto.HealthResponse{Status: "ok"})
	})

	auth := router.Group("/auth")
	{
		auth.POST("/token", opts.Auth.Token)
		auth.POST("/token/introspection", opts.Auth.Introspect)
	}

	ac := router.Group("/action-creator")
	ac.GET("/ws/submissions", opts.WS.Handle)

	protected := ac.Group("")
	protected.Use(middleware.JWTAuth(opts.JWTSecret))
	{
		protected.GET("/functions", opts.Functions.GetFunctions)
		protected.GET("/presets", opts.Functions.GetPresets)
		protected.POST("/workflow-validation", opts.Submissions.ValidateWorkflow)

		submissions := protected.Group("/workflow-submissions")
		if opts.Limiter != nil {
			submissions.Use(opts.Limiter.Middleware())
		}
		{
			submissions.POST("", opts.Submissions.Submit)
			submissions.GET("", opts.Submissions.List)
			submissions.GET("/:id", opts.Submissions.Get)
			submissions.GET("/:id/visualization", opts.Submissions.Visualize)
			submissions.DELETE("/:id", opts.Submissions.Delete)
		}
	}

	return router
}
