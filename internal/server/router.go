package server

import (
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/kubeasy-dev/kubeasy-backend/internal/handlers"
	"github.com/kubeasy-dev/kubeasy-backend/internal/middleware"
)

type RouterConfig struct {
	AllowOrigins      []string
	AuthMiddleware    *middleware.AuthMiddleware
	ChallengeHandler  *handlers.ChallengeHandler
	OnboardingHandler *handlers.OnboardingHandler
	DemoHandler       *handlers.DemoHandler
	StreamHandler     *handlers.StreamHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()
	router.Use(otelgin.Middleware("kubeasy-backend"))

	origins := cfg.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     trimOrigins(origins),
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	router.GET("/healthcheck", handlers.HealthCheck)

	api := router.Group("/api")

	// Public: the anonymous trial flow.
	demo := api.Group("/demo")
	{
		demo.POST("/session", cfg.DemoHandler.CreateSession)
		demo.GET("/session", cfg.DemoHandler.GetSession)
		demo.POST("/start", cfg.DemoHandler.Start)
		demo.POST("/submit", cfg.DemoHandler.Submit)
		demo.GET("/stream", cfg.StreamHandler.DemoStream)
	}

	// Protected: everything keyed to a durable user identity.
	protected := api.Group("/")
	protected.Use(cfg.AuthMiddleware.RequireAuth())
	{
		protected.POST("/challenges/:slug/start", cfg.ChallengeHandler.Start)
		protected.GET("/challenges/:slug/status", cfg.ChallengeHandler.Status)
		protected.POST("/challenges/:slug/submit", cfg.ChallengeHandler.Submit)
		protected.POST("/challenges/:slug/reset", cfg.ChallengeHandler.Reset)
		protected.GET("/challenges/:slug/stream", cfg.StreamHandler.ChallengeStream)

		protected.POST("/cli/login", cfg.OnboardingHandler.TrackCliLogin)
		protected.POST("/cli/setup", cfg.OnboardingHandler.TrackClusterSetup)

		protected.GET("/onboarding/status", cfg.OnboardingHandler.Status)
		protected.POST("/onboarding/complete", cfg.OnboardingHandler.Complete)
		protected.POST("/onboarding/skip", cfg.OnboardingHandler.Skip)

		protected.POST("/demo/link", cfg.DemoHandler.Link)
	}

	return router
}

func trimOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
