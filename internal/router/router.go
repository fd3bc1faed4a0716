package router

import (
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"

	apiHandler "github.com/fastygo/dailyquest/api/handler"
)

type Handlers struct {
	Quest     *apiHandler.QuestHandler
	Community *apiHandler.CommunityHandler
	Profile   *apiHandler.ProfileHandler
	Health    *apiHandler.HealthHandler
	// Metrics is mounted at /metrics when set.
	Metrics fasthttp.RequestHandler
}

type Options struct {
	// UploadsDir serves locally stored proof images under /uploads when set.
	UploadsDir string
}

func New(handlers Handlers, authMiddleware func(fasthttp.RequestHandler) fasthttp.RequestHandler, opts Options) *router.Router {
	r := router.New()

	r.GET("/health", handlers.Health.Check)
	if handlers.Metrics != nil {
		r.GET("/metrics", handlers.Metrics)
	}
	if opts.UploadsDir != "" {
		r.ServeFiles("/uploads/{filepath:*}", opts.UploadsDir)
	}

	api := r.Group("/api")

	api.GET("/userquests/today", authMiddleware(handlers.Quest.Today))
	api.GET("/userquests/me", authMiddleware(handlers.Quest.Mine))
	api.GET("/userquests/validated", authMiddleware(handlers.Quest.Validated))
	api.POST("/userquests/{id}/start", authMiddleware(handlers.Quest.Start))
	api.POST("/userquests/{id}/change", authMiddleware(handlers.Quest.Change))
	api.PUT("/userquests/submit/{id}", authMiddleware(handlers.Quest.Submit))

	api.GET("/userquests/submitted", authMiddleware(handlers.Community.List))
	api.POST("/userquests/{id}/validate", authMiddleware(handlers.Community.Validate))
	api.GET("/community/quests", authMiddleware(handlers.Community.List))
	api.POST("/community/quests/{id}/validate", authMiddleware(handlers.Community.Validate))

	api.GET("/users/me/compte", authMiddleware(handlers.Profile.Compte))

	return r
}
