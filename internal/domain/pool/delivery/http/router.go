package http

import (
	"github.com/fasthttp/router"
	"github.com/rs/zerolog"

	"github.com/Conte777/ScraperPool/pkg/httputil"
)

// Router registers the admin routes
type Router struct {
	handler *Handler
	logger  zerolog.Logger
}

// NewRouter creates the admin router
func NewRouter(handler *Handler, logger zerolog.Logger) *Router {
	return &Router{
		handler: handler,
		logger:  logger.With().Str("component", "admin_router").Logger(),
	}
}

// RegisterRoutes registers admin routes on the router
func (r *Router) RegisterRoutes(rt *router.Router) {
	rt.GET("/health", r.handler.Health)

	api := httputil.NewMiddlewareGroup(rt.Group("/api/v1")).
		Use(httputil.Recover(r.logger), httputil.AccessLog(r.logger))

	api.GET("/pools", r.handler.ListPools)
	api.GET("/pools/{platform}", r.handler.GetPool)
	api.POST("/pools/{platform}/reap", r.handler.Reap)
	api.PUT("/pools/{platform}/accounts/{id}/degraded", r.handler.SetDegraded)
	api.DELETE("/pools/{platform}/accounts/{id}", r.handler.DeleteAccount)
	api.POST("/stats/sync", r.handler.SyncStats)
	api.POST("/stats/reset", r.handler.ResetStats)
	api.POST("/proxy/check", r.handler.CheckProxy)
}
