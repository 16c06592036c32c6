package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/lumenworks/newsletter-api/internal/config"
	"github.com/lumenworks/newsletter-api/internal/handler"
	"github.com/lumenworks/newsletter-api/internal/middleware"
)

// Register wires every route. The public newsletter group sits behind
// the Redis token bucket; the admin group sits behind JWT + role. Both
// middlewares become passthroughs when rdb is nil, so the API still
// serves without Redis.
func Register(
	e *echo.Echo,
	n *handler.NewsletterHandler,
	a *handler.AuthHandler,
	adm *handler.AdminHandler,
	rdb *redis.Client,
	jwtSecret string,
) {
	// Health check for load balancers and monitoring.
	e.GET("/healthz", handler.Health)

	// Public subscription lifecycle. Emailed links arrive as GETs and
	// redirect to the marketing site; the POST forms are called by the
	// site's signup and unsubscribe pages.
	nl := e.Group("/v1/newsletter")
	nl.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))
	nl.POST("/subscribe", n.Subscribe)
	nl.POST("/confirm", n.Confirm)
	nl.GET("/confirm", n.ConfirmLink)
	nl.POST("/unsubscribe", n.Unsubscribe)
	nl.GET("/unsubscribe", n.UnsubscribeLink)
	nl.GET("/options", n.Options, middleware.NewRedisCache(config.LoadCacheConfig(), rdb))

	// Admin session management.
	g := e.Group("/v1/auth")
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout)

	// Protected admin surface.
	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.Use(middleware.RequireRole("ADMIN"))
	auth.GET("/me", a.Me)
	auth.GET("/admin/subscribers", adm.ListSubscribers)
	auth.DELETE("/admin/subscribers/batch", adm.BatchUnsubscribe)
	auth.GET("/admin/stats", adm.Stats)
	auth.POST("/admin/campaigns", adm.CreateCampaign)
	auth.GET("/admin/campaigns/:id", adm.GetCampaign)
}
