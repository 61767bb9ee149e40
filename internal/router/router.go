// Package router assembles the gin engine and registers every route.
package router

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/kc-reserve/hut-api/internal/handler"
	"github.com/kc-reserve/hut-api/internal/middleware"
	"github.com/kc-reserve/hut-api/internal/service"
	"github.com/kc-reserve/hut-api/pkg/config"
	"github.com/kc-reserve/hut-api/pkg/logger"
	corsmiddleware "github.com/kc-reserve/hut-api/pkg/middleware/cors"
	reqidmiddleware "github.com/kc-reserve/hut-api/pkg/middleware/requestid"
)

// Handlers groups the HTTP handlers mounted by the router.
type Handlers struct {
	Auth         *handler.AuthHandler
	Reservations *handler.ReservationHandler
	Whitelist    *handler.WhitelistHandler
	Users        *handler.UserHandler
	Settings     *handler.SettingHandler
	Metrics      *handler.MetricsHandler
}

// Options carries the cross-cutting collaborators of the router.
type Options struct {
	Config  *config.Config
	Logger  *zap.Logger
	Tokens  middleware.TokenValidator
	Metrics *service.MetricsService
	Limiter middleware.Bucket
}

// New builds the engine. Every route lives under the configured API prefix.
func New(opts Options, h Handlers) *gin.Engine {
	cfg := opts.Config
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(log))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(opts.Metrics))

	api := r.Group(cfg.APIPrefix)
	api.GET("/health", h.Metrics.Health)
	api.GET("/ping", h.Metrics.Ping)
	r.GET("/metrics", h.Metrics.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	requireAuth := middleware.JWT(opts.Tokens)
	optionalAuth := middleware.OptionalJWT(opts.Tokens)
	limited := middleware.RateLimit(opts.Limiter, cfg.RateLimit, opts.Metrics, log)

	registerAuth(api.Group("/auth"), h.Auth, requireAuth, limited)
	registerReservations(api.Group("/reservations"), h.Reservations, requireAuth, optionalAuth)
	registerAdmin(api.Group("/admin", requireAuth, middleware.RequireAdmin()), h)

	settings := api.Group("/system-settings")
	settings.GET("/video-url", h.Settings.VideoURL)
	settings.PUT("/video-url", requireAuth, middleware.RequireAdmin(), h.Settings.UpdateVideoURL)

	return r
}

func registerAuth(g *gin.RouterGroup, h *handler.AuthHandler, requireAuth, limited gin.HandlerFunc) {
	g.POST("/register", limited, h.Register)
	g.POST("/login", limited, h.Login)
	g.POST("/refresh", limited, h.Refresh)
	g.POST("/logout", h.Logout)
	g.GET("/me", requireAuth, h.Me)
	g.PUT("/me", requireAuth, h.UpdateMe)
	g.GET("/whitelist-check", h.WhitelistCheck)
}

func registerReservations(g *gin.RouterGroup, h *handler.ReservationHandler, requireAuth, optionalAuth gin.HandlerFunc) {
	g.POST("", requireAuth, h.Create)
	g.GET("", optionalAuth, h.List)
	g.GET("/calendar", optionalAuth, h.Calendar)
	g.GET("/mine", requireAuth, h.Mine)
	g.PATCH("/:id", requireAuth, h.Update)
}

// registerAdmin mounts routes that sit behind RequireAdmin.
func registerAdmin(g *gin.RouterGroup, h Handlers) {
	g.GET("/reservations/pending-count", h.Reservations.PendingCount)
	g.GET("/reservations/export", h.Reservations.Export)
	g.PATCH("/reservations/:id/status", h.Reservations.UpdateStatus)
	g.DELETE("/reservations/:id", h.Reservations.Delete)

	g.GET("/whitelist", h.Whitelist.List)
	g.POST("/whitelist", h.Whitelist.Create)
	g.PUT("/whitelist/:id", h.Whitelist.Update)
	g.DELETE("/whitelist/:id", h.Whitelist.Delete)

	g.GET("/users", h.Users.List)
	g.PATCH("/users/:id/active", h.Users.SetActive)
}
