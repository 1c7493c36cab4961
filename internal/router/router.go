package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/fieldserve/booking-api/internal/middleware"
)

// Handler registers its routes under a shared group.
type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

type Config struct {
	RateLimit rate.Limit
	RateBurst int
}

type Router struct {
	engine *gin.Engine
}

// NewRouter assembles the engine: recovery, request id, logging, and rate
// limiting in front of every route. Drafts and bookings accept optional
// auth so guests can use them; notes and completion require a token.
func NewRouter(
	auth *middleware.AuthMiddleware,
	healthH Handler,
	technicianH Handler,
	draftH Handler,
	bookingH Handler,
	cfg Config,
) *Router {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	engine.Use(middleware.Recovery())
	engine.Use(middleware.RequestID())
	engine.Use(middleware.Logger())

	limiter := middleware.NewRateLimiter(cfg.RateLimit, cfg.RateBurst)
	engine.Use(limiter.RateLimit())

	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	root := engine.Group("")
	healthH.RegisterRoutes(root)

	v1 := engine.Group("/api/v1")
	v1.Use(auth.OptionalAuthenticate())
	{
		technicianH.RegisterRoutes(v1)
		draftH.RegisterRoutes(v1)
		bookingH.RegisterRoutes(v1)
	}

	return &Router{engine: engine}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
