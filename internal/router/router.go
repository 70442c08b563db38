package router

import (
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/evlink/warranty-notify/internal/handler"
	"github.com/evlink/warranty-notify/internal/middleware"
)

type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

type Config struct {
	RateLimit rate.Limit
	RateBurst int
}

type Router struct {
	engine   *gin.Engine
	h        *handler.Handler
	handlers []Handler
	config   Config
}

func NewRouter(h *handler.Handler, config Config, handlers ...Handler) *Router {
	gin.SetMode(gin.ReleaseMode)

	if config.RateLimit <= 0 {
		config.RateLimit = 100
	}
	if config.RateBurst <= 0 {
		config.RateBurst = 200
	}

	return &Router{
		engine:   gin.New(),
		h:        h,
		handlers: handlers,
		config:   config,
	}
}

func (r *Router) Setup() {
	r.engine.Use(
		middleware.RequestID(),
		middleware.Logger(),
		middleware.Recovery(),
		middleware.RateLimit(r.config.RateLimit, r.config.RateBurst),
	)

	r.engine.GET("/health/live", r.h.LivenessCheck)
	r.engine.GET("/health/ready", r.h.ReadinessCheck)
	r.engine.GET("/metrics", r.h.MetricsHandler)

	api := r.engine.Group("/api/v1")
	for _, h := range r.handlers {
		h.RegisterRoutes(api)
	}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
