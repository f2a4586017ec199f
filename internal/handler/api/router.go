package api

import (
	"github.com/labstack/echo/v4"
)

// Router bundles the API handlers behind the single route registrar the
// HTTP server accepts.
type Router struct {
	scheduler *SchedulerHandler
	market    *MarketHandler
}

func NewRouter(scheduler *SchedulerHandler, market *MarketHandler) *Router {
	return &Router{scheduler: scheduler, market: market}
}

func (r *Router) RegisterRoutes(e *echo.Echo) {
	r.scheduler.RegisterRoutes(e)
	r.market.RegisterRoutes(e)
}
