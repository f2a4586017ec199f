package api

import (
	"time"

	"github.com/labstack/echo/v4"

	models "MarkWatch/internal/domain/models"
	mid "MarkWatch/internal/middleware"
	"MarkWatch/internal/usecase"
	xhttp "MarkWatch/pkg/http"
	xlogger "MarkWatch/pkg/logger"
)

// SchedulerHandler is the control plane: start, stop, status, run-once and
// the event feed.
type SchedulerHandler struct {
	logger *xlogger.Logger
	sched  *usecase.Scheduler
	feed   *mid.EventFeed
}

func NewSchedulerHandler(logger *xlogger.Logger, sched *usecase.Scheduler, feed *mid.EventFeed) *SchedulerHandler {
	return &SchedulerHandler{logger: logger, sched: sched, feed: feed}
}

func (h *SchedulerHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.POST("/scheduler/start", h.Start)
	g.POST("/scheduler/stop", h.Stop)
	g.GET("/scheduler/status", h.Status)
	g.GET("/scheduler/events", h.Events)
	g.POST("/run", h.RunOnce)
}

func (h *SchedulerHandler) Start(c echo.Context) error {
	req := &models.StartRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	status, err := h.sched.Start(c.Request().Context(), runConfigFrom(req))
	if err != nil {
		h.logger.Warn("scheduler start rejected", xlogger.Error(err))
		return xhttp.BadRequestResponse(c, err.Error())
	}
	return xhttp.SuccessResponse(c, status)
}

func (h *SchedulerHandler) Stop(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.sched.Stop())
}

func (h *SchedulerHandler) Status(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.sched.Status())
}

func (h *SchedulerHandler) Events(c echo.Context) error {
	req := &models.EventsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	return xhttp.SuccessResponse(c, h.feed.Recent(req.Limit))
}

// RunOnce triggers a synchronous round. A round already in flight yields 409;
// run-once never queues behind the running one.
func (h *SchedulerHandler) RunOnce(c echo.Context) error {
	req := &models.StartRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.sched.RunOnce(c.Request().Context(), runConfigFrom(req))
	if err != nil {
		h.logger.Warn("run-once rejected", xlogger.Error(err))
		return xhttp.BadRequestResponse(c, err.Error())
	}
	if !res.Accepted {
		return xhttp.AppErrorResponse(c, xhttp.ConflictError("analysis round already in flight"))
	}
	return xhttp.SuccessResponse(c, res.Record)
}

func runConfigFrom(req *models.StartRequest) models.RunConfig {
	return models.RunConfig{
		Assets:           req.Assets,
		Capital:          req.Capital,
		LeverageMin:      req.LeverageMin,
		LeverageMax:      req.LeverageMax,
		NearThresholdPct: req.NearThresholdPct,
		Cooldown:         time.Duration(req.CooldownSeconds) * time.Second,
		Staleness:        time.Duration(req.StalenessSeconds) * time.Second,
	}
}
