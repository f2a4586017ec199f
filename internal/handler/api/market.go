package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	models "MarkWatch/internal/domain/models"
	svcache "MarkWatch/internal/service/cache"
	svcmetrics "MarkWatch/internal/service/metrics"
	"MarkWatch/internal/service/ratelimit"
	"MarkWatch/internal/usecase"
	xhttp "MarkWatch/pkg/http"
	xlogger "MarkWatch/pkg/logger"
)

// MarketHandler serves the read endpoints. Responses are rate limited per
// client and cached as rendered bytes; alert bands are live state and are
// never cached.
type MarketHandler struct {
	logger        *xlogger.Logger
	query         *usecase.MarketQuery
	sched         *usecase.Scheduler
	rl            *ratelimit.Limiter
	cache         svcache.BytesCache
	defaultAssets []string
}

func NewMarketHandler(
	logger *xlogger.Logger,
	query *usecase.MarketQuery,
	sched *usecase.Scheduler,
	rl *ratelimit.Limiter,
	cache svcache.BytesCache,
	defaultAssets []string,
) *MarketHandler {
	svcmetrics.Register()
	return &MarketHandler{
		logger:        logger,
		query:         query,
		sched:         sched,
		rl:            rl,
		cache:         cache,
		defaultAssets: defaultAssets,
	}
}

func (h *MarketHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/alert-bands", h.Bands)
	g.GET("/klines", h.Klines)
	g.GET("/news", h.News)
	g.GET("/rounds", h.Rounds)
}

func (h *MarketHandler) Klines(c echo.Context) error {
	const endpoint = "klines"
	start := time.Now()
	req := &models.KlinesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.allow(c, endpoint) {
		return rateLimited(c)
	}

	key := fmt.Sprintf("api:klines:%s:%s:%d", req.Symbol, req.Interval, req.Limit)
	if h.serveCached(c, endpoint, key, 30) {
		return nil
	}

	res, err := h.query.GetKlines(c.Request().Context(), usecase.GetKlinesParams{
		Symbol:   req.Symbol,
		Interval: req.Interval,
		Limit:    req.Limit,
	})
	if err != nil {
		svcmetrics.APIErrors.WithLabelValues(endpoint).Inc()
		h.logger.Error("klines query error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	svcmetrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	return h.respondCaching(c, endpoint, key, 30*time.Second, res)
}

func (h *MarketHandler) News(c echo.Context) error {
	const endpoint = "news"
	start := time.Now()
	req := &models.NewsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.allow(c, endpoint) {
		return rateLimited(c)
	}

	key := fmt.Sprintf("api:news:%s:%d", req.Source, req.Limit)
	if h.serveCached(c, endpoint, key, 60) {
		return nil
	}

	items, err := h.query.GetNews(c.Request().Context(), models.NewsSource(req.Source), req.Limit)
	if err != nil {
		svcmetrics.APIErrors.WithLabelValues(endpoint).Inc()
		h.logger.Error("news query error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	svcmetrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	return h.respondCaching(c, endpoint, key, 60*time.Second, items)
}

func (h *MarketHandler) Rounds(c echo.Context) error {
	const endpoint = "rounds"
	start := time.Now()
	req := &models.RoundsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.allow(c, endpoint) {
		return rateLimited(c)
	}

	key := fmt.Sprintf("api:rounds:%d", req.Limit)
	if h.serveCached(c, endpoint, key, 15) {
		return nil
	}

	recs, err := h.query.GetRounds(c.Request().Context(), req.Limit)
	if err != nil {
		svcmetrics.APIErrors.WithLabelValues(endpoint).Inc()
		h.logger.Error("rounds query error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	svcmetrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	return h.respondCaching(c, endpoint, key, 15*time.Second, recs)
}

func (h *MarketHandler) Bands(c echo.Context) error {
	const endpoint = "alert_bands"
	start := time.Now()
	if !h.allow(c, endpoint) {
		return rateLimited(c)
	}

	assets := h.defaultAssets
	if st := h.sched.Status(); st.Config != nil && len(st.Config.Assets) > 0 {
		assets = st.Config.Assets
	}

	bands, err := h.query.GetBands(c.Request().Context(), assets)
	if err != nil {
		svcmetrics.APIErrors.WithLabelValues(endpoint).Inc()
		h.logger.Error("bands query error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	svcmetrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	return xhttp.SuccessResponse(c, bands)
}

func (h *MarketHandler) allow(c echo.Context, endpoint string) bool {
	return h.rl.Allow(c.RealIP()+":"+endpoint, 5, 2)
}

func rateLimited(c echo.Context) error {
	return xhttp.AppErrorResponse(c,
		xhttp.NewAppError("ERR_RATE_LIMITED", "", "too many requests", http.StatusTooManyRequests))
}

// serveCached writes a previously rendered envelope if present.
func (h *MarketHandler) serveCached(c echo.Context, endpoint, key string, maxAge int) bool {
	b, ok, err := h.cache.GetBytes(key)
	if err != nil || !ok {
		return false
	}
	svcmetrics.APICacheHits.WithLabelValues(endpoint).Inc()
	c.Response().Header().Set(echo.HeaderCacheControl, fmt.Sprintf("private, max-age=%d", maxAge))
	if err := c.JSONBlob(http.StatusOK, b); err != nil {
		return false
	}
	return true
}

// respondCaching renders the standard envelope once, stores the bytes and
// writes them. A cache write failure only costs the next request a query.
func (h *MarketHandler) respondCaching(c echo.Context, endpoint, key string, ttl time.Duration, data interface{}) error {
	envelope := xhttp.APIResponse{
		Status:  http.StatusOK,
		Message: http.StatusText(http.StatusOK),
		Data:    data,
	}
	b, err := json.Marshal(envelope)
	if err != nil {
		return xhttp.SuccessResponse(c, data)
	}
	if err := h.cache.SetBytes(key, b, ttl); err != nil {
		h.logger.Warn("response cache write failed",
			xlogger.String("endpoint", endpoint), xlogger.Error(err))
	}
	c.Response().Header().Set(echo.HeaderCacheControl, fmt.Sprintf("private, max-age=%d", int(ttl.Seconds())))
	return c.JSONBlob(http.StatusOK, b)
}
