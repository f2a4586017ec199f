package middleware

import (
	"time"

	"github.com/labstack/echo/v4"

	applogger "MarkWatch/pkg/logger"
)

// RequestLogging emits one structured line per request. A nil logger
// disables it without breaking the chain.
func RequestLogging(l *applogger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if l == nil {
				return next(c)
			}
			start := time.Now()

			err := next(c)

			req := c.Request()
			l.Info("http request",
				applogger.String("method", req.Method),
				applogger.String("uri", req.RequestURI),
				applogger.String("remote", c.RealIP()),
				applogger.Int("status", c.Response().Status),
				applogger.Duration("took", time.Since(start)),
			)
			return err
		}
	}
}
