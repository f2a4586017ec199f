package http

import "github.com/labstack/echo/v4"

// Handler registers a group of routes on the server's Echo instance.
// NewServer accepts one; composite handlers fan registration out.
type Handler interface {
	RegisterRoutes(e *echo.Echo)
}
