package http

import "github.com/labstack/echo/v4"

// Handler is anything that can attach its routes to the server's echo
// instance.
type Handler interface {
	RegisterRoutes(e *echo.Echo)
}
