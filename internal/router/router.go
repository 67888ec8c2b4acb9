// Package router registers the HTTP routes and their middleware.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/matchup/internal/handler"
)

// RegisterRoutes registers the unauthenticated operational routes.
func RegisterRoutes(e *echo.Echo, h *handler.HealthHandler) {
	e.GET("/healthz", h.Health)
}

// RegisterRealtime exposes the websocket endpoint.  The handler checks the
// token itself since it arrives in the query string.
func RegisterRealtime(e *echo.Echo, rt *handler.RealtimeHandler) {
	e.GET("/v1/ws", rt.Serve)
}
