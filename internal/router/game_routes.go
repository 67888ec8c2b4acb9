package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/matchup/internal/handler"
	"github.com/iliyamo/matchup/internal/middleware"
	"github.com/iliyamo/matchup/internal/model"
)

// RegisterGames registers game lifecycle and RSVP routes.  Game detail is
// public; everything else needs an access token carrying a known role.
// limiter guards join and leave and may be nil.
func RegisterGames(e *echo.Echo, games *handler.GameHandler, rsvps *handler.RSVPHandler, jwtSecret string, limiter echo.MiddlewareFunc) {
	e.GET("/v1/games/:id", games.Get, middleware.OptionalJWT(jwtSecret))

	auth := e.Group("/v1", middleware.JWTAuth(jwtSecret), middleware.RequireRole(model.RoleUser, model.RoleAdmin))
	auth.POST("/games", games.Create)
	auth.PATCH("/games/:id", games.Update)
	auth.POST("/games/:id/cancel", games.Cancel)
	auth.DELETE("/games/:id", games.Delete)
	auth.GET("/my/games/hosted", games.Hosted)
	auth.GET("/my/games/joined", games.Joined)

	var rsvpMW []echo.MiddlewareFunc
	if limiter != nil {
		rsvpMW = append(rsvpMW, limiter)
	}
	auth.POST("/games/:id/join", rsvps.Join, rsvpMW...)
	auth.POST("/games/:id/leave", rsvps.Leave, rsvpMW...)
}
