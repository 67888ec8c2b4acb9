package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/matchup/internal/handler"
	"github.com/iliyamo/matchup/internal/middleware"
	"github.com/iliyamo/matchup/internal/model"
)

// RegisterNotifications registers the caller's notification inbox.
func RegisterNotifications(e *echo.Echo, n *handler.NotificationHandler, jwtSecret string) {
	g := e.Group("/v1/notifications", middleware.JWTAuth(jwtSecret), middleware.RequireRole(model.RoleUser, model.RoleAdmin))
	g.GET("", n.List)
	g.GET("/unread-count", n.UnreadCount)
	g.POST("/read-all", n.MarkAllRead)
	g.POST("/:id/read", n.MarkRead)
}
