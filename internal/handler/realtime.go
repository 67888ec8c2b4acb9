package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"golang.org/x/net/websocket"

	"github.com/iliyamo/matchup/internal/middleware"
	"github.com/iliyamo/matchup/internal/realtime"
)

const clientBuffer = 64

// RealtimeHandler upgrades authenticated requests to websocket clients of
// the hub.  Browsers cannot set headers on a websocket handshake, so the
// access token comes in the token query parameter.
type RealtimeHandler struct {
	Hub    *realtime.Hub
	Secret string
}

func NewRealtimeHandler(hub *realtime.Hub, secret string) *RealtimeHandler {
	return &RealtimeHandler{Hub: hub, Secret: secret}
}

// Serve handles GET /v1/ws?token=<jwt>.
func (h *RealtimeHandler) Serve(c echo.Context) error {
	id, err := middleware.ParseToken(h.Secret, c.QueryParam("token"))
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
	}
	srv := websocket.Server{
		// the token authenticates the connection; any origin is accepted
		Handshake: func(*websocket.Config, *http.Request) error { return nil },
		Handler: func(conn *websocket.Conn) {
			realtime.NewClient(conn, h.Hub, id.UserID, clientBuffer).Serve(conn.Request().Context())
		},
	}
	srv.ServeHTTP(c.Response(), c.Request())
	return nil
}
