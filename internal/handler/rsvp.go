package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/matchup/internal/middleware"
	"github.com/iliyamo/matchup/internal/service"
)

// RSVPHandler exposes join and leave.
type RSVPHandler struct {
	RSVPs *service.RSVPService
}

func NewRSVPHandler(rsvps *service.RSVPService) *RSVPHandler {
	if rsvps == nil {
		panic("nil service passed to NewRSVPHandler")
	}
	return &RSVPHandler{RSVPs: rsvps}
}

// Join handles POST /v1/games/:id/join.  The response says whether the
// caller got a seat or a waitlist spot.
func (h *RSVPHandler) Join(c echo.Context) error {
	uid := middleware.UserID(c)
	if uid == "" {
		return unauthorized(c)
	}
	res, err := h.RSVPs.Join(c.Request().Context(), c.Param("id"), uid)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// Leave handles POST /v1/games/:id/leave.
func (h *RSVPHandler) Leave(c echo.Context) error {
	uid := middleware.UserID(c)
	if uid == "" {
		return unauthorized(c)
	}
	res, err := h.RSVPs.Leave(c.Request().Context(), c.Param("id"), uid)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}
