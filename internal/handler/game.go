package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/matchup/internal/middleware"
	"github.com/iliyamo/matchup/internal/service"
)

// GameHandler exposes the game lifecycle endpoints.
type GameHandler struct {
	Games *service.GameService
}

func NewGameHandler(games *service.GameService) *GameHandler {
	if games == nil {
		panic("nil service passed to NewGameHandler")
	}
	return &GameHandler{Games: games}
}

// Get handles GET /v1/games/:id.  Anonymous callers see the game without
// their own RSVP status.
func (h *GameHandler) Get(c echo.Context) error {
	detail, err := h.Games.Get(c.Request().Context(), c.Param("id"), middleware.UserID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, detail)
}

// Create handles POST /v1/games.
func (h *GameHandler) Create(c echo.Context) error {
	a, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}
	var in service.CreateGameInput
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	g, err := h.Games.Create(c.Request().Context(), a, in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, g)
}

// Update handles PATCH /v1/games/:id.  Only the host or an admin may
// update a game.
func (h *GameHandler) Update(c echo.Context) error {
	a, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}
	var in service.UpdateGameInput
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	g, err := h.Games.Update(c.Request().Context(), a, c.Param("id"), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, g)
}

// Cancel handles POST /v1/games/:id/cancel.
func (h *GameHandler) Cancel(c echo.Context) error {
	a, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}
	g, err := h.Games.Cancel(c.Request().Context(), a, c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, g)
}

// Delete handles DELETE /v1/games/:id.
func (h *GameHandler) Delete(c echo.Context) error {
	a, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}
	if err := h.Games.Delete(c.Request().Context(), a, c.Param("id")); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Hosted handles GET /v1/my/games/hosted.
func (h *GameHandler) Hosted(c echo.Context) error {
	uid := middleware.UserID(c)
	if uid == "" {
		return unauthorized(c)
	}
	games, err := h.Games.ListHosted(c.Request().Context(), uid)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"games": games})
}

// Joined handles GET /v1/my/games/joined.  Each entry carries the
// caller's RSVP status as myStatus.
func (h *GameHandler) Joined(c echo.Context) error {
	uid := middleware.UserID(c)
	if uid == "" {
		return unauthorized(c)
	}
	games, err := h.Games.ListJoined(c.Request().Context(), uid)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"games": games})
}
