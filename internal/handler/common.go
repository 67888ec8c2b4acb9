// Package handler adapts HTTP requests to the game services.  Handlers
// assume the auth middleware has already run on protected routes.
package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/matchup/internal/middleware"
	"github.com/iliyamo/matchup/internal/repository"
	"github.com/iliyamo/matchup/internal/service"
)

type errorMapping struct {
	target    error
	status    int
	retryable bool
}

var errorMappings = []errorMapping{
	{service.ErrGameNotFound, http.StatusNotFound, false},
	{service.ErrVenueNotFound, http.StatusNotFound, false},
	{repository.ErrNotificationNotFound, http.StatusNotFound, false},
	{service.ErrGameNotJoinable, http.StatusBadRequest, false},
	{service.ErrAlreadyJoined, http.StatusConflict, false},
	{service.ErrHostCannotLeave, http.StatusBadRequest, false},
	{service.ErrNotJoined, http.StatusBadRequest, false},
	{service.ErrForbidden, http.StatusForbidden, false},
	{service.ErrInvalidInput, http.StatusBadRequest, false},
	{service.ErrInvalidTransition, http.StatusConflict, false},
	{service.ErrGameHasPlayers, http.StatusConflict, false},
	{service.ErrStorageConflict, http.StatusConflict, true},
	{service.ErrStorageTimeout, http.StatusServiceUnavailable, true},
}

// writeError maps a service error onto a status code and a stable
// message.  Unknown errors are logged and reported as 500.
func writeError(c echo.Context, err error) error {
	for _, m := range errorMappings {
		if !errors.Is(err, m.target) {
			continue
		}
		msg := m.target.Error()
		if m.target == service.ErrInvalidInput {
			// carries the failing field names
			msg = err.Error()
		}
		body := echo.Map{"error": msg}
		if m.retryable {
			body["retryable"] = true
			logrus.WithError(err).WithField("path", c.Path()).Warn("storage contention")
		}
		return c.JSON(m.status, body)
	}
	logrus.WithError(err).WithFields(logrus.Fields{
		"method": c.Request().Method,
		"path":   c.Path(),
	}).Error("unhandled error")
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}

func actor(c echo.Context) (service.Actor, bool) {
	uid := middleware.UserID(c)
	if uid == "" {
		return service.Actor{}, false
	}
	return service.Actor{UserID: uid, Role: middleware.Role(c)}, true
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
}
