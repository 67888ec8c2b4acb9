package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/matchup/internal/middleware"
	"github.com/iliyamo/matchup/internal/model"
	"github.com/iliyamo/matchup/internal/repository"
)

const (
	defaultPageSize = 20
	maxPageSize     = 50
)

// NotificationHandler serves the caller's in-app notifications.
type NotificationHandler struct {
	Store repository.NotificationStore
}

func NewNotificationHandler(store repository.NotificationStore) *NotificationHandler {
	if store == nil {
		panic("nil store passed to NewNotificationHandler")
	}
	return &NotificationHandler{Store: store}
}

type pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// List handles GET /v1/notifications?page=&limit=&unreadOnly=.  Newest
// notifications come first.
func (h *NotificationHandler) List(c echo.Context) error {
	uid := middleware.UserID(c)
	if uid == "" {
		return unauthorized(c)
	}
	page, err := intQuery(c, "page", 1, 1, 0)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid page"})
	}
	limit, err := intQuery(c, "limit", defaultPageSize, 1, maxPageSize)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid limit"})
	}
	unreadOnly := false
	if raw := c.QueryParam("unreadOnly"); raw != "" {
		if unreadOnly, err = strconv.ParseBool(raw); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid unreadOnly"})
		}
	}

	ctx := c.Request().Context()
	items, err := h.Store.ListNotifications(ctx, uid, unreadOnly, limit, (page-1)*limit)
	if err != nil {
		return writeError(c, err)
	}
	total, err := h.Store.CountNotifications(ctx, uid, unreadOnly)
	if err != nil {
		return writeError(c, err)
	}
	unread, err := h.Store.CountNotifications(ctx, uid, true)
	if err != nil {
		return writeError(c, err)
	}
	if items == nil {
		items = []model.Notification{}
	}
	return c.JSON(http.StatusOK, echo.Map{
		"notifications": items,
		"unreadCount":   unread,
		"pagination": pagination{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: (total + limit - 1) / limit,
		},
	})
}

// UnreadCount handles GET /v1/notifications/unread-count.
func (h *NotificationHandler) UnreadCount(c echo.Context) error {
	uid := middleware.UserID(c)
	if uid == "" {
		return unauthorized(c)
	}
	n, err := h.Store.CountNotifications(c.Request().Context(), uid, true)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"count": n})
}

// MarkRead handles POST /v1/notifications/:id/read.  Another user's
// notification is reported as not found.
func (h *NotificationHandler) MarkRead(c echo.Context) error {
	uid := middleware.UserID(c)
	if uid == "" {
		return unauthorized(c)
	}
	if err := h.Store.MarkRead(c.Request().Context(), c.Param("id"), uid); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Notification marked as read"})
}

// MarkAllRead handles POST /v1/notifications/read-all.
func (h *NotificationHandler) MarkAllRead(c echo.Context) error {
	uid := middleware.UserID(c)
	if uid == "" {
		return unauthorized(c)
	}
	n, err := h.Store.MarkAllRead(c.Request().Context(), uid)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "All notifications marked as read", "updated": n})
}

// intQuery parses an optional integer query parameter.  max <= 0 means
// unbounded.
func intQuery(c echo.Context, name string, def, min, max int) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if n < min || (max > 0 && n > max) {
		return 0, strconv.ErrRange
	}
	return n, nil
}
