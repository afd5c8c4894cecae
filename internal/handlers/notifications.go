package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"notifyd/internal/auth"
	"notifyd/internal/db"
	"notifyd/internal/notify"
)

func GetCsrfToken(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"ok":    true,
		"token": auth.IssueCsrfToken(userID(c)),
	})
}

func GetUnreadCount(c echo.Context) error {
	count, err := db.UnreadCount(userID(c))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch unread count"})
	}
	return c.JSON(http.StatusOK, map[string]any{"ok": true, "count": count})
}

func ListNotifications(c echo.Context) error {
	uid := userID(c)

	limit := 20
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid limit"})
		}
		limit = parsed
	}
	if limit > 100 {
		limit = 100
	}

	offset := 0
	if raw := c.QueryParam("offset"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid offset"})
		}
		offset = parsed
	}

	items, err := db.ListNotifications(uid, limit, offset)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch notifications"})
	}

	unread, err := db.UnreadCount(uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch unread count"})
	}

	return c.JSON(http.StatusOK, map[string]any{"ok": true, "items": items, "unread": unread})
}

// MarkRead flips one notification; ownership is enforced by the update
// predicate, someone else's row simply matches nothing.
func MarkRead(c echo.Context) error {
	uid := userID(c)

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid notification ID"})
	}

	if _, err := db.MarkRead(uid, id); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to mark notification read"})
	}

	count, err := db.UnreadCount(uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch unread count"})
	}

	return respondMutation(c, "Notification marked as read", map[string]any{"ok": true, "count": count})
}

func MarkAllRead(c echo.Context) error {
	uid := userID(c)

	if _, err := db.MarkAllRead(uid); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to mark notifications read"})
	}

	count, err := db.UnreadCount(uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch unread count"})
	}

	return respondMutation(c, "All notifications marked as read", map[string]any{"ok": true, "count": count})
}

type PreferenceRequest struct {
	Type       string  `json:"type" validate:"required"`
	AllowWeb   bool    `json:"allow_web"`
	AllowEmail bool    `json:"allow_email"`
	AllowPush  bool    `json:"allow_push"`
	MuteUntil  *string `json:"mute_until"`
}

func SetPreference(c echo.Context) error {
	uid := userID(c)

	var req PreferenceRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	if err := auth.Validate.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Notification type is required"})
	}

	pref := notify.Preference{
		AllowWeb:   req.AllowWeb,
		AllowEmail: req.AllowEmail,
		AllowPush:  req.AllowPush,
	}
	if req.MuteUntil != nil {
		muteUntil, err := parseRFC3339(*req.MuteUntil)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid mute_until timestamp"})
		}
		pref.MuteUntil = &muteUntil
	}

	if err := notify.SetPref(uid, req.Type, pref); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to store preference"})
	}

	return respondMutation(c, "Notification preference saved", map[string]any{"ok": true})
}
