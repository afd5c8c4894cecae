package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"notifyd/internal/auth"
	"notifyd/internal/db"
)

type SubscriptionRequest struct {
	EntityType *string  `json:"entity_type"`
	EntityID   *int64   `json:"entity_id"`
	Event      string   `json:"event" validate:"required"`
	Channels   []string `json:"channels"`
}

// Subscribe upserts the opt-in: re-subscribing re-enables the row and
// replaces its channel set.
func Subscribe(c echo.Context) error {
	uid := userID(c)

	var req SubscriptionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	if err := auth.Validate.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Event is required"})
	}

	channels := req.Channels
	if len(channels) == 0 {
		channels = []string{"web"}
	}

	if err := db.UpsertSubscription(uid, req.EntityType, req.EntityID, req.Event, channels); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to store subscription"})
	}

	return respondMutation(c, "Subscribed", map[string]any{"ok": true})
}

// Unsubscribe soft-disables; the row stays for history.
func Unsubscribe(c echo.Context) error {
	uid := userID(c)

	var req SubscriptionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	if err := auth.Validate.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Event is required"})
	}

	if err := db.DisableSubscription(uid, req.EntityType, req.EntityID, req.Event); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to update subscription"})
	}

	return respondMutation(c, "Unsubscribed", map[string]any{"ok": true})
}
