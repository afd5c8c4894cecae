package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"notifyd/internal/db"
)

type DeviceRequest struct {
	Kind     string `json:"kind"`
	Endpoint string `json:"endpoint" validate:"required"`
}

// RegisterDevice stores a push-capable endpoint (an FCM registration token)
// for the calling user's browser session.
func RegisterDevice(c echo.Context) error {
	uid := userID(c)

	var req DeviceRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	if req.Endpoint == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Endpoint is required"})
	}
	if req.Kind == "" {
		req.Kind = "push"
	}

	sessionID, _ := c.Get("session_id").(string)
	fingerprint := db.DeviceFingerprint(uid, sessionID, c.RealIP(), c.Request().UserAgent())

	id, err := db.UpsertDevice(uid, req.Kind, req.Endpoint, fingerprint, c.Request().UserAgent())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to register device"})
	}

	return c.JSON(http.StatusOK, map[string]any{"ok": true, "id": id})
}
