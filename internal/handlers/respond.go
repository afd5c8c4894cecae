package handlers

import (
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"notifyd/internal/auth"
)

func parseRFC3339(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

func userID(c echo.Context) int64 {
	// Set by the JWT middleware
	return c.Get("user_id").(int64)
}

// wantsJSON reports whether the caller signalled an XHR/JSON preference.
// Browser form posts land on the redirect-with-flash path instead; both
// paths perform the identical state change.
func wantsJSON(c echo.Context) bool {
	if c.Request().Header.Get("X-Requested-With") == "XMLHttpRequest" {
		return true
	}
	accept := c.Request().Header.Get("Accept")
	if strings.Contains(accept, "application/json") {
		return true
	}
	return !strings.Contains(accept, "text/html")
}

func flashRedirect(c echo.Context, message string) error {
	target := os.Getenv("NOTIFICATIONS_PAGE_URL")
	if target == "" {
		target = "/notifications"
	}
	return c.Redirect(http.StatusSeeOther, target+"?flash="+url.QueryEscape(message))
}

// respondMutation returns JSON or a flash redirect for the same state change.
func respondMutation(c echo.Context, flash string, payload map[string]any) error {
	if wantsJSON(c) {
		return c.JSON(http.StatusOK, payload)
	}
	return flashRedirect(c, flash)
}

// RequireCsrf guards mutating endpoints. The token comes from the
// X-CSRF-Token header or a csrf_token form field; failure is a structured
// 422, never a silent no-op.
func RequireCsrf(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := c.Request().Header.Get("X-CSRF-Token")
		if token == "" {
			token = c.FormValue("csrf_token")
		}
		if err := auth.VerifyCsrfToken(userID(c), token); err != nil {
			if wantsJSON(c) {
				return c.JSON(http.StatusUnprocessableEntity, map[string]string{"error": "Invalid or missing CSRF token"})
			}
			return flashRedirect(c, "Your session expired, please retry")
		}
		return next(c)
	}
}
