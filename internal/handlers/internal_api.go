package handlers

import (
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/labstack/echo/v4"

	"notifyd/internal/identity"
	"notifyd/internal/notify"
)

// Resolver maps directory user ids in internal API requests to local ids.
// Set once at startup.
var Resolver *identity.Resolver

// RequireInternalToken gates the service-to-service emit/broadcast API. The
// entity CRUD collaborators hold the shared token; browsers never do.
func RequireInternalToken(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := os.Getenv("INTERNAL_TOKEN")
		if token == "" || c.Request().Header.Get("X-Internal-Token") != token {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid internal token"})
		}
		return next(c)
	}
}

type EmitRequest struct {
	UserID     int64           `json:"user_id"`
	UserIDs    []int64         `json:"user_ids"`
	ActorID    *int64          `json:"actor_id"`
	Type       string          `json:"type"`
	Event      string          `json:"event"`
	EntityType *string         `json:"entity_type"`
	EntityID   *int64          `json:"entity_id"`
	Title      string          `json:"title"`
	Body       string          `json:"body"`
	Data       json.RawMessage `json:"data"`
	Link       *string         `json:"link"`
	ScheduleAt *string         `json:"schedule_at"`
}

func (r *EmitRequest) payload() (notify.Payload, error) {
	p := notify.Payload{
		ActorID:    r.ActorID,
		Type:       r.Type,
		EntityType: r.EntityType,
		EntityID:   r.EntityID,
		Title:      r.Title,
		Body:       r.Body,
		Data:       r.Data,
		Link:       r.Link,
	}
	if r.ScheduleAt != nil {
		at, err := time.Parse(time.RFC3339, *r.ScheduleAt)
		if err != nil {
			return p, err
		}
		p.ScheduleAt = at
	}
	return p, nil
}

// EmitNotification delivers to one directory user. An unresolvable identity
// is not an error; the recipient is skipped and the response says so.
func EmitNotification(c echo.Context) error {
	var req EmitRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	if req.Type == "" || req.UserID == 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "user_id and type are required"})
	}

	p, err := req.payload()
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid schedule_at timestamp"})
	}

	localID, ok := Resolver.Resolve(c.Request().Context(), req.UserID)
	if !ok {
		return c.JSON(http.StatusOK, map[string]any{"ok": true, "id": 0, "skipped": true})
	}
	p.UserID = localID

	id, err := notify.Emit(c.Request().Context(), p)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to emit notification"})
	}

	return c.JSON(http.StatusOK, map[string]any{"ok": true, "id": id})
}

// BroadcastNotification fans out to an explicit directory-id list, or to the
// enabled subscribers of (event, entity) when user_ids is empty.
func BroadcastNotification(c echo.Context) error {
	var req EmitRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}

	p, err := req.payload()
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid schedule_at timestamp"})
	}

	ctx := c.Request().Context()

	if len(req.UserIDs) > 0 {
		if req.Type == "" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "type is required"})
		}
		localIDs := Resolver.ResolveAll(ctx, req.UserIDs)
		ids := notify.BroadcastToUsers(ctx, localIDs, p)
		return c.JSON(http.StatusOK, map[string]any{"ok": true, "ids": ids})
	}

	if req.Event == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "user_ids or event is required"})
	}

	ids, err := notify.BroadcastToSubscribers(ctx, req.Event, req.EntityType, req.EntityID, p)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to broadcast notification"})
	}
	return c.JSON(http.StatusOK, map[string]any{"ok": true, "ids": ids})
}
