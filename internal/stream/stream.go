// Package stream implements the resumable SSE delivery loop. Each connection
// is an independent worker observing shared storage through bounded polling;
// there is no in-process bus, so any server process can serve any client.
package stream

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"notifyd/internal/db"
	"notifyd/internal/notify"
)

// Streamer holds the loop tuning knobs. Defaults trade push latency for
// operational simplicity: delivery lag is bounded by PollInterval.
type Streamer struct {
	PollInterval time.Duration
	MaxDuration  time.Duration
	BatchSize    int
	TouchEvery   time.Duration
}

func NewStreamer() *Streamer {
	return &Streamer{
		PollInterval: 2 * time.Second,
		MaxDuration:  2 * time.Minute,
		BatchSize:    50,
		TouchEvery:   30 * time.Second,
	}
}

// ResumeCursor resolves the client's resume position: the standard
// Last-Event-ID header takes precedence, then an explicit cursor query
// parameter, then 0.
func ResumeCursor(c echo.Context) int64 {
	if raw := c.Request().Header.Get("Last-Event-ID"); raw != "" {
		if cursor, err := strconv.ParseInt(raw, 10, 64); err == nil && cursor >= 0 {
			return cursor
		}
	}
	if raw := c.QueryParam("cursor"); raw != "" {
		if cursor, err := strconv.ParseInt(raw, 10, 64); err == nil && cursor >= 0 {
			return cursor
		}
	}
	return 0
}

func sseHeaders(c echo.Context) *echo.Response {
	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set("Cache-Control", "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.Header().Set("X-Accel-Buffering", "no")
	resp.WriteHeader(http.StatusOK)
	return resp
}

// registerDevice records the connecting browser. Device bookkeeping is
// best-effort: on failure the stream still runs, touch updates are skipped.
func (s *Streamer) registerDevice(c echo.Context, userID int64) int64 {
	sessionID, _ := c.Get("session_id").(string)
	fingerprint := db.DeviceFingerprint(userID, sessionID, c.RealIP(), c.Request().UserAgent())
	deviceID, err := db.UpsertDevice(userID, "web", "", fingerprint, c.Request().UserAgent())
	if err != nil {
		slog.Warn("stream: device registration failed", "user_id", userID, "error", err)
		return 0
	}
	return deviceID
}

// ServeFeed runs the notification delivery loop for one connection until the
// peer disconnects or the wall-clock budget expires; the terminal bye frame
// forces the client to reconnect with its advanced cursor.
func (s *Streamer) ServeFeed(c echo.Context, userID int64) error {
	resp := sseHeaders(c)
	connID := uuid.NewString()[:8]

	cursor := ResumeCursor(c)
	deviceID := s.registerDevice(c, userID)

	writeFrame(resp, strconv.FormatInt(cursor, 10), "hello", map[string]int64{"cursor": cursor})
	resp.Flush()

	slog.Info("stream: connected", "conn", connID, "user_id", userID, "cursor", cursor)

	ctx := c.Request().Context()
	budget := time.After(s.MaxDuration)
	ticker := time.NewTicker(s.PollInterval)
	defer ticker.Stop()
	lastTouch := time.Now()

	for {
		select {
		case <-ctx.Done():
			// Peer gone; nothing left to write to.
			slog.Info("stream: client disconnected", "conn", connID, "user_id", userID, "cursor", cursor)
			return nil
		case <-budget:
			writeFrame(resp, strconv.FormatInt(cursor, 10), "bye", map[string]int64{"cursor": cursor})
			resp.Flush()
			slog.Info("stream: budget reached", "conn", connID, "user_id", userID, "cursor", cursor)
			return nil
		case <-ticker.C:
		}

		items, err := db.FeedAfter(userID, cursor, s.BatchSize)
		if err != nil {
			// Transient by policy: the next tick is the retry.
			slog.Warn("stream: poll failed", "conn", connID, "user_id", userID, "error", err)
			continue
		}

		now := time.Now()
		delivered := make([]int64, 0, len(items))
		for _, item := range items {
			pref := notify.LivePref(userID, item.Type)
			if !pref.AllowWeb || pref.Muted(now) {
				// The skipped row must stay above the cursor so it is
				// redelivered once the mute lifts; rows behind it wait to
				// preserve per-user order.
				break
			}
			if err := writeFrame(resp, strconv.FormatInt(item.RecipientID, 10), "notify", item); err != nil {
				slog.Warn("stream: write failed", "conn", connID, "user_id", userID, "error", err)
				return nil
			}
			cursor = item.RecipientID
			delivered = append(delivered, item.RecipientID)
		}

		if len(delivered) > 0 {
			resp.Flush()
			if err := db.MarkDelivered(delivered, time.Now()); err != nil {
				slog.Warn("stream: failed to stamp delivered_at", "conn", connID, "count", len(delivered), "error", err)
			}
		} else {
			writeComment(resp, "ping")
			resp.Flush()
		}

		if deviceID != 0 && time.Since(lastTouch) >= s.TouchEvery {
			if err := db.TouchDevice(deviceID); err != nil {
				slog.Warn("stream: device touch failed", "device_id", deviceID, "error", err)
			}
			lastTouch = time.Now()
		}
	}
}

// ServeUnread is the lighter sibling stream: it polls only the unread count
// and pushes a frame when the value changes, under the same bounded-duration
// reconnect discipline.
func (s *Streamer) ServeUnread(c echo.Context, userID int64) error {
	resp := sseHeaders(c)

	ctx := c.Request().Context()
	budget := time.After(s.MaxDuration)
	ticker := time.NewTicker(s.PollInterval)
	defer ticker.Stop()

	last := int64(-1)
	for {
		count, err := db.UnreadCount(userID)
		if err != nil {
			slog.Warn("stream: unread poll failed", "user_id", userID, "error", err)
		} else if count != last {
			writeFrame(resp, "", "count", map[string]int64{"count": count})
			last = count
		} else {
			writeComment(resp, "ping")
		}
		resp.Flush()

		select {
		case <-ctx.Done():
			return nil
		case <-budget:
			writeFrame(resp, "", "bye", map[string]int64{"count": last})
			resp.Flush()
			return nil
		case <-ticker.C:
		}
	}
}
