package handlers

import (
	"github.com/labstack/echo/v4"

	"notifyd/internal/stream"
)

// Streamer drives the SSE endpoints. Set once at startup; tests swap in one
// with short intervals.
var Streamer = stream.NewStreamer()

func StreamFeed(c echo.Context) error {
	return Streamer.ServeFeed(c, userID(c))
}

func StreamUnread(c echo.Context) error {
	return Streamer.ServeUnread(c, userID(c))
}
