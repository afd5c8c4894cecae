package stream_test

import (
	"encoding/json"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notifyd/internal/db"
	"notifyd/internal/dbtest"
	"notifyd/internal/notify"
	"notifyd/internal/stream"
)

func testStreamer() *stream.Streamer {
	return &stream.Streamer{
		PollInterval: 5 * time.Millisecond,
		MaxDuration:  100 * time.Millisecond,
		BatchSize:    50,
		TouchEvery:   time.Hour,
	}
}

func newStreamContext(target string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest("GET", target, nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

type frame struct {
	id    string
	event string
	data  string
}

// parseFrames splits an SSE body into frames, dropping comment heartbeats.
func parseFrames(t *testing.T, body string) []frame {
	t.Helper()
	frames := []frame{}
	for _, block := range strings.Split(body, "\n\n") {
		if block == "" || strings.HasPrefix(block, ":") {
			continue
		}
		var f frame
		for _, line := range strings.Split(block, "\n") {
			switch {
			case strings.HasPrefix(line, "id: "):
				f.id = strings.TrimPrefix(line, "id: ")
			case strings.HasPrefix(line, "event: "):
				f.event = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				f.data = strings.TrimPrefix(line, "data: ")
			}
		}
		frames = append(frames, f)
	}
	return frames
}

func eventsOf(frames []frame) []string {
	events := make([]string, len(frames))
	for i, f := range frames {
		events[i] = f.event
	}
	return events
}

func TestResumeCursor(t *testing.T) {
	c, _ := newStreamContext("/stream?cursor=7")
	assert.Equal(t, int64(7), stream.ResumeCursor(c))

	// The standard header wins over the query parameter.
	c, _ = newStreamContext("/stream?cursor=7")
	c.Request().Header.Set("Last-Event-ID", "12")
	assert.Equal(t, int64(12), stream.ResumeCursor(c))

	c, _ = newStreamContext("/stream?cursor=junk")
	assert.Zero(t, stream.ResumeCursor(c))

	c, _ = newStreamContext("/stream?cursor=-3")
	assert.Zero(t, stream.ResumeCursor(c))

	c, _ = newStreamContext("/stream")
	assert.Zero(t, stream.ResumeCursor(c))
}

func TestServeFeedDeliversBacklog(t *testing.T) {
	dbtest.Setup(t)
	notify.ResetPrefCache()
	uid := dbtest.SeedUser(t, "kofi@example.com")
	_, r1 := dbtest.SeedNotification(t, uid, "note.comment", "first")
	_, r2 := dbtest.SeedNotification(t, uid, "note.comment", "second")

	c, rec := newStreamContext("/stream")
	require.NoError(t, testStreamer().ServeFeed(c, uid))

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	frames := parseFrames(t, rec.Body.String())
	require.GreaterOrEqual(t, len(frames), 4)
	assert.Equal(t, []string{"hello", "notify", "notify"}, eventsOf(frames[:3]))
	assert.Equal(t, "bye", frames[len(frames)-1].event)

	// Event ids carry the cursor.
	assert.Equal(t, strconv.FormatInt(r1, 10), frames[1].id)
	assert.Equal(t, strconv.FormatInt(r2, 10), frames[2].id)

	var item struct {
		ID    int64  `json:"id"`
		Title string `json:"title"`
	}
	require.NoError(t, json.Unmarshal([]byte(frames[1].data), &item))
	assert.Equal(t, r1, item.ID)
	assert.Equal(t, "first", item.Title)

	var bye struct {
		Cursor int64 `json:"cursor"`
	}
	require.NoError(t, json.Unmarshal([]byte(frames[len(frames)-1].data), &bye))
	assert.Equal(t, r2, bye.Cursor)

	// Both rows stamped delivered.
	for _, rid := range []int64{r1, r2} {
		r, err := db.GetRecipient(rid)
		require.NoError(t, err)
		assert.NotNil(t, r.DeliveredAt)
	}
}

func TestServeFeedResumesPastCursor(t *testing.T) {
	dbtest.Setup(t)
	notify.ResetPrefCache()
	uid := dbtest.SeedUser(t, "kofi@example.com")
	_, r1 := dbtest.SeedNotification(t, uid, "note.comment", "first")
	_, r2 := dbtest.SeedNotification(t, uid, "note.comment", "second")

	c, rec := newStreamContext("/stream?cursor=" + strconv.FormatInt(r1, 10))
	require.NoError(t, testStreamer().ServeFeed(c, uid))

	frames := parseFrames(t, rec.Body.String())
	notifies := []frame{}
	for _, f := range frames {
		if f.event == "notify" {
			notifies = append(notifies, f)
		}
	}
	require.Len(t, notifies, 1)
	assert.Equal(t, strconv.FormatInt(r2, 10), notifies[0].id)
}

func TestServeFeedHoldsMutedRows(t *testing.T) {
	dbtest.Setup(t)
	notify.ResetPrefCache()
	uid := dbtest.SeedUser(t, "kofi@example.com")
	_, r1 := dbtest.SeedNotification(t, uid, "note.comment", "muted type")
	_, r2 := dbtest.SeedNotification(t, uid, "task.assigned", "behind it")

	mute := time.Now().UTC().Add(time.Hour)
	require.NoError(t, notify.SetPref(uid, "note.comment", notify.Preference{AllowWeb: true, MuteUntil: &mute}))

	c, rec := newStreamContext("/stream")
	require.NoError(t, testStreamer().ServeFeed(c, uid))

	// Nothing delivered: the muted row blocks, and the row behind it waits
	// to keep per-user ordering.
	for _, f := range parseFrames(t, rec.Body.String()) {
		assert.NotEqual(t, "notify", f.event)
	}
	for _, rid := range []int64{r1, r2} {
		r, err := db.GetRecipient(rid)
		require.NoError(t, err)
		assert.Nil(t, r.DeliveredAt)
	}

	// Once the mute lifts, the held rows stream in their original order.
	require.NoError(t, notify.SetPref(uid, "note.comment", notify.Preference{AllowWeb: true}))

	c, rec = newStreamContext("/stream")
	require.NoError(t, testStreamer().ServeFeed(c, uid))

	notifies := []frame{}
	for _, f := range parseFrames(t, rec.Body.String()) {
		if f.event == "notify" {
			notifies = append(notifies, f)
		}
	}
	require.Len(t, notifies, 2)
	assert.Equal(t, strconv.FormatInt(r1, 10), notifies[0].id)
	assert.Equal(t, strconv.FormatInt(r2, 10), notifies[1].id)
}

func TestServeFeedRegistersDevice(t *testing.T) {
	dbtest.Setup(t)
	notify.ResetPrefCache()
	uid := dbtest.SeedUser(t, "kofi@example.com")

	c, _ := newStreamContext("/stream")
	c.Set("session_id", "abc123")
	require.NoError(t, testStreamer().ServeFeed(c, uid))

	var count int
	require.NoError(t, db.DB.Get(&count, `SELECT COUNT(*) FROM devices WHERE user_id = $1 AND kind = 'web'`, uid))
	assert.Equal(t, 1, count)
}

func TestServeUnread(t *testing.T) {
	dbtest.Setup(t)
	uid := dbtest.SeedUser(t, "kofi@example.com")
	dbtest.SeedNotification(t, uid, "note.comment", "one")
	dbtest.SeedNotification(t, uid, "note.comment", "two")

	c, rec := newStreamContext("/stream/unread")
	require.NoError(t, testStreamer().ServeUnread(c, uid))

	frames := parseFrames(t, rec.Body.String())
	require.GreaterOrEqual(t, len(frames), 2)
	assert.Equal(t, "count", frames[0].event)
	assert.Equal(t, "bye", frames[len(frames)-1].event)

	var payload struct {
		Count int64 `json:"count"`
	}
	require.NoError(t, json.Unmarshal([]byte(frames[0].data), &payload))
	assert.Equal(t, int64(2), payload.Count)

	// The count is pushed once; the steady state is heartbeats only.
	for _, f := range frames[1 : len(frames)-1] {
		assert.NotEqual(t, "count", f.event)
	}
}
