package stream

import (
	"encoding/json"
	"fmt"
	"io"
)

// writeFrame emits one server-sent event: optional id, optional event tag,
// JSON data, blank-line terminator.
func writeFrame(w io.Writer, id, event string, data any) error {
	if id != "" {
		if _, err := fmt.Fprintf(w, "id: %s\n", id); err != nil {
			return err
		}
	}
	if event != "" {
		if _, err := fmt.Fprintf(w, "event: %s\n", event); err != nil {
			return err
		}
	}
	body, err := json.Marshal(data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", body)
	return err
}

// writeComment emits a comment-only heartbeat frame. Proxies see traffic,
// clients ignore it.
func writeComment(w io.Writer, text string) error {
	_, err := fmt.Fprintf(w, ": %s\n\n", text)
	return err
}
