package worker

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"firebase.google.com/go/v4/messaging"

	"notifyd/internal/config"
	"notifyd/internal/db"
)

// sendPush delivers to every push device the user has registered. Device
// endpoints are FCM registration tokens. At least one device must accept
// for the work item to count as sent.
func sendPush(ctx context.Context, userID int64, notification *db.Notification) error {
	client := config.GetFirebaseClient()
	if client == nil || client.Messaging == nil {
		return errors.New("push transport not configured")
	}

	devices, err := db.PushDevices(userID)
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		return errors.New("no push devices registered")
	}

	data := map[string]string{
		"notification_id": fmtInt(notification.ID),
		"type":            notification.Type,
	}
	if notification.Link != nil {
		data["link"] = *notification.Link
	}

	sent := 0
	for _, device := range devices {
		msg := &messaging.Message{
			Token: device.Endpoint,
			Notification: &messaging.Notification{
				Title: notification.Title,
				Body:  notification.Body,
			},
			Data: data,
		}
		if _, err := client.Messaging.Send(ctx, msg); err != nil {
			slog.Warn("push send failed for device", "device_id", device.ID, "user_id", userID, "error", err)
			continue
		}
		sent++
	}

	if sent == 0 {
		return errors.New("push delivery failed for all devices")
	}
	return nil
}

func fmtInt(v int64) string {
	return strconv.FormatInt(v, 10)
}
