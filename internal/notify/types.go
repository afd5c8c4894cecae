package notify

import (
	"encoding/json"
	"time"
)

const (
	ChannelWeb   = "web"
	ChannelEmail = "email"
	ChannelPush  = "push"
)

// Payload is the single-recipient write request handled by Emit. UserID is a
// local user id; callers holding directory ids go through identity.Resolver
// first.
type Payload struct {
	UserID     int64           `json:"user_id"`
	ActorID    *int64          `json:"actor_id,omitempty"`
	Type       string          `json:"type"`
	EntityType *string         `json:"entity_type,omitempty"`
	EntityID   *int64          `json:"entity_id,omitempty"`
	Title      string          `json:"title"`
	Body       string          `json:"body"`
	Data       json.RawMessage `json:"data,omitempty"`
	Link       *string         `json:"link,omitempty"`

	// Channels restricts which channels may be attempted for this delivery
	// (a subscription's channel set). Nil means no restriction; the type
	// preference still applies on top.
	Channels []string `json:"channels,omitempty"`

	// ScheduleAt defers secondary-channel dispatch. Zero means now.
	ScheduleAt time.Time `json:"schedule_at,omitempty"`
}

func (p *Payload) channelAllowed(channel string) bool {
	if p.Channels == nil {
		return true
	}
	for _, c := range p.Channels {
		if c == channel {
			return true
		}
	}
	return false
}
