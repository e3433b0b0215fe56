package outbox

import (
	"encoding/json"
	"time"
)

// ActorRef identifies who caused the event. System jobs use Role "system".
type ActorRef struct {
	AccountID string `json:"accountId,omitempty"`
	Role      string `json:"role,omitempty"`
}

// SystemActor is attached to events produced by cron jobs and callbacks.
var SystemActor = &ActorRef{Role: "system"}

// PayloadEnvelope is the stable payload structure stored in outbox_events.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}
