package internal

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Wire event names. Inbound events mutate presence state; outbound events
// carry the recomputed nearby sets and connection status back to the client.
const (
	EventJoin        = "location:join"
	EventUpdate      = "location:update"
	EventLeave       = "location:leave"
	EventNearbyUsers = "location:nearby-users"
	EventStatus      = "status"
	EventError       = "error"
)

// Envelope is the json frame exchanged over the websocket: a tagged event
// name plus an event-specific payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// JoinPayload activates presence for a user.
type JoinPayload struct {
	UserID int64 `json:"user_id" validate:"required,gt=0"`
}

// UpdatePayload records a position. Timestamp is the client's emission time
// in RFC3339; the server falls back to its own clock when absent.
type UpdatePayload struct {
	UserID    int64   `json:"user_id" validate:"required,gt=0"`
	Latitude  float64 `json:"latitude" validate:"min=-90,max=90"`
	Longitude float64 `json:"longitude" validate:"min=-180,max=180"`
	Timestamp string  `json:"timestamp,omitempty"`
}

// LeavePayload deactivates presence for a user.
type LeavePayload struct {
	UserID int64 `json:"user_id" validate:"required,gt=0"`
}

// NearbyUser is one entry of a dispatched nearby set, mirroring the profile
// fields the map view renders.
type NearbyUser struct {
	UserID    int64           `json:"userId"`
	Username  string          `json:"username"`
	Latitude  float64         `json:"latitude"`
	Longitude float64         `json:"longitude"`
	Avatar    json.RawMessage `json:"avatar_data"`
	IsActive  bool            `json:"is_active"`
	Headline  *string         `json:"headline"`
	Pronouns  *string         `json:"pronouns"`
}

// StatusPayload is sent once after a successful handshake.
type StatusPayload struct {
	Message string `json:"message"`
}

// ErrorPayload notifies a client of a dropped event without closing the
// connection.
type ErrorPayload struct {
	Message string `json:"message"`
}

// ErrMalformedPayload covers events whose payload is missing required fields
// or fails validation. Such events are dropped, never fatal.
var ErrMalformedPayload = errors.New("malformed event payload")

var payloadValidator = validator.New()

// DecodePayload unmarshals and validates an event payload into out.
func DecodePayload(data json.RawMessage, out any) error {
	if len(data) == 0 {
		return ErrMalformedPayload
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if err := payloadValidator.Struct(out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return nil
}

// EncodeEvent marshals an envelope with the given payload.
func EncodeEvent(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}

// ParseEventTime interprets a client-supplied timestamp, falling back to now
// when it is absent or unparseable.
func ParseEventTime(value string, now time.Time) time.Time {
	if value == "" {
		return now
	}
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return now
	}
	return ts
}
