package internal

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestDecodeUpdatePayload(t *testing.T) {
	raw := json.RawMessage(`{"user_id":7,"latitude":40.0,"longitude":-73.0,"timestamp":"2026-09-01T12:00:00Z"}`)
	var payload UpdatePayload
	if err := DecodePayload(raw, &payload); err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	if payload.UserID != 7 || payload.Latitude != 40.0 || payload.Longitude != -73.0 {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestDecodePayloadMalformed(t *testing.T) {
	cases := []json.RawMessage{
		nil,
		json.RawMessage(`not json`),
		json.RawMessage(`{"latitude":40.0,"longitude":-73.0}`),        // missing user_id
		json.RawMessage(`{"user_id":0,"latitude":1,"longitude":1}`),   // zero user_id
		json.RawMessage(`{"user_id":7,"latitude":91,"longitude":0}`),  // latitude out of range
		json.RawMessage(`{"user_id":7,"latitude":0,"longitude":181}`), // longitude out of range
	}
	for i, raw := range cases {
		var payload UpdatePayload
		err := DecodePayload(raw, &payload)
		if !errors.Is(err, ErrMalformedPayload) {
			t.Fatalf("case %d: expected ErrMalformedPayload, got %v", i, err)
		}
	}
}

func TestDecodeJoinPayload(t *testing.T) {
	var payload JoinPayload
	if err := DecodePayload(json.RawMessage(`{"user_id":3}`), &payload); err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	if payload.UserID != 3 {
		t.Fatalf("unexpected user id: %d", payload.UserID)
	}
}

func TestEncodeEventRoundTrip(t *testing.T) {
	encoded, err := EncodeEvent(EventNearbyUsers, []NearbyUser{{UserID: 1, Username: "alice"}})
	if err != nil {
		t.Fatalf("EncodeEvent: %v", err)
	}
	var env Envelope
	if err := json.Unmarshal(encoded, &env); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if env.Event != EventNearbyUsers {
		t.Fatalf("unexpected event: %s", env.Event)
	}
	var users []NearbyUser
	if err := json.Unmarshal(env.Data, &users); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
	if len(users) != 1 || users[0].Username != "alice" {
		t.Fatalf("unexpected users: %+v", users)
	}
}

func TestParseEventTime(t *testing.T) {
	now := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	if got := ParseEventTime("", now); !got.Equal(now) {
		t.Fatalf("empty timestamp should fall back to now")
	}
	if got := ParseEventTime("garbage", now); !got.Equal(now) {
		t.Fatalf("unparseable timestamp should fall back to now")
	}
	want := time.Date(2026, 9, 1, 9, 30, 0, 0, time.UTC)
	if got := ParseEventTime("2026-09-01T09:30:00Z", now); !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}
