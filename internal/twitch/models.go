// Package twitch decodes Twitch stream-change webhook notifications.
//
// A stream going live delivers a single-element data array; a stream going
// offline delivers an empty array.
package twitch

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	EventStreamOnline  = "stream.online"
	EventStreamOffline = "stream.offline"
)

// Stream is one entry of a stream-change notification.
type Stream struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	GameID       string    `json:"game_id"`
	CommunityIDs []string  `json:"community_ids"`
	Type         string    `json:"type"`
	Title        string    `json:"title"`
	ViewerCount  int       `json:"viewer_count"`
	StartedAt    time.Time `json:"started_at"`
	Language     string    `json:"language"`
	ThumbnailURL string    `json:"thumbnail_url"`
}

// StreamData is the notification envelope.
type StreamData struct {
	Data []Stream `json:"data"`
}

// Decode parses a notification body. The data field must be present.
func Decode(body []byte) (*StreamData, error) {
	var raw struct {
		Data *[]Stream `json:"data"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode stream notification: %w", err)
	}
	if raw.Data == nil {
		return nil, fmt.Errorf("decode stream notification: missing data field")
	}
	return &StreamData{Data: *raw.Data}, nil
}

// Online reports whether the notification announces a live stream.
func (s *StreamData) Online() bool {
	return len(s.Data) > 0
}

// EventType names the notification for queueing.
func (s *StreamData) EventType() string {
	if s.Online() {
		return EventStreamOnline
	}
	return EventStreamOffline
}

// DedupeKey identifies a live stream session so hub retries collapse into
// one job. Offline notifications carry no identity and return "".
func (s *StreamData) DedupeKey() string {
	if !s.Online() {
		return ""
	}
	st := s.Data[0]
	return fmt.Sprintf("twitch:stream:%s:%s", st.ID, st.StartedAt.UTC().Format(time.RFC3339))
}
