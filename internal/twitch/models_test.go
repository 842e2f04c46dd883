package twitch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const onlinePayload = `{
  "data": [{
    "id": "0123456789",
    "user_id": "5678",
    "game_id": "21779",
    "community_ids": [],
    "type": "live",
    "title": "Best Stream Ever",
    "viewer_count": 417,
    "started_at": "2017-12-01T10:09:45Z",
    "language": "en",
    "thumbnail_url": "https://link/to/thumbnail.jpg"
  }]
}`

func TestDecode_Online(t *testing.T) {
	sd, err := Decode([]byte(onlinePayload))
	require.NoError(t, err)
	require.Len(t, sd.Data, 1)

	st := sd.Data[0]
	assert.Equal(t, "0123456789", st.ID)
	assert.Equal(t, "5678", st.UserID)
	assert.Equal(t, "live", st.Type)
	assert.Equal(t, 417, st.ViewerCount)
	assert.Equal(t, time.Date(2017, 12, 1, 10, 9, 45, 0, time.UTC), st.StartedAt)
	assert.Empty(t, st.CommunityIDs)

	assert.True(t, sd.Online())
	assert.Equal(t, EventStreamOnline, sd.EventType())
	assert.Equal(t, "twitch:stream:0123456789:2017-12-01T10:09:45Z", sd.DedupeKey())
}

func TestDecode_Offline(t *testing.T) {
	sd, err := Decode([]byte(`{"data":[]}`))
	require.NoError(t, err)

	assert.False(t, sd.Online())
	assert.Equal(t, EventStreamOffline, sd.EventType())
	assert.Empty(t, sd.DedupeKey())
}

func TestDecode_Errors(t *testing.T) {
	for _, body := range []string{``, `not json`, `{}`, `{"data":null}`, `{"data":{}}`} {
		_, err := Decode([]byte(body))
		assert.Error(t, err, "body %q", body)
	}
}
