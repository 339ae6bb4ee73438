package bus

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatPayload(t *testing.T) {
	u := Update{
		Timestamp: time.Date(2026, 2, 2, 22, 18, 12, 0, time.UTC),
		Name:      "relay_1",
		Label:     "Mount",
		Status:    StatusOK,
		Value:     "ON",
	}

	payload, err := FormatPayload(u)
	require.NoError(t, err)

	var parsed Payload
	require.NoError(t, json.Unmarshal(payload, &parsed))

	assert.Equal(t, "2026-02-02T22:18:12Z", parsed.Property.Timestamp)
	assert.Equal(t, "relay_1", parsed.Property.Name)
	assert.Equal(t, "Mount", parsed.Property.Label)
	assert.Equal(t, StatusOK, parsed.Property.Status)
	assert.Equal(t, "ON", parsed.Property.Value)
	assert.Empty(t, parsed.Property.Message)
	assert.NotContains(t, string(payload), "message")
}

func TestFormatPayloadPins(t *testing.T) {
	u := Update{
		Timestamp: time.Now(),
		Name:      PropPins,
		Status:    StatusAlert,
		Value:     [4]int{16, 17, 20, 21},
		Message:   "pin 17 already in use",
	}

	payload, err := FormatPayload(u)
	require.NoError(t, err)
	assert.Contains(t, string(payload), `"value":[16,17,20,21]`)
	assert.Contains(t, string(payload), `"status":"ALERT"`)
	assert.Contains(t, string(payload), `"message":"pin 17 already in use"`)
}

func TestRelayProperty(t *testing.T) {
	for i := 1; i <= 4; i++ {
		name := RelayProperty(i)
		got, ok := ParseRelayProperty(name)
		assert.True(t, ok, name)
		assert.Equal(t, i, got)
	}

	for _, name := range []string{"relay_", "relay_x", "relay_1x", "relay_01", "pins", "relay"} {
		_, ok := ParseRelayProperty(name)
		assert.False(t, ok, name)
	}
}

func TestTopics(t *testing.T) {
	assert.Equal(t, "relays/relay_2", StateTopic(DefaultPrefix, RelayProperty(2)))
	assert.Equal(t, "relays/pins/set", SetTopic(DefaultPrefix, PropPins))
	assert.Equal(t, "relays/+/set", SetFilter(DefaultPrefix))
	assert.Equal(t, "relays/availability", AvailabilityTopic(DefaultPrefix))
}

func TestParseSetTopic(t *testing.T) {
	tests := []struct {
		topic string
		name  string
		ok    bool
	}{
		{"relays/relay_1/set", "relay_1", true},
		{"relays/connection/set", "connection", true},
		{"relays/relay_1", "", false},
		{"other/relay_1/set", "", false},
		{"relays//set", "", false},
		{"relays/a/b/set", "", false},
	}

	for _, tt := range tests {
		name, ok := ParseSetTopic(DefaultPrefix, tt.topic)
		assert.Equal(t, tt.ok, ok, tt.topic)
		assert.Equal(t, tt.name, name, tt.topic)
	}
}

func TestFakePublisher(t *testing.T) {
	f := NewFakePublisher()

	require.NoError(t, f.Publish(Update{Name: "relay_1", Value: "OFF"}))
	require.NoError(t, f.Publish(Update{Name: "pins"}))
	require.NoError(t, f.Publish(Update{Name: "relay_1", Value: "ON"}))
	require.NoError(t, f.Delete("relay_1"))

	assert.Len(t, f.Updates, 3)
	assert.Len(t, f.For("relay_1"), 2)
	last, ok := f.Last("relay_1")
	require.True(t, ok)
	assert.Equal(t, "ON", last.Value)
	assert.Equal(t, []string{"relay_1"}, f.Deleted)

	_, ok = f.Last("relay_4")
	assert.False(t, ok)

	f.PublishError = errors.New("simulated error")
	assert.Error(t, f.Publish(Update{Name: "relay_2"}))
	assert.Len(t, f.Updates, 3)

	f.Reset()
	assert.Empty(t, f.Updates)
	assert.Empty(t, f.Deleted)
	assert.NoError(t, f.PublishError)
}

func TestTee(t *testing.T) {
	a := NewFakePublisher()
	b := NewFakePublisher()
	a.PublishError = errors.New("a down")

	p := Tee(a, b)
	err := p.Publish(Update{Name: "pins"})
	assert.ErrorContains(t, err, "a down")
	assert.Len(t, b.Updates, 1, "later publishers still receive the update")

	require.NoError(t, p.Delete("relay_1"))
	assert.Equal(t, []string{"relay_1"}, a.Deleted)
	assert.Equal(t, []string{"relay_1"}, b.Deleted)

	require.NoError(t, p.Close())
	assert.True(t, a.Closed)
	assert.True(t, b.Closed)
}
