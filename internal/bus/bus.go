// Package bus is the property bus: the request/response channel that carries
// commands into the relay controller and property state back out.
// The real transport is MQTT; the fake records publications for tests.
package bus

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultPrefix is the topic prefix for all properties.
const DefaultPrefix = "relays"

// Property names.
const (
	PropConnection = "connection"
	PropPins       = "pins"
	PropPolarity   = "polarity"
	PropLabels     = "labels"
	PropConfig     = "config"
)

const relayPropPrefix = "relay_"

// RelayProperty returns the property name of relay index (1-based).
func RelayProperty(index int) string {
	return fmt.Sprintf("%s%d", relayPropPrefix, index)
}

// ParseRelayProperty returns the relay index named by a relay property.
func ParseRelayProperty(name string) (int, bool) {
	if !strings.HasPrefix(name, relayPropPrefix) {
		return 0, false
	}
	var index int
	if _, err := fmt.Sscanf(name[len(relayPropPrefix):], "%d", &index); err != nil {
		return 0, false
	}
	if RelayProperty(index) != name {
		return 0, false
	}
	return index, true
}

// Status is the state coloring of a property.
type Status string

const (
	StatusIdle  Status = "IDLE"
	StatusOK    Status = "OK"
	StatusBusy  Status = "BUSY"
	StatusAlert Status = "ALERT"
)

// Update is the published state of one property.
type Update struct {
	Timestamp time.Time
	Name      string
	Label     string
	Status    Status
	Value     any
	Message   string // human-readable note, e.g. the reason for an ALERT
}

// Command is an inbound Set request for a property.
type Command struct {
	Name    string
	Payload []byte
}

// Handler processes inbound commands.
type Handler func(cmd Command) error

// Publisher publishes property state.
type Publisher interface {
	// Publish sends the current state of a property.
	// Returns error if publishing fails (should not crash the process).
	Publish(u Update) error

	// Delete removes a property from the bus.
	Delete(name string) error

	// Close releases the transport.
	Close() error
}

// ConnectionStatus reports whether the transport is connected.
type ConnectionStatus interface {
	IsConnected() bool
}

// StateTopic is where the retained state of a property is published.
func StateTopic(prefix, name string) string {
	return prefix + "/" + name
}

// SetTopic is where commands for a property are received.
func SetTopic(prefix, name string) string {
	return prefix + "/" + name + "/set"
}

// SetFilter matches the command topics of every property.
func SetFilter(prefix string) string {
	return prefix + "/+/set"
}

// AvailabilityTopic carries "online", or "offline" as the last will.
func AvailabilityTopic(prefix string) string {
	return prefix + "/availability"
}

// ParseSetTopic returns the property name addressed by a command topic.
func ParseSetTopic(prefix, topic string) (string, bool) {
	rest, ok := strings.CutPrefix(topic, prefix+"/")
	if !ok {
		return "", false
	}
	name, ok := strings.CutSuffix(rest, "/set")
	if !ok || name == "" || strings.Contains(name, "/") {
		return "", false
	}
	return name, true
}

// Payload is the JSON envelope of a property update.
type Payload struct {
	Property PropertyPayload `json:"property"`
}

// PropertyPayload contains the property details.
type PropertyPayload struct {
	Timestamp string `json:"timestamp"`
	Name      string `json:"name"`
	Label     string `json:"label,omitempty"`
	Status    Status `json:"status"`
	Value     any    `json:"value"`
	Message   string `json:"message,omitempty"`
}

// FormatPayload creates the JSON payload for a property update.
func FormatPayload(u Update) ([]byte, error) {
	payload := Payload{
		Property: PropertyPayload{
			Timestamp: u.Timestamp.UTC().Format(time.RFC3339),
			Name:      u.Name,
			Label:     u.Label,
			Status:    u.Status,
			Value:     u.Value,
			Message:   u.Message,
		},
	}
	return json.Marshal(payload)
}

// blog is resolved per call so that it picks up the logger configured in main.
func blog() *zerolog.Logger {
	l := log.With().Str("component", "bus").Logger()
	return &l
}
