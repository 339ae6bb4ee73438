// Package logic contains pure business logic for relay state handling.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
package logic

import "fmt"

// NumRelays is the number of relays driven by one controller.
const NumRelays = 4

// Valid BCM pin range for relay lines.
const (
	MinPin = 1
	MaxPin = 27
)

// Physical line levels.
const (
	LevelLow  = 0
	LevelHigh = 1
)

// State represents the logical state of a relay.
type State string

const (
	StateOn  State = "ON"
	StateOff State = "OFF"
)

// StateOf converts a logical boolean into a State.
func StateOf(on bool) State {
	if on {
		return StateOn
	}
	return StateOff
}

// ParseState parses "ON" or "OFF".
func ParseState(s string) (bool, error) {
	switch State(s) {
	case StateOn:
		return true, nil
	case StateOff:
		return false, nil
	}
	return false, fmt.Errorf("invalid relay state %q (want ON or OFF)", s)
}

// Polarity is the active-state policy shared by all relays.
type Polarity string

const (
	ActiveLow  Polarity = "LOW"  // logical ON = level 0
	ActiveHigh Polarity = "HIGH" // logical ON = level 1
)

// ParsePolarity parses "LOW" or "HIGH".
func ParsePolarity(s string) (Polarity, error) {
	switch Polarity(s) {
	case ActiveLow, ActiveHigh:
		return Polarity(s), nil
	}
	return "", fmt.Errorf("invalid active state %q (want LOW or HIGH)", s)
}

// Pins is a pin assignment, one BCM pin per relay (index 0 = relay 1).
type Pins [NumRelays]int

// DefaultPins is the factory pin assignment.
var DefaultPins = Pins{16, 17, 20, 21}
