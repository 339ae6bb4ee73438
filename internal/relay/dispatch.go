package relay

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sweeney/relay-controller/internal/bus"
	"github.com/sweeney/relay-controller/internal/logic"
)

type labelCommand struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// Dispatch applies an inbound Set command. Payloads are JSON; a bare word is
// accepted for string-valued properties.
func (c *Controller) Dispatch(cmd bus.Command) error {
	err := c.dispatch(cmd)
	if err != nil {
		c.log.Warn().Err(err).Str("property", cmd.Name).Bytes("payload", cmd.Payload).Msg("Command rejected")
	}
	return err
}

func (c *Controller) dispatch(cmd bus.Command) error {
	if index, ok := bus.ParseRelayProperty(cmd.Name); ok {
		word, err := decodeWord(cmd.Payload)
		if err != nil {
			return err
		}
		on, err := logic.ParseState(word)
		if err != nil {
			return err
		}
		return c.SetRelay(index, on)
	}

	switch cmd.Name {
	case bus.PropConnection:
		word, err := decodeWord(cmd.Payload)
		if err != nil {
			return err
		}
		switch word {
		case "CONNECT":
			return c.Connect()
		case "DISCONNECT":
			return c.Disconnect()
		}
		return fmt.Errorf("connection: unknown action %q", word)

	case bus.PropPins:
		var values []int
		if err := json.Unmarshal(cmd.Payload, &values); err != nil {
			return fmt.Errorf("pins: %w", err)
		}
		if len(values) != logic.NumRelays {
			return fmt.Errorf("pins: want %d values, got %d", logic.NumRelays, len(values))
		}
		var pins logic.Pins
		copy(pins[:], values)
		return c.SetPins(pins)

	case bus.PropPolarity:
		word, err := decodeWord(cmd.Payload)
		if err != nil {
			return err
		}
		p, err := logic.ParsePolarity(word)
		if err != nil {
			return err
		}
		return c.SetPolarity(p)

	case bus.PropLabels:
		var lc labelCommand
		if err := json.Unmarshal(cmd.Payload, &lc); err != nil {
			return fmt.Errorf("labels: %w", err)
		}
		return c.SetLabel(lc.Index, lc.Text)

	case bus.PropConfig:
		word, err := decodeWord(cmd.Payload)
		if err != nil {
			return err
		}
		if word != "SAVE" {
			return fmt.Errorf("config: unknown action %q", word)
		}
		return c.SaveConfig()
	}

	return fmt.Errorf("%w: %s", ErrUnknownProperty, cmd.Name)
}

// decodeWord reads a JSON string, or a bare word, upper-cased.
func decodeWord(payload []byte) (string, error) {
	var s string
	if err := json.Unmarshal(payload, &s); err != nil {
		s = string(payload)
	}
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return "", fmt.Errorf("empty payload")
	}
	return s, nil
}
