package relay

import (
	"fmt"

	"github.com/sweeney/relay-controller/internal/gpio"
	"github.com/sweeney/relay-controller/internal/logic"
)

// ValidatePins checks a proposed pin assignment: range, duplicates, and that
// no line is held by another consumer. The availability check opens the chip
// and always closes it again before returning.
func ValidatePins(opener gpio.Opener, chipName string, pins logic.Pins) error {
	if err := logic.CheckPins(pins); err != nil {
		return err
	}

	chip, err := opener.Open(chipName)
	if err != nil {
		return &IOError{Op: "open chip", Err: err}
	}
	defer chip.Close()

	return checkFree(chip, pins)
}

func checkFree(chip gpio.Chip, pins logic.Pins) error {
	for i, pin := range pins {
		used, err := chip.IsUsed(pin)
		if err != nil {
			return &IOError{Op: "query", Relay: i + 1, Pin: pin, Err: err}
		}
		if used {
			return fmt.Errorf("%w: relay %d pin %d", ErrPinBusy, i+1, pin)
		}
	}
	return nil
}
