package logic

import (
	"errors"
	"fmt"
)

var (
	ErrPinRange     = errors.New("pin out of range")
	ErrPinDuplicate = errors.New("pin assigned twice")
)

// CheckPins verifies the static rules of a pin assignment: every pin within
// [MinPin, MaxPin] and no pin used by two relays.
func CheckPins(p Pins) error {
	for i, pin := range p {
		if pin < MinPin || pin > MaxPin {
			return fmt.Errorf("%w: relay %d pin %d not in [%d,%d]", ErrPinRange, i+1, pin, MinPin, MaxPin)
		}
	}
	for i := 0; i < len(p); i++ {
		for j := i + 1; j < len(p); j++ {
			if p[i] == p[j] {
				return fmt.Errorf("%w: pin %d on relays %d and %d", ErrPinDuplicate, p[i], i+1, j+1)
			}
		}
	}
	return nil
}
