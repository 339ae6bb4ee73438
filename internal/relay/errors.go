package relay

import (
	"errors"
	"fmt"

	"github.com/sweeney/relay-controller/internal/logic"
)

var (
	ErrNotConnected     = errors.New("relays not connected")
	ErrAlreadyConnected = errors.New("busy: settings are locked while connected")
	ErrPinBusy          = errors.New("pin already in use")
	ErrInvalidRelay     = errors.New("invalid relay index")
	ErrUnknownProperty  = errors.New("unknown property")
	ErrNoStore          = errors.New("no configuration store")
)

// IOError is a failed GPIO operation.
type IOError struct {
	Op    string
	Relay int // 1-based, 0 when the operation is chip-wide
	Pin   int
	Err   error
}

func (e *IOError) Error() string {
	if e.Relay == 0 {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s relay %d (pin %d): %v", e.Op, e.Relay, e.Pin, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err rejects a pin assignment.
func IsValidation(err error) bool {
	return errors.Is(err, logic.ErrPinRange) ||
		errors.Is(err, logic.ErrPinDuplicate) ||
		errors.Is(err, ErrPinBusy)
}

func relayIndex(index int) (int, error) {
	if index < 1 || index > logic.NumRelays {
		return 0, fmt.Errorf("%w: %d", ErrInvalidRelay, index)
	}
	return index - 1, nil
}
