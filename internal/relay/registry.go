package relay

import (
	"errors"
	"fmt"

	"github.com/sweeney/relay-controller/internal/gpio"
	"github.com/sweeney/relay-controller/internal/logic"
)

// Registry owns the chip handle and the four relay lines while connected.
// Not safe for concurrent use; the Controller serializes access.
type Registry struct {
	opener   gpio.Opener
	chipName string
	consumer string

	chip    gpio.Chip
	lines [logic.NumRelays]gpio.Line
	pins  logic.Pins
}

// NewRegistry creates a Registry for the named chip. Lines are requested with
// consumer tags derived from consumer.
func NewRegistry(opener gpio.Opener, chipName, consumer string) *Registry {
	return &Registry{
		opener:   opener,
		chipName: chipName,
		consumer: consumer,
	}
}

// Claimed reports whether the chip is open and the lines are held.
func (r *Registry) Claimed() bool {
	return r.chip != nil
}

// Claim opens the chip, checks that no pin is held elsewhere and requests all
// pins as outputs at level. On any failure nothing stays open.
func (r *Registry) Claim(pins logic.Pins, level int) error {
	if r.chip != nil {
		return errors.New("lines already claimed")
	}

	chip, err := r.opener.Open(r.chipName)
	if err != nil {
		return &IOError{Op: "open chip", Err: err}
	}
	// Pins may have been taken by another process since they were validated.
	if err := checkFree(chip, pins); err != nil {
		chip.Close()
		return err
	}

	r.chip = chip
	r.pins = pins
	for i, pin := range pins {
		line, err := chip.RequestOutput(pin, r.consumerTag(i), level)
		if err != nil {
			r.Release()
			if errors.Is(err, gpio.ErrBusy) {
				return fmt.Errorf("%w: relay %d pin %d", ErrPinBusy, i+1, pin)
			}
			return &IOError{Op: "claim", Relay: i + 1, Pin: pin, Err: err}
		}
		r.lines[i] = line
	}
	return nil
}

// Release closes every held line and then the chip. It is safe to call when
// nothing, or only part of the set, is held.
func (r *Registry) Release() error {
	var errs []error
	for i, l := range r.lines {
		if l == nil {
			continue
		}
		if err := l.Close(); err != nil {
			errs = append(errs, &IOError{Op: "release", Relay: i + 1, Pin: r.pins[i], Err: err})
		}
		r.lines[i] = nil
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, &IOError{Op: "close chip", Err: err})
		}
		r.chip = nil
	}
	return errors.Join(errs...)
}

// Write drives line i (0-based) to level.
func (r *Registry) Write(i, level int) error {
	l := r.lines[i]
	if l == nil {
		return ErrNotConnected
	}
	if err := l.SetValue(level); err != nil {
		return &IOError{Op: "write", Relay: i + 1, Pin: r.pins[i], Err: err}
	}
	return nil
}

// Read returns the current level of line i (0-based).
func (r *Registry) Read(i int) (int, error) {
	l := r.lines[i]
	if l == nil {
		return 0, ErrNotConnected
	}
	level, err := l.Value()
	if err != nil {
		return 0, &IOError{Op: "read", Relay: i + 1, Pin: r.pins[i], Err: err}
	}
	return level, nil
}

func (r *Registry) consumerTag(i int) string {
	return fmt.Sprintf("%s-%d", r.consumer, i+1)
}
