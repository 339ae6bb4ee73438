// Package gpio provides GPIO output line access with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import "errors"

// DefaultChip is the chip holding the Raspberry Pi header lines.
const DefaultChip = "gpiochip0"

// ErrBusy is returned when a line is already requested by another consumer.
var ErrBusy = errors.New("line busy")

// Opener opens a GPIO chip by name or path.
type Opener interface {
	Open(chip string) (Chip, error)
}

// Chip is an open GPIO chip.
type Chip interface {
	// IsUsed reports whether the line is requested by any consumer.
	IsUsed(offset int) (bool, error)

	// RequestOutput claims a line as an output driven at level.
	RequestOutput(offset int, consumer string, level int) (Line, error)

	// Close releases the chip handle. Requested lines must be closed first.
	Close() error
}

// Line is a requested output line.
type Line interface {
	Offset() int
	Value() (int, error)
	SetValue(level int) error
	Close() error
}
