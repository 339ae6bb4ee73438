//go:build linux

package gpio

import (
	"errors"
	"fmt"

	"github.com/warthog618/go-gpiocdev"
	"golang.org/x/sys/unix"
)

// ChipOpener opens chips through the Linux GPIO character device.
type ChipOpener struct{}

// NewChipOpener returns an Opener for real hardware.
func NewChipOpener() ChipOpener {
	return ChipOpener{}
}

// Open opens the named chip, e.g. "gpiochip0" or "/dev/gpiochip0".
func (ChipOpener) Open(name string) (Chip, error) {
	c, err := gpiocdev.NewChip(name)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", name, err)
	}
	return &RealChip{chip: c}, nil
}

// RealChip wraps a gpiocdev chip.
type RealChip struct {
	chip *gpiocdev.Chip
}

// IsUsed reports whether the line is requested by any consumer, including
// the kernel.
func (c *RealChip) IsUsed(offset int) (bool, error) {
	info, err := c.chip.LineInfo(offset)
	if err != nil {
		return false, fmt.Errorf("line info %d: %w", offset, err)
	}
	return info.Used, nil
}

// RequestOutput requests the line as an output at the given initial level.
func (c *RealChip) RequestOutput(offset int, consumer string, level int) (Line, error) {
	l, err := c.chip.RequestLine(offset, gpiocdev.AsOutput(level), gpiocdev.WithConsumer(consumer))
	if err != nil {
		if errors.Is(err, unix.EBUSY) {
			return nil, fmt.Errorf("request line %d: %w", offset, ErrBusy)
		}
		return nil, fmt.Errorf("request line %d: %w", offset, err)
	}
	return l, nil
}

// Close closes the chip. Lines requested from it stay requested until they
// are closed themselves.
func (c *RealChip) Close() error {
	if err := c.chip.Close(); err != nil {
		return fmt.Errorf("close chip: %w", err)
	}
	return nil
}
