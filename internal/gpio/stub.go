//go:build !linux

package gpio

import "errors"

// ChipOpener is not available on non-Linux platforms.
type ChipOpener struct{}

// NewChipOpener returns an Opener whose Open always fails.
func NewChipOpener() ChipOpener {
	return ChipOpener{}
}

// Open is not implemented on non-Linux platforms.
func (ChipOpener) Open(name string) (Chip, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}
