package logic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckPinsValid(t *testing.T) {
	valid := []Pins{
		DefaultPins,
		{1, 2, 3, 4},
		{27, 26, 25, 24},
		{5, 6, 13, 19},
	}
	for _, p := range valid {
		assert.NoError(t, CheckPins(p), "%v", p)
	}
}

func TestCheckPinsRange(t *testing.T) {
	invalid := []Pins{
		{0, 17, 20, 21},
		{16, 28, 20, 21},
		{16, 17, -1, 21},
		{16, 17, 20, 100},
	}
	for _, p := range invalid {
		assert.ErrorIs(t, CheckPins(p), ErrPinRange, "%v", p)
	}
}

func TestCheckPinsDuplicate(t *testing.T) {
	invalid := []Pins{
		{16, 16, 20, 21},
		{16, 17, 20, 16},
		{16, 17, 21, 21},
		{5, 5, 5, 5},
	}
	for _, p := range invalid {
		assert.ErrorIs(t, CheckPins(p), ErrPinDuplicate, "%v", p)
	}
}

// Exhaustive over a small window: every distinct 4-tuple passes, every tuple
// with a repeat fails.
func TestCheckPinsWindow(t *testing.T) {
	for a := 1; a <= 5; a++ {
		for b := 1; b <= 5; b++ {
			for c := 1; c <= 5; c++ {
				for d := 1; d <= 5; d++ {
					p := Pins{a, b, c, d}
					distinct := a != b && a != c && a != d && b != c && b != d && c != d
					if distinct {
						assert.NoError(t, CheckPins(p), "%v", p)
					} else {
						assert.ErrorIs(t, CheckPins(p), ErrPinDuplicate, "%v", p)
					}
				}
			}
		}
	}
}
