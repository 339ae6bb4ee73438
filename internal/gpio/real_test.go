//go:build linux

package gpio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warthog618/go-gpiocdev"
	"github.com/warthog618/go-gpiosim"
)

// newSim creates a gpio-sim chip, skipping the test when the kernel module or
// the required privileges are unavailable.
func newSim(t *testing.T) *gpiosim.Simpleton {
	t.Helper()
	s, err := gpiosim.NewSimpleton(28)
	if err != nil {
		t.Skipf("gpio-sim unavailable: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRealChipOutput(t *testing.T) {
	s := newSim(t)

	c, err := NewChipOpener().Open(s.ChipName())
	require.NoError(t, err)
	defer c.Close()

	l, err := c.RequestOutput(16, "relay-test", 1)
	require.NoError(t, err)
	defer l.Close()

	level, err := s.Level(16)
	require.NoError(t, err)
	assert.Equal(t, 1, level, "initial level")

	require.NoError(t, l.SetValue(0))
	level, err = s.Level(16)
	require.NoError(t, err)
	assert.Equal(t, 0, level, "level after write")

	used, err := c.IsUsed(16)
	require.NoError(t, err)
	assert.True(t, used)

	used, err = c.IsUsed(17)
	require.NoError(t, err)
	assert.False(t, used)
}

func TestRealChipBusy(t *testing.T) {
	s := newSim(t)

	other, err := gpiocdev.RequestLine(s.ChipName(), 20, gpiocdev.AsOutput(0), gpiocdev.WithConsumer("other"))
	require.NoError(t, err)
	defer other.Close()

	c, err := NewChipOpener().Open(s.ChipName())
	require.NoError(t, err)
	defer c.Close()

	_, err = c.RequestOutput(20, "relay-test", 0)
	assert.ErrorIs(t, err, ErrBusy)
}
