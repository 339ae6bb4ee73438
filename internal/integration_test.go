package internal

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/relay-controller/internal/bus"
	"github.com/sweeney/relay-controller/internal/config"
	"github.com/sweeney/relay-controller/internal/gpio"
	"github.com/sweeney/relay-controller/internal/logic"
	"github.com/sweeney/relay-controller/internal/relay"
	"github.com/sweeney/relay-controller/internal/status"
)

func command(name, payload string) bus.Command {
	return bus.Command{Name: name, Payload: []byte(payload)}
}

// manualScheduler never fires; the test calls Tick directly.
type manualScheduler struct{}

type noTimer struct{}

func (noTimer) Stop() bool { return true }

func (manualScheduler) AfterFunc(time.Duration, func()) relay.Timer { return noTimer{} }

// TestIntegrationFullFlow drives the controller through bus commands only,
// from pin setup to saved configuration, and checks the chip, the published
// payloads and the status mirror along the way.
func TestIntegrationFullFlow(t *testing.T) {
	chip := gpio.NewFakeChip(28)
	publisher := bus.NewFakePublisher()
	tracker := status.NewTracker(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC), status.Config{Prefix: "relays"})
	store := config.NewFileStore(filepath.Join(t.TempDir(), "config.yaml"))

	settings, err := store.Load()
	require.NoError(t, err)

	ctrl := relay.New(relay.Options{
		Opener:    chip,
		Publisher: bus.Tee(publisher, tracker),
		Store:     store,
		Scheduler: manualScheduler{},
		Settings:  settings,
	})
	ctrl.DefineProperties()

	steps := []bus.Command{
		command("pins", `[5, 6, 13, 19]`),
		command("polarity", `"HIGH"`),
		command("labels", `{"index": 1, "text": "Pump"}`),
		command("connection", `"CONNECT"`),
		command("relay_1", `"ON"`),
		command("relay_3", `"ON"`),
		command("relay_3", `"OFF"`),
	}
	for i, c := range steps {
		require.NoError(t, ctrl.Dispatch(c), "step %d (%s %s)", i, c.Name, c.Payload)
	}

	// Active high: ON drives the line high.
	wantLevels := map[int]int{5: 1, 6: 0, 13: 0, 19: 0}
	for pin, want := range wantLevels {
		assert.Equal(t, want, chip.Level(pin), "pin %d", pin)
	}

	// Locked while connected.
	assert.Error(t, ctrl.Dispatch(command("pins", `[16, 17, 20, 21]`)))

	// Someone flips relay 2 by hand.
	chip.SetLevel(6, 1)
	ctrl.Tick()

	u, ok := publisher.Last("relay_2")
	require.True(t, ok)
	assert.Equal(t, "ON", u.Value)
	assert.Equal(t, bus.StatusOK, u.Status)

	// The wire payload carries the label loaded at startup.
	payload, err := bus.FormatPayload(u)
	require.NoError(t, err)
	var decoded bus.Payload
	require.NoError(t, json.Unmarshal(payload, &decoded))
	assert.Equal(t, "relay_2", decoded.Property.Name)
	assert.Equal(t, "Relay 2", decoded.Property.Label)

	p, ok := tracker.Snapshot().Property("relay_1")
	require.True(t, ok)
	assert.Equal(t, "ON", p.Value)

	require.NoError(t, ctrl.Dispatch(command("connection", `"DISCONNECT"`)))
	assert.Zero(t, chip.Requested())
	assert.Zero(t, chip.OpenHandles())
	_, ok = tracker.Snapshot().Property("relay_1")
	assert.False(t, ok, "relay_1 still mirrored after disconnect")

	require.NoError(t, ctrl.Dispatch(command("config", `"SAVE"`)))

	reloaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, logic.Pins{5, 6, 13, 19}, reloaded.Pins)
	assert.Equal(t, logic.ActiveHigh, reloaded.Polarity)
	assert.Equal(t, "Pump", reloaded.Labels[0])
}

// TestIntegrationBusyPinRecovery checks that a failed connect leaves the
// device connectable once the conflicting consumer goes away.
func TestIntegrationBusyPinRecovery(t *testing.T) {
	chip := gpio.NewFakeChip(28)
	chip.Used[17] = true
	publisher := bus.NewFakePublisher()

	ctrl := relay.New(relay.Options{
		Opener:    chip,
		Publisher: publisher,
		Scheduler: manualScheduler{},
		Settings:  config.Defaults(),
	})

	require.Error(t, ctrl.Dispatch(command("connection", `"CONNECT"`)), "pin 17 is busy")
	assert.Zero(t, chip.OpenHandles(), "chip left open after failed connect")
	u, _ := publisher.Last("connection")
	assert.Equal(t, bus.StatusAlert, u.Status)

	delete(chip.Used, 17)
	require.NoError(t, ctrl.Dispatch(command("connection", `"CONNECT"`)))
	require.NoError(t, ctrl.Dispatch(command("relay_2", `"ON"`)))
	assert.Equal(t, logic.LevelLow, chip.Level(17), "active low ON")
	ctrl.Close()
}
