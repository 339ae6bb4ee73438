// Package status provides a thread-safe mirror of the property bus for the
// relay-controller daemon. It is read by the HTTP status page.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/relay-controller/internal/bus"
)

// NetworkInfo contains network state as reported by pi-helper.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	PollMs     int64
	Chip       string
	ConfigPath string
	Broker     string
	Prefix     string
	HTTPAddr   string
}

// Snapshot is a point-in-time view of daemon state.
// It is a copy and safe to use after the lock is released.
type Snapshot struct {
	Properties    []bus.Update // in the order they were first published
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Property returns the last published state of a property.
func (s Snapshot) Property(name string) (bus.Update, bool) {
	for _, p := range s.Properties {
		if p.Name == name {
			return p, true
		}
	}
	return bus.Update{}, false
}

// Tracker records the last published state of every property. It implements
// bus.Publisher so it can sit next to the real transport in a bus.Tee.
type Tracker struct {
	mu    sync.RWMutex
	props map[string]bus.Update
	order []string
	snap  Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		props: make(map[string]bus.Update),
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Publish records the state of a property.
func (t *Tracker) Publish(u bus.Update) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.props[u.Name]; !ok {
		t.order = append(t.order, u.Name)
	}
	t.props[u.Name] = u
	return nil
}

// Delete forgets a property.
func (t *Tracker) Delete(name string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.props[name]; !ok {
		return nil
	}
	delete(t.props, name)
	for i, n := range t.order {
		if n == name {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return nil
}

// Close is a no-op.
func (t *Tracker) Close() error {
	return nil
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.Properties = make([]bus.Update, 0, len(t.order))
	for _, name := range t.order {
		s.Properties = append(s.Properties, t.props[name])
	}
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
