// Package relay drives four relays on GPIO output lines and keeps the
// published switch state in step with the lines.
//
// All state is owned by a Controller. Inbound commands and poll ticks arrive
// on different goroutines and are serialized by the Controller's lock.
package relay

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sweeney/relay-controller/internal/bus"
	"github.com/sweeney/relay-controller/internal/config"
	"github.com/sweeney/relay-controller/internal/gpio"
	"github.com/sweeney/relay-controller/internal/logic"
)

const (
	DefaultPollInterval = time.Second
	DefaultConsumer     = "relay-controller"
)

// ConnState is the lifecycle state of the Controller.
type ConnState int

const (
	Disconnected ConnState = iota
	Connecting
	Connected
)

func (s ConnState) String() string {
	switch s {
	case Disconnected:
		return "DISCONNECTED"
	case Connecting:
		return "CONNECTING"
	case Connected:
		return "CONNECTED"
	}
	return "UNKNOWN"
}

// Store persists settings.
type Store interface {
	Save(s config.Settings) error
}

// Options configure a Controller. Opener and Publisher are required.
type Options struct {
	Opener       gpio.Opener
	Chip         string // default gpio.DefaultChip
	Consumer     string // default DefaultConsumer
	Publisher    bus.Publisher
	Store        Store
	Scheduler    Scheduler     // default RealScheduler
	PollInterval time.Duration // default DefaultPollInterval
	Settings     config.Settings
	Now          func() time.Time
}

type relayState struct {
	on     bool // logical state: last commanded or observed
	shown  bool // value last published
	status bus.Status
}

// Controller is one relay board.
type Controller struct {
	mu sync.Mutex

	chip  string
	pub   bus.Publisher
	store Store
	sched Scheduler
	poll  time.Duration
	now   func() time.Time
	log   zerolog.Logger

	opener   gpio.Opener
	registry *Registry

	state     ConnState
	pins      logic.Pins
	polarity  logic.Polarity
	idleLevel int
	labels    [logic.NumRelays]string
	names     [logic.NumRelays]string // switch labels, fixed at startup
	relays    [logic.NumRelays]relayState

	timer      Timer
	generation uint64
}

// New creates a disconnected Controller from the loaded settings.
func New(opts Options) *Controller {
	if opts.Chip == "" {
		opts.Chip = gpio.DefaultChip
	}
	if opts.Consumer == "" {
		opts.Consumer = DefaultConsumer
	}
	if opts.Scheduler == nil {
		opts.Scheduler = RealScheduler{}
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	c := &Controller{
		chip:     opts.Chip,
		pub:      opts.Publisher,
		store:    opts.Store,
		sched:    opts.Scheduler,
		poll:     opts.PollInterval,
		now:      opts.Now,
		log:      log.With().Str("component", "relay").Logger(),
		opener:   opts.Opener,
		registry: NewRegistry(opts.Opener, opts.Chip, opts.Consumer),
		pins:     opts.Settings.Pins,
		polarity: opts.Settings.Polarity,
		labels:   opts.Settings.Labels,
		names:    opts.Settings.Labels,
	}
	c.idleLevel = logic.IdleLevel(c.polarity)
	c.resetRelays()
	return c
}

// DefineProperties publishes the connection and settings properties and
// clears switch properties left behind by an earlier run. Called once at
// startup, before the first Connect.
func (c *Controller) DefineProperties() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.deleteRelays()
	c.publishConnection(bus.StatusIdle, "")
	c.publishPins(bus.StatusIdle, "")
	c.publishPolarity(bus.StatusIdle, "")
	c.publishLabels(bus.StatusIdle, "")
	c.publish(bus.Update{Name: bus.PropConfig, Status: bus.StatusIdle})
}

// Connect opens the chip and claims the four lines at the OFF level. If any
// line is busy or cannot be claimed the Controller stays disconnected with
// nothing held.
func (c *Controller) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == Connected {
		return nil
	}

	c.state = Connecting
	c.publishConnection(bus.StatusBusy, "")

	// Every connect starts from OFF under the current polarity.
	c.idleLevel = logic.IdleLevel(c.polarity)
	if err := c.registry.Claim(c.pins, c.idleLevel); err != nil {
		c.state = Disconnected
		c.log.Error().Err(err).Ints("pins", c.pins[:]).Msg("Connect failed")
		c.publishConnection(bus.StatusAlert, err.Error())
		return err
	}

	c.resetRelays()
	c.publishPins(bus.StatusBusy, "")
	c.publishPolarity(bus.StatusBusy, "")
	c.publishLabels(bus.StatusBusy, "")
	for i := range c.relays {
		c.publishRelay(i, "")
	}

	c.state = Connected
	c.arm()
	c.publishConnection(bus.StatusOK, "")

	c.log.Info().
		Str("chip", c.chip).
		Ints("pins", c.pins[:]).
		Str("active_state", string(c.polarity)).
		Dur("poll", c.poll).
		Msg("Relays connected")
	return nil
}

// Disconnect releases the lines and the chip and unlocks the settings. It is
// safe to call in any state.
func (c *Controller) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.disarm()
	var err error
	if c.registry.Claimed() {
		err = c.registry.Release()
	}

	wasConnected := c.state == Connected
	c.state = Disconnected
	c.resetRelays()

	if wasConnected {
		c.deleteRelays()
		c.publishPins(bus.StatusIdle, "")
		c.publishPolarity(bus.StatusIdle, "")
		c.publishLabels(bus.StatusIdle, "")
	}

	if err != nil {
		c.log.Error().Err(err).Msg("Releasing lines failed")
		c.publishConnection(bus.StatusAlert, err.Error())
		return err
	}
	c.publishConnection(bus.StatusIdle, "")
	if wasConnected {
		c.log.Info().Msg("Relays disconnected")
	}
	return nil
}

// Close disconnects; used on shutdown.
func (c *Controller) Close() error {
	return c.Disconnect()
}

// SetRelay switches relay index (1-based). Every call writes the line, even
// when the relay is already in the requested state. A failed write leaves the
// logical state as it was and flags the switch ALERT.
func (c *Controller) SetRelay(index int, on bool) error {
	i, err := relayIndex(index)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Connected {
		return ErrNotConnected
	}

	level := logic.ToPhysical(on, c.polarity)
	if err := c.registry.Write(i, level); err != nil {
		c.relays[i].status = bus.StatusAlert
		c.log.Error().Err(err).Int("relay", index).Str("want", string(logic.StateOf(on))).Msg("Setting relay failed")
		c.publishRelay(i, err.Error())
		return err
	}

	c.relays[i] = relayState{on: on, shown: on, status: statusFor(on)}
	c.log.Info().Int("relay", index).Str("state", string(logic.StateOf(on))).Int("level", level).Msg("Relay set")
	c.publishRelay(i, "")
	return nil
}

// Tick reads back every line and republishes relays whose line no longer
// matches the displayed state. A line that cannot be read is skipped.
func (c *Controller) Tick() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Connected {
		return
	}
	c.tick()
}

func (c *Controller) tick() {
	var readings [logic.NumRelays]logic.Reading
	var shown [logic.NumRelays]bool
	for i := range readings {
		shown[i] = c.relays[i].shown
		level, err := c.registry.Read(i)
		if err != nil {
			c.log.Warn().Err(err).Int("relay", i+1).Msg("Read failed, skipping line this tick")
			continue
		}
		readings[i] = logic.Reading{Level: level, OK: true}
	}

	for _, d := range logic.Reconcile(shown, readings, c.polarity) {
		c.relays[d.Index] = relayState{on: d.On, shown: d.On, status: statusFor(d.On)}
		c.log.Info().
			Int("relay", d.Index+1).
			Str("state", string(logic.StateOf(d.On))).
			Msg("Relay changed outside controller")
		c.publishRelay(d.Index, "")
	}
}

// arm schedules the next tick. Callers hold c.mu.
func (c *Controller) arm() {
	gen := c.generation
	c.timer = c.sched.AfterFunc(c.poll, func() { c.timerHit(gen) })
}

// disarm cancels the pending tick. A callback already waiting on the lock
// sees the new generation and does nothing. Callers hold c.mu.
func (c *Controller) disarm() {
	c.generation++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Controller) timerHit(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Connected || gen != c.generation {
		return
	}
	c.tick()
	c.arm()
}

// Validate checks pins against the chip without changing anything. It
// refuses while connected: the controller's own lines would read as busy.
func (c *Controller) Validate(pins logic.Pins) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Disconnected {
		return ErrAlreadyConnected
	}
	return ValidatePins(c.opener, c.chip, pins)
}

// SetPins validates and applies a new pin assignment.
func (c *Controller) SetPins(pins logic.Pins) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Disconnected {
		c.log.Warn().Msg("Cannot set pins while connected")
		return ErrAlreadyConnected
	}
	if err := ValidatePins(c.opener, c.chip, pins); err != nil {
		if IsValidation(err) {
			c.log.Warn().Err(err).Ints("proposed", pins[:]).Msg("Pin assignment rejected")
		} else {
			c.log.Error().Err(err).Ints("proposed", pins[:]).Msg("Pin check failed")
		}
		c.publishPins(bus.StatusAlert, err.Error())
		return err
	}

	c.pins = pins
	c.log.Info().Ints("pins", c.pins[:]).Msg("Pins set")
	c.publishPins(bus.StatusOK, "")
	return nil
}

// SetPolarity changes the active state of all relays.
func (c *Controller) SetPolarity(p logic.Polarity) error {
	if _, err := logic.ParsePolarity(string(p)); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Disconnected {
		c.log.Warn().Msg("Cannot set active state while connected")
		return ErrAlreadyConnected
	}

	c.polarity = p
	c.idleLevel = logic.IdleLevel(p)
	c.log.Info().Str("active_state", string(p)).Int("idle_level", c.idleLevel).Msg("Active state set")
	c.publishPolarity(bus.StatusOK, "")
	return nil
}

// SetLabel renames relay index (1-based). The new name is used for the
// switch after the configuration is saved and the process restarted.
func (c *Controller) SetLabel(index int, text string) error {
	i, err := relayIndex(index)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Disconnected {
		c.log.Warn().Msg("Cannot set labels while connected")
		return ErrAlreadyConnected
	}

	c.labels[i] = text
	c.log.Info().Int("relay", index).Str("label", text).Msg("Label set")
	c.publishLabels(bus.StatusOK, "Save configuration and restart to apply")
	return nil
}

// SaveConfig persists pins, active state and labels.
func (c *Controller) SaveConfig() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.store == nil {
		return ErrNoStore
	}

	settings := config.Settings{
		Pins:     c.pins,
		Polarity: c.polarity,
		Labels:   c.labels,
	}
	if err := c.store.Save(settings); err != nil {
		c.log.Error().Err(err).Msg("Saving configuration failed")
		c.publish(bus.Update{Name: bus.PropConfig, Status: bus.StatusAlert, Message: err.Error()})
		return err
	}

	c.log.Info().Msg("Configuration saved")
	c.publish(bus.Update{
		Name:   bus.PropConfig,
		Status: bus.StatusOK,
		Value:  c.now().UTC().Format(time.RFC3339),
	})
	return nil
}

// RelayView is the state of one relay in a Snapshot.
type RelayView struct {
	Index  int
	Name   string
	Pin    int
	On     bool
	Shown  bool
	Status bus.Status
}

// Snapshot is a copy of the Controller state.
type Snapshot struct {
	State     ConnState
	Pins      logic.Pins
	Polarity  logic.Polarity
	IdleLevel int
	Labels    [logic.NumRelays]string
	Relays    [logic.NumRelays]RelayView
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{
		State:     c.state,
		Pins:      c.pins,
		Polarity:  c.polarity,
		IdleLevel: c.idleLevel,
		Labels:    c.labels,
	}
	for i, r := range c.relays {
		s.Relays[i] = RelayView{
			Index:  i + 1,
			Name:   c.names[i],
			Pin:    c.pins[i],
			On:     r.on,
			Shown:  r.shown,
			Status: r.status,
		}
	}
	return s
}

func (c *Controller) deleteRelays() {
	for i := range c.relays {
		if err := c.pub.Delete(bus.RelayProperty(i + 1)); err != nil {
			c.log.Warn().Err(err).Int("relay", i+1).Msg("Deleting switch property failed")
		}
	}
}

func (c *Controller) resetRelays() {
	for i := range c.relays {
		c.relays[i] = relayState{status: bus.StatusIdle}
	}
}

func statusFor(on bool) bus.Status {
	if on {
		return bus.StatusOK
	}
	return bus.StatusIdle
}

func (c *Controller) publish(u bus.Update) {
	u.Timestamp = c.now()
	if err := c.pub.Publish(u); err != nil {
		// Bus failures never fail the operation that caused them.
		c.log.Warn().Err(err).Str("property", u.Name).Msg("Publish failed")
	}
}

func (c *Controller) publishConnection(status bus.Status, msg string) {
	c.publish(bus.Update{Name: bus.PropConnection, Status: status, Value: c.state.String(), Message: msg})
}

func (c *Controller) publishPins(status bus.Status, msg string) {
	c.publish(bus.Update{Name: bus.PropPins, Label: "GPIO pins", Status: status, Value: c.pins, Message: msg})
}

func (c *Controller) publishPolarity(status bus.Status, msg string) {
	c.publish(bus.Update{Name: bus.PropPolarity, Label: "Active state", Status: status, Value: string(c.polarity), Message: msg})
}

func (c *Controller) publishLabels(status bus.Status, msg string) {
	c.publish(bus.Update{Name: bus.PropLabels, Label: "Relay labels", Status: status, Value: c.labels, Message: msg})
}

func (c *Controller) publishRelay(i int, msg string) {
	r := c.relays[i]
	c.publish(bus.Update{
		Name:    bus.RelayProperty(i + 1),
		Label:   c.names[i],
		Status:  r.status,
		Value:   string(logic.StateOf(r.shown)),
		Message: msg,
	})
}
