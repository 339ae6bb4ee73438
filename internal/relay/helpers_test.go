package relay

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sweeney/relay-controller/internal/bus"
	"github.com/sweeney/relay-controller/internal/config"
	"github.com/sweeney/relay-controller/internal/gpio"
	"github.com/sweeney/relay-controller/internal/logic"
)

var testTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// fakeScheduler holds armed callbacks until the test fires them.
type fakeScheduler struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

type fakeTimer struct {
	d       time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	was := !t.stopped && !t.fired
	t.stopped = true
	return was
}

func (s *fakeScheduler) AfterFunc(d time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &fakeTimer{d: d, f: f}
	s.timers = append(s.timers, t)
	return t
}

// pending returns armed timers that have neither fired nor been stopped.
func (s *fakeScheduler) pending() []*fakeTimer {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*fakeTimer
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			out = append(out, t)
		}
	}
	return out
}

// fire runs the single pending callback.
func (s *fakeScheduler) fire(t *testing.T) {
	t.Helper()
	p := s.pending()
	require.Len(t, p, 1, "expected exactly one armed timer")
	p[0].fired = true
	p[0].f()
}

type fakeStore struct {
	saved []config.Settings
	err   error
}

func (s *fakeStore) Save(settings config.Settings) error {
	if s.err != nil {
		return s.err
	}
	s.saved = append(s.saved, settings)
	return nil
}

type rig struct {
	chip  *gpio.FakeChip
	pub   *bus.FakePublisher
	sched *fakeScheduler
	store *fakeStore
	ctrl  *Controller
}

func newRig(t *testing.T, polarity logic.Polarity) *rig {
	t.Helper()
	settings := config.Defaults()
	settings.Polarity = polarity

	r := &rig{
		chip:  gpio.NewFakeChip(28),
		pub:   bus.NewFakePublisher(),
		sched: &fakeScheduler{},
		store: &fakeStore{},
	}
	r.ctrl = New(Options{
		Opener:       r.chip,
		Chip:         "gpiochip0",
		Publisher:    r.pub,
		Store:        r.store,
		Scheduler:    r.sched,
		PollInterval: 250 * time.Millisecond,
		Settings:     settings,
		Now:          func() time.Time { return testTime },
	})
	return r
}

func (r *rig) connect(t *testing.T) {
	t.Helper()
	require.NoError(t, r.ctrl.Connect())
	r.pub.Reset()
	r.chip.ClearWrites()
}
