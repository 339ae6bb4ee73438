package gpio

import (
	"errors"
	"fmt"
	"sync"
)

// FakeChip is a test double simulating the lines of one chip.
// It doubles as its own Opener; every Open returns a fresh handle so tests can
// check that no handle is left open.
type FakeChip struct {
	mu sync.Mutex

	// NumLines bounds valid offsets.
	NumLines int

	// Used marks lines requested by another consumer.
	Used map[int]bool

	// OpenError, if set, is returned by Open.
	OpenError error

	// InfoError, RequestError, ReadError and WriteError inject per-line failures.
	InfoError    map[int]error
	RequestError map[int]error
	ReadError    map[int]error
	WriteError   map[int]error

	// Writes records every SetValue in order.
	Writes []Write

	levels    map[int]int
	requested map[int]string
	opens     int
	handles   int
}

// Write is a recorded SetValue call.
type Write struct {
	Offset int
	Level  int
}

// NewFakeChip creates a FakeChip with numLines lines, all low and free.
func NewFakeChip(numLines int) *FakeChip {
	return &FakeChip{
		NumLines:     numLines,
		Used:         make(map[int]bool),
		InfoError:    make(map[int]error),
		RequestError: make(map[int]error),
		ReadError:    make(map[int]error),
		WriteError:   make(map[int]error),
		levels:       make(map[int]int),
		requested:    make(map[int]string),
	}
}

// Open returns a new handle to the chip.
func (f *FakeChip) Open(name string) (Chip, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.OpenError != nil {
		return nil, f.OpenError
	}
	f.opens++
	f.handles++
	return &fakeHandle{chip: f}, nil
}

// Opens returns the number of successful Open calls.
func (f *FakeChip) Opens() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opens
}

// OpenHandles returns the number of chip handles not yet closed.
func (f *FakeChip) OpenHandles() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handles
}

// Level returns the simulated level of a line.
func (f *FakeChip) Level(offset int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.levels[offset]
}

// SetLevel changes a line level behind the controller's back.
func (f *FakeChip) SetLevel(offset, level int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.levels[offset] = level
}

// Consumer returns the consumer holding a line, or "" if it is free.
func (f *FakeChip) Consumer(offset int) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requested[offset]
}

// Requested returns the number of lines currently requested through the fake.
func (f *FakeChip) Requested() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requested)
}

// ClearWrites forgets recorded writes.
func (f *FakeChip) ClearWrites() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Writes = nil
}

func (f *FakeChip) checkOffset(offset int) error {
	if offset < 0 || offset >= f.NumLines {
		return fmt.Errorf("offset %d out of range", offset)
	}
	return nil
}

type fakeHandle struct {
	chip   *FakeChip
	closed bool
}

func (h *fakeHandle) IsUsed(offset int) (bool, error) {
	f := h.chip
	f.mu.Lock()
	defer f.mu.Unlock()

	if h.closed {
		return false, errors.New("chip closed")
	}
	if err := f.checkOffset(offset); err != nil {
		return false, err
	}
	if err := f.InfoError[offset]; err != nil {
		return false, err
	}
	_, mine := f.requested[offset]
	return f.Used[offset] || mine, nil
}

func (h *fakeHandle) RequestOutput(offset int, consumer string, level int) (Line, error) {
	f := h.chip
	f.mu.Lock()
	defer f.mu.Unlock()

	if h.closed {
		return nil, errors.New("chip closed")
	}
	if err := f.checkOffset(offset); err != nil {
		return nil, err
	}
	if err := f.RequestError[offset]; err != nil {
		return nil, err
	}
	if _, mine := f.requested[offset]; f.Used[offset] || mine {
		return nil, fmt.Errorf("request line %d: %w", offset, ErrBusy)
	}
	f.requested[offset] = consumer
	f.levels[offset] = level
	return &fakeLine{chip: f, offset: offset}, nil
}

func (h *fakeHandle) Close() error {
	f := h.chip
	f.mu.Lock()
	defer f.mu.Unlock()

	if h.closed {
		return errors.New("chip already closed")
	}
	h.closed = true
	f.handles--
	return nil
}

type fakeLine struct {
	chip     *FakeChip
	offset   int
	released bool
}

func (l *fakeLine) Offset() int {
	return l.offset
}

func (l *fakeLine) Value() (int, error) {
	f := l.chip
	f.mu.Lock()
	defer f.mu.Unlock()

	if l.released {
		return 0, errors.New("line released")
	}
	if err := f.ReadError[l.offset]; err != nil {
		return 0, err
	}
	return f.levels[l.offset], nil
}

func (l *fakeLine) SetValue(level int) error {
	f := l.chip
	f.mu.Lock()
	defer f.mu.Unlock()

	if l.released {
		return errors.New("line released")
	}
	if err := f.WriteError[l.offset]; err != nil {
		return err
	}
	f.levels[l.offset] = level
	f.Writes = append(f.Writes, Write{Offset: l.offset, Level: level})
	return nil
}

func (l *fakeLine) Close() error {
	f := l.chip
	f.mu.Lock()
	defer f.mu.Unlock()

	if l.released {
		return nil
	}
	l.released = true
	delete(f.requested, l.offset)
	return nil
}
