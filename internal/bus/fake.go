package bus

import "sync"

// FakePublisher records published updates for test assertions.
type FakePublisher struct {
	mu sync.Mutex

	// Updates contains every update that was published, in order.
	Updates []Update

	// Deleted contains every property name that was deleted, in order.
	Deleted []string

	// PublishError, if set, will be returned by Publish.
	PublishError error

	// Closed tracks if Close was called.
	Closed bool

	// Connected controls the return value of IsConnected.
	Connected bool
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

// Publish records the update.
func (f *FakePublisher) Publish(u Update) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.PublishError != nil {
		return f.PublishError
	}
	f.Updates = append(f.Updates, u)
	return nil
}

// Delete records the deletion.
func (f *FakePublisher) Delete(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Deleted = append(f.Deleted, name)
	return nil
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Closed = true
	return nil
}

// IsConnected reports whether the fake publisher is "connected".
func (f *FakePublisher) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Connected
}

// For returns the updates published for one property.
func (f *FakePublisher) For(name string) []Update {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []Update
	for _, u := range f.Updates {
		if u.Name == name {
			out = append(out, u)
		}
	}
	return out
}

// Last returns the most recent update for a property.
func (f *FakePublisher) Last(name string) (Update, bool) {
	updates := f.For(name)
	if len(updates) == 0 {
		return Update{}, false
	}
	return updates[len(updates)-1], true
}

// Reset clears recorded updates.
func (f *FakePublisher) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Updates = nil
	f.Deleted = nil
	f.Closed = false
	f.PublishError = nil
}
