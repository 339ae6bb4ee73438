package bus

// bufferedMsg stores a serialized MQTT message for replay after reconnection.
type bufferedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// stateBuffer is a bounded FIFO of messages held while the broker is
// unreachable. Property topics carry retained state, so a newer message for a
// topic replaces the buffered one and moves to the back of the queue.
// Not safe for concurrent use; caller must synchronize.
type stateBuffer struct {
	msgs     []bufferedMsg
	capacity int
	dropped  int // messages discarded for space since last drain
}

func newStateBuffer(capacity int) *stateBuffer {
	return &stateBuffer{
		msgs:     make([]bufferedMsg, 0, capacity),
		capacity: capacity,
	}
}

func (b *stateBuffer) push(msg bufferedMsg) {
	for i := range b.msgs {
		if b.msgs[i].topic == msg.topic {
			b.msgs = append(b.msgs[:i], b.msgs[i+1:]...)
			break
		}
	}
	if len(b.msgs) == b.capacity {
		if b.dropped == 0 {
			blog().Warn().Int("capacity", b.capacity).Msg("Offline buffer full, dropping oldest")
		}
		b.msgs = append(b.msgs[:0], b.msgs[1:]...)
		b.dropped++
	}
	b.msgs = append(b.msgs, msg)
}

func (b *stateBuffer) drainAll() []bufferedMsg {
	if len(b.msgs) == 0 {
		return nil
	}
	out := make([]bufferedMsg, len(b.msgs))
	copy(out, b.msgs)
	b.msgs = b.msgs[:0]
	b.dropped = 0
	return out
}

func (b *stateBuffer) len() int {
	return len(b.msgs)
}
