package bus

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

const (
	bufferCapacity = 64
	publishTimeout = 5 * time.Second
)

// MQTTBus is the property bus over an MQTT broker.
type MQTTBus struct {
	client paho.Client
	prefix string

	mu      sync.Mutex
	handler Handler
	buf     *stateBuffer
	ready   bool // buffer replayed since the last connect; direct sends allowed
}

// NewMQTTBus creates a bus connected to the given broker. The connection is
// retried in the background, so a broker that is down at startup is not fatal;
// publications are buffered until it comes up.
func NewMQTTBus(broker, clientID, prefix string) *MQTTBus {
	// Handlers below close over b, so the client is attached afterwards.
	b := newMQTTBusWithClient(nil, prefix)

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		// Commands publish from inside the message handler.
		SetOrderMatters(false).
		SetWill(AvailabilityTopic(prefix), "offline", 1, true).
		SetOnConnectHandler(b.onConnect).
		SetConnectionLostHandler(b.onConnectionLost)

	b.client = paho.NewClient(opts)
	b.client.Connect()
	return b
}

func newMQTTBusWithClient(client paho.Client, prefix string) *MQTTBus {
	return &MQTTBus{
		client: client,
		prefix: prefix,
		buf:    newStateBuffer(bufferCapacity),
	}
}

// Subscribe delivers commands to h. Subscriptions are restored on reconnect.
func (b *MQTTBus) Subscribe(h Handler) error {
	b.mu.Lock()
	b.handler = h
	b.mu.Unlock()

	if !b.client.IsConnectionOpen() {
		return nil
	}
	return b.subscribe()
}

func (b *MQTTBus) subscribe() error {
	token := b.client.Subscribe(SetFilter(b.prefix), 1, b.onMessage)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("subscribe timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	return nil
}

// onConnect runs on its own goroutine after the connection is already open.
// Sends stay buffered until the backlog is replayed, so an older buffered
// state can never overwrite a newer one on the broker.
func (b *MQTTBus) onConnect(c paho.Client) {
	blog().Info().Str("prefix", b.prefix).Msg("MQTT connected")

	b.mu.Lock()
	h := b.handler
	b.mu.Unlock()

	if h != nil {
		if err := b.subscribe(); err != nil {
			blog().Error().Err(err).Msg("Restoring command subscription failed")
		}
	}

	c.Publish(AvailabilityTopic(b.prefix), 1, true, "online")

	replayed := 0
	for {
		b.mu.Lock()
		pending := b.buf.drainAll()
		if len(pending) == 0 {
			b.ready = true
			b.mu.Unlock()
			break
		}
		b.mu.Unlock()

		for _, m := range pending {
			c.Publish(m.topic, m.qos, m.retained, m.payload)
		}
		replayed += len(pending)
	}
	if replayed > 0 {
		blog().Info().Int("count", replayed).Msg("Replayed buffered property updates")
	}
}

func (b *MQTTBus) onConnectionLost(_ paho.Client, err error) {
	b.mu.Lock()
	b.ready = false
	b.mu.Unlock()
	blog().Warn().Err(err).Msg("MQTT connection lost")
}

func (b *MQTTBus) onMessage(_ paho.Client, m paho.Message) {
	name, ok := ParseSetTopic(b.prefix, m.Topic())
	if !ok {
		blog().Debug().Str("topic", m.Topic()).Msg("Ignoring message on unexpected topic")
		return
	}

	b.mu.Lock()
	h := b.handler
	b.mu.Unlock()
	if h == nil {
		return
	}

	if err := h(Command{Name: name, Payload: m.Payload()}); err != nil {
		blog().Warn().Err(err).Str("property", name).Msg("Command rejected")
	}
}

// Publish sends the retained state of a property.
func (b *MQTTBus) Publish(u Update) error {
	payload, err := FormatPayload(u)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	return b.send(StateTopic(b.prefix, u.Name), payload)
}

// Delete clears the retained state of a property.
func (b *MQTTBus) Delete(name string) error {
	return b.send(StateTopic(b.prefix, name), []byte{})
}

func (b *MQTTBus) send(topic string, payload []byte) error {
	b.mu.Lock()
	if !b.ready || !b.client.IsConnectionOpen() {
		b.buf.push(bufferedMsg{topic: topic, payload: payload, qos: 1, retained: true})
		b.mu.Unlock()
		return nil
	}
	b.mu.Unlock()

	// QoS 1 (at-least-once), retained so late subscribers see current state
	token := b.client.Publish(topic, 1, true, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// IsConnected reports whether the broker connection is up.
func (b *MQTTBus) IsConnected() bool {
	return b.client.IsConnectionOpen()
}

// Close announces offline and disconnects from the broker.
func (b *MQTTBus) Close() error {
	b.mu.Lock()
	b.ready = false
	b.mu.Unlock()

	if b.client.IsConnectionOpen() {
		token := b.client.Publish(AvailabilityTopic(b.prefix), 1, true, "offline")
		token.WaitTimeout(time.Second)
	}
	b.client.Disconnect(1000) // 1 second timeout
	return nil
}
