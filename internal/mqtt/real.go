package mqtt

import (
	"fmt"
	"log"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/jordan77-lang/water-allocation/internal/acquire"
	"github.com/jordan77-lang/water-allocation/internal/engine"
)

// queueCapacity bounds how many messages are held across a broker outage.
const queueCapacity = 256

// RealPublisher publishes to an actual MQTT broker. Messages produced while
// the broker is unreachable are queued in a ring buffer and replayed on
// reconnect, oldest first.
type RealPublisher struct {
	client paho.Client

	mu    sync.Mutex
	queue *ringBuffer
}

// NewRealPublisher creates a publisher connected to the given broker.
func NewRealPublisher(broker string) (*RealPublisher, error) {
	p := &RealPublisher{queue: newRingBuffer(queueCapacity)}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID("water-allocation").
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOnConnectHandler(func(paho.Client) { p.replay() })

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return p, nil
}

// PublishSample sends a multi-channel sample. Samples are loss-tolerant
// and are NOT queued during outages: the next tick supersedes them.
func (p *RealPublisher) PublishSample(sample acquire.Sample) error {
	payload, err := FormatSamplePayload(sample)
	if err != nil {
		return fmt.Errorf("format sample payload: %w", err)
	}
	if !p.client.IsConnected() {
		return nil // superseded by the next tick
	}
	return p.send(TopicSamples, 0, false, payload)
}

// PublishEvent sends a story event, queueing it if the broker is away.
func (p *RealPublisher) PublishEvent(event engine.Event) error {
	payload, err := FormatEventPayload(event)
	if err != nil {
		return fmt.Errorf("format event payload: %w", err)
	}
	if !p.client.IsConnected() {
		p.enqueue(queuedMsg{topic: TopicEvents, payload: payload, qos: 1})
		return nil
	}
	return p.send(TopicEvents, 1, false, payload)
}

// PublishSystem sends a system lifecycle event, queueing it if the broker
// is away.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	if !p.client.IsConnected() {
		p.enqueue(queuedMsg{topic: TopicSystem, payload: payload, qos: 1, retained: event.Retained})
		return nil
	}
	return p.send(TopicSystem, 1, event.Retained, payload)
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnected()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}

func (p *RealPublisher) send(topic string, qos byte, retained bool, payload []byte) error {
	token := p.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish timeout on %s", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

func (p *RealPublisher) enqueue(msg queuedMsg) {
	p.mu.Lock()
	dropped := p.queue.push(msg)
	n := p.queue.len()
	p.mu.Unlock()
	if dropped {
		log.Printf("mqtt: queue full (%d messages), dropped oldest", n)
	}
}

// replay flushes the queue after a reconnect.
func (p *RealPublisher) replay() {
	p.mu.Lock()
	msgs := p.queue.drainAll()
	p.mu.Unlock()
	if len(msgs) == 0 {
		return
	}

	log.Printf("mqtt: reconnected, replaying %d queued messages", len(msgs))
	for _, m := range msgs {
		if err := p.send(m.topic, m.qos, m.retained, m.payload); err != nil {
			log.Printf("mqtt: replay: %v", err)
		}
	}
}
