package mqtt

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"

	"github.com/sweeney/relay-rig/internal/rig"
)

// DefaultBufferSize is the number of messages held while disconnected.
const DefaultBufferSize = 100

// Config configures a RealPublisher.
type Config struct {
	Broker     string
	ClientID   string
	Username   string
	Password   string
	BufferSize int
}

// RealPublisher publishes to an actual MQTT broker. Messages published while
// the connection is down are buffered and sent, oldest first, on reconnect.
type RealPublisher struct {
	client paho.Client
	topic  string
	log    logrus.FieldLogger
	now    func() time.Time

	mu        sync.Mutex
	buffer    *ringBuffer
	connected bool
	everUp    bool
}

// NewRealPublisher creates a publisher for the given broker. If the broker is
// unreachable the publisher keeps retrying in the background.
func NewRealPublisher(cfg Config, log logrus.FieldLogger) (*RealPublisher, error) {
	if cfg.ClientID == "" {
		cfg.ClientID = "relay-rig"
	}
	if cfg.BufferSize == 0 {
		cfg.BufferSize = DefaultBufferSize
	}
	log = log.WithField("component", "mqtt")

	p := &RealPublisher{
		topic:  Topic,
		log:    log,
		now:    time.Now,
		buffer: newRingBuffer(cfg.BufferSize, log),
	}

	will, err := FormatSystemPayload(SystemEvent{
		Timestamp: time.Now(),
		Event:     "SHUTDOWN",
		Reason:    "MQTT_DISCONNECT",
	})
	if err != nil {
		return nil, fmt.Errorf("format will: %w", err)
	}

	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(TopicSystem, string(will), 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(p.onConnectionLost)

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		log.WithField("broker", cfg.Broker).Warn("broker not reachable yet, buffering")
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return p, nil
}

func (p *RealPublisher) onConnect(paho.Client) {
	p.mu.Lock()
	reconnect := p.everUp
	p.connected = true
	p.everUp = true
	p.mu.Unlock()

	p.log.Info("connected to broker")
	// Handlers run on the client's goroutine and must not wait on tokens.
	go p.flush(reconnect)
}

func (p *RealPublisher) onConnectionLost(_ paho.Client, err error) {
	p.mu.Lock()
	p.connected = false
	p.mu.Unlock()
	p.log.WithError(err).Warn("connection to broker lost")
}

func (p *RealPublisher) flush(reconnect bool) {
	if reconnect {
		payload, err := FormatSystemPayload(SystemEvent{Timestamp: p.now(), Event: "RECONNECTED"})
		if err == nil {
			if err := p.send(bufferedMsg{topic: TopicSystem, payload: payload, qos: 1}); err != nil {
				p.log.WithError(err).Warn("publish reconnected failed")
			}
		}
	}

	p.mu.Lock()
	pending := p.buffer.drainAll()
	p.mu.Unlock()

	for i, msg := range pending {
		if err := p.send(msg); err != nil {
			p.log.WithError(err).Warn("replay failed, re-buffering")
			p.mu.Lock()
			for _, m := range pending[i:] {
				p.buffer.push(m)
			}
			p.mu.Unlock()
			return
		}
	}
	if len(pending) > 0 {
		p.log.WithField("count", len(pending)).Info("replayed buffered messages")
	}
}

func (p *RealPublisher) send(msg bufferedMsg) error {
	token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// publish sends msg, or buffers it while disconnected.
func (p *RealPublisher) publish(msg bufferedMsg) error {
	p.mu.Lock()
	if !p.connected {
		p.buffer.push(msg)
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()
	return p.send(msg)
}

// Publish sends a rig event to the MQTT broker.
func (p *RealPublisher) Publish(event rig.Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}

	// QoS 1, not retained
	return p.publish(bufferedMsg{topic: p.topic, payload: payload, qos: 1})
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	return p.publish(bufferedMsg{topic: TopicSystem, payload: payload, qos: 1, retained: event.Retained})
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

// Buffered returns the number of messages waiting for a connection.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buffer.len()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
