// Package events carries pipeline progress and warning notifications out
// of the engine (spec §5, §7): phase-complete counts and non-fatal
// degenerate-geometry warnings, with an optional MQTT bridge generalizing
// the teacher's vacuum-position publisher into a reconstruction progress
// publisher.
package events

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Kind distinguishes the two event categories the engine ever emits.
type Kind int

const (
	// Warning reports a non-fatal condition per spec §7 (no matches, no
	// clusters, missing optional backend). The pipeline never stops for
	// these.
	Warning Kind = iota
	// Progress reports completion of a pipeline phase with a count, for
	// callers that want to observe reconstruction as it runs.
	Progress
)

// Event is one notification emitted by the engine.
type Event struct {
	Kind      Kind
	Phase     string
	Message   string
	Count     int
	Timestamp int64
}

// Sink receives engine events. Emit must not block the caller for long;
// implementations that need to do I/O should buffer internally.
type Sink interface {
	Emit(Event)
}

// ChannelSink is a buffered in-process event sink; Events is closed by
// Close. The engine does not use it unless a caller installs it (the
// engine's default sink is LogSink).
type ChannelSink struct {
	Events chan Event
}

// NewChannelSink creates a ChannelSink with the given buffer size.
func NewChannelSink(buffer int) *ChannelSink {
	return &ChannelSink{Events: make(chan Event, buffer)}
}

// Emit sends the event, dropping it if the channel is full rather than
// blocking the pipeline (spec §5: "no operation suspends").
func (s *ChannelSink) Emit(e Event) {
	select {
	case s.Events <- e:
	default:
		log.Printf("events: channel full, dropping %v event for phase %s", e.Kind, e.Phase)
	}
}

// Close closes the underlying channel. Safe to call once all emitters have
// finished.
func (s *ChannelSink) Close() {
	close(s.Events)
}

// LogSink emits every event through the standard logger. Useful as a
// zero-configuration default for CLI runs.
type LogSink struct{}

// Emit logs the event.
func (LogSink) Emit(e Event) {
	switch e.Kind {
	case Warning:
		log.Printf("warning [%s]: %s", e.Phase, e.Message)
	default:
		log.Printf("progress [%s]: %s (count=%d)", e.Phase, e.Message, e.Count)
	}
}

// MultiSink fans an event out to every sink in the list.
type MultiSink []Sink

// Emit forwards e to every sink.
func (m MultiSink) Emit(e Event) {
	for _, s := range m {
		s.Emit(e)
	}
}

// MQTTBridge publishes progress and warning events to an MQTT broker,
// mirroring the teacher's Publisher: nil client disables publishing
// entirely rather than erroring (the same nil-is-disabled convention as
// mesh.InitMQTT).
type MQTTBridge struct {
	client mqtt.Client
	prefix string
	qos    byte
	mu     sync.Mutex
	last   Event
}

// NewMQTTBridge wraps client for event publishing under topic prefix. If
// client is nil, Emit becomes a no-op.
func NewMQTTBridge(client mqtt.Client, prefix string) *MQTTBridge {
	if prefix == "" {
		prefix = "line3d"
	}
	return &MQTTBridge{client: client, prefix: prefix, qos: 0}
}

// Emit publishes e as JSON to "<prefix>/progress" or "<prefix>/warning".
func (b *MQTTBridge) Emit(e Event) {
	if b == nil || b.client == nil || !b.client.IsConnected() {
		return
	}
	topic := fmt.Sprintf("%s/progress", b.prefix)
	if e.Kind == Warning {
		topic = fmt.Sprintf("%s/warning", b.prefix)
	}

	payload, err := json.Marshal(e)
	if err != nil {
		log.Printf("events: marshaling event: %v", err)
		return
	}

	token := b.client.Publish(topic, b.qos, false, payload)
	if token.WaitTimeout(2*time.Second) && token.Error() != nil {
		log.Printf("events: publishing to %s: %v", topic, token.Error())
		return
	}

	b.mu.Lock()
	b.last = e
	b.mu.Unlock()
}

// LastEvent returns the most recently published event, for tests and
// diagnostics.
func (b *MQTTBridge) LastEvent() Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.last
}

// Connect dials an MQTT broker from the BROKER_MQTT_URL-style convention
// used by the teacher's InitMQTT. An empty brokerURL falls back to the
// MQTT_BROKER environment variable; if that is empty too, publishing is
// disabled and Connect returns a nil client with no error.
func Connect(brokerURL, clientID string) (mqtt.Client, error) {
	if brokerURL == "" {
		brokerURL = os.Getenv("MQTT_BROKER")
	}
	if brokerURL == "" {
		log.Println("events: MQTT disabled, MQTT_BROKER not set")
		return nil, nil
	}
	if clientID == "" {
		clientID = "line3d"
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(brokerURL)
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if token.WaitTimeout(10*time.Second) && token.Error() != nil {
		return nil, fmt.Errorf("connecting to mqtt broker %s: %w", brokerURL, token.Error())
	}
	return client, nil
}
