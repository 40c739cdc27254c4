package events

import "testing"

func TestChannelSinkBuffersAndDrops(t *testing.T) {
	s := NewChannelSink(1)
	s.Emit(Event{Phase: "a"})
	// Buffer is full now; this Emit must not block, it should drop.
	s.Emit(Event{Phase: "b"})

	got := <-s.Events
	if got.Phase != "a" {
		t.Errorf("first buffered event = %q, want %q", got.Phase, "a")
	}
	select {
	case e := <-s.Events:
		t.Errorf("expected no second event (should have been dropped), got %v", e)
	default:
	}
}

func TestChannelSinkClose(t *testing.T) {
	s := NewChannelSink(1)
	s.Close()
	_, ok := <-s.Events
	if ok {
		t.Errorf("reading from a closed channel should report ok=false")
	}
}

func TestLogSinkEmitDoesNotPanic(t *testing.T) {
	LogSink{}.Emit(Event{Kind: Warning, Phase: "match", Message: "no candidates"})
	LogSink{}.Emit(Event{Kind: Progress, Phase: "match", Count: 2})
}

type recordingSink struct {
	events []Event
}

func (r *recordingSink) Emit(e Event) {
	r.events = append(r.events, e)
}

func TestMultiSinkFansOut(t *testing.T) {
	a := &recordingSink{}
	b := &recordingSink{}
	m := MultiSink{a, b}

	m.Emit(Event{Phase: "match", Count: 3})

	if len(a.events) != 1 || len(b.events) != 1 {
		t.Fatalf("MultiSink did not forward to all sinks: a=%d b=%d", len(a.events), len(b.events))
	}
	if a.events[0].Phase != "match" || b.events[0].Count != 3 {
		t.Errorf("MultiSink forwarded events = %v, %v", a.events, b.events)
	}
}

func TestMQTTBridgeNilClientIsNoOp(t *testing.T) {
	b := NewMQTTBridge(nil, "line3d")
	b.Emit(Event{Kind: Progress, Phase: "match", Count: 1})
	if got := b.LastEvent(); got.Phase != "" {
		t.Errorf("LastEvent() after emitting with a nil client = %+v, want zero value", got)
	}
}

func TestMQTTBridgeDefaultsPrefix(t *testing.T) {
	b := NewMQTTBridge(nil, "")
	if b.prefix != "line3d" {
		t.Errorf("prefix = %q, want %q", b.prefix, "line3d")
	}
}

func TestConnectWithEmptyBrokerURLDisablesWithoutError(t *testing.T) {
	t.Setenv("MQTT_BROKER", "")
	client, err := Connect("", "test-client")
	if err != nil {
		t.Fatalf("Connect() with no broker configured returned an error: %v", err)
	}
	if client != nil {
		t.Errorf("Connect() with no broker configured returned a non-nil client")
	}
}
