package websocket

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/isdelr/sitepulse/internal/telemetry"
)

type testSource struct {
	*telemetry.Aggregator
}

func (testSource) View() any { return map[string]string{"kind": "test"} }

func newSource(name string) testSource {
	return testSource{telemetry.New(name, func(_ telemetry.Category, p any) telemetry.Descriptor {
		s, _ := p.(string)
		return telemetry.Descriptor{Fields: []string{s}, Label: s}
	})}
}

type recordingSink struct {
	mu       sync.Mutex
	messages [][]byte
}

func (s *recordingSink) Publish(_ string, message []byte) {
	s.mu.Lock()
	s.messages = append(s.messages, message)
	s.mu.Unlock()
}

func (s *recordingSink) all() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.messages...)
}

func decodeSnapshot(t *testing.T, raw []byte) telemetry.Snapshot {
	t.Helper()
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		t.Fatalf("decode message: %v", err)
	}
	if msg.Action != ActionSnapshot {
		t.Fatalf("expected snapshot action, got %s", msg.Action)
	}
	var payload SnapshotPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	return payload.Snapshot
}

func TestPublisherCoalescesBursts(t *testing.T) {
	sink := &recordingSink{}
	p := NewPublisher(sink, 20*time.Millisecond)
	defer p.Close()
	src := newSource("logs")
	p.Watch(src)

	for i := 0; i < 5; i++ {
		src.Record(telemetry.CategoryLog, "a", telemetry.Context{})
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(sink.all()) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(60 * time.Millisecond)

	msgs := sink.all()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 coalesced push, got %d", len(msgs))
	}
	if snap := decodeSnapshot(t, msgs[0]); snap.Total != 5 || snap.Monitor != "logs" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestPublisherDiscardsStalePush(t *testing.T) {
	sink := &recordingSink{}
	p := NewPublisher(sink, time.Hour)
	defer p.Close()
	src := newSource("errors")
	p.Watch(src)

	src.Record(telemetry.CategoryError, "a", telemetry.Context{})
	src.Record(telemetry.CategoryError, "b", telemetry.Context{})

	p.flush("errors", 1)
	if n := len(sink.all()); n != 0 {
		t.Fatalf("expected stale push to be discarded, got %d messages", n)
	}
	p.flush("errors", 2)
	if n := len(sink.all()); n != 1 {
		t.Fatalf("expected current push to be published, got %d messages", n)
	}
}

func TestPublisherCurrent(t *testing.T) {
	p := NewPublisher(&recordingSink{}, time.Hour)
	defer p.Close()
	src := newSource("seo")
	p.Watch(src)
	src.Record(telemetry.CategorySEO, "a", telemetry.Context{})

	raw, ok := p.Current("seo")
	if !ok {
		t.Fatal("expected snapshot for watched monitor")
	}
	if snap := decodeSnapshot(t, raw); snap.Total != 1 {
		t.Fatalf("expected total 1, got %d", snap.Total)
	}
	if _, ok := p.Current("nope"); ok {
		t.Fatal("expected no snapshot for unknown monitor")
	}
}

func receive(t *testing.T, c *Client) []byte {
	t.Helper()
	select {
	case msg := <-c.Send:
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func TestHubPublishRoutesByTopic(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	logs := NewClient(hub, nil, "logs")
	global := NewClient(hub, nil, GlobalTopic)
	other := NewClient(hub, nil, "seo")
	for _, c := range []*Client{logs, global, other} {
		hub.Register <- c
	}
	if n := hub.ClientCount(); n != 3 {
		t.Fatalf("expected 3 clients, got %d", n)
	}

	hub.Publish("logs", []byte("hello"))
	if got := string(receive(t, logs)); got != "hello" {
		t.Fatalf("unexpected message %q", got)
	}
	if got := string(receive(t, global)); got != "hello" {
		t.Fatalf("unexpected global message %q", got)
	}
	hub.ClientCount() // wait for the publish to be processed
	select {
	case msg := <-other.Send:
		t.Fatalf("unsubscribed client received %q", msg)
	default:
	}

	hub.Subscribe(other, "logs")
	hub.Unsubscribe(logs, "logs")
	hub.Publish("logs", []byte("again"))
	if got := string(receive(t, other)); got != "again" {
		t.Fatalf("unexpected message %q", got)
	}
	hub.ClientCount()
	select {
	case msg := <-logs.Send:
		t.Fatalf("unsubscribed client received %q", msg)
	default:
	}

	hub.Unregister <- logs
	if _, ok := <-logs.Send; ok {
		t.Fatal("expected send channel to be closed on unregister")
	}
}

func TestErrorMessage(t *testing.T) {
	var msg Message
	if err := json.Unmarshal(NewErrorMessage("bad"), &msg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.Action != ActionError || string(msg.Payload) != `{"error":"bad"}` {
		t.Fatalf("unexpected message %+v", msg)
	}
}
