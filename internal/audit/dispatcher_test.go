package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type blockingSink struct {
	release chan struct{}
	mu      sync.Mutex
	events  []Event
}

func (s *blockingSink) Emit(_ context.Context, e Event) {
	<-s.release
	s.mu.Lock()
	s.events = append(s.events, e)
	s.mu.Unlock()
}

func TestDisabledDispatcherIsNil(t *testing.T) {
	d := NewDispatcher(Config{Enabled: false}, NoOpSink{})
	if d != nil {
		t.Fatal("expected nil dispatcher when disabled")
	}
	d.Emit(context.Background(), Event{EventType: "x"})
	d.Close()
	if d.Dropped() != 0 || d.Delivered() != 0 {
		t.Fatal("nil dispatcher must report zero counters")
	}
}

func TestDispatcherDeliversAndStampsTimestamp(t *testing.T) {
	sink := NewChannelSink(4)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 4}, sink)

	d.Emit(context.Background(), Event{EventType: "login_success", FlowID: "f-1"})
	d.Close()

	select {
	case e := <-sink.Events():
		if e.EventType != "login_success" || e.FlowID != "f-1" || e.Timestamp.IsZero() {
			t.Fatalf("unexpected event: %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
	if d.Delivered() != 1 {
		t.Fatalf("expected 1 delivered, got %d", d.Delivered())
	}
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), Event{EventType: "otp_sent"})
	}
	if d.Dropped() == 0 {
		t.Fatal("expected drops with a blocked sink")
	}

	close(sink.release)
	d.Close()
	d.Emit(context.Background(), Event{EventType: "after_close"})

	sink.mu.Lock()
	defer sink.mu.Unlock()
	for _, e := range sink.events {
		if e.EventType == "after_close" {
			t.Fatal("events after Close must be ignored")
		}
	}
}

func TestJSONWriterSinkWritesLines(t *testing.T) {
	var buf bytes.Buffer
	s := NewJSONWriterSink(&buf)
	s.Emit(context.Background(), Event{EventType: "sign_out", Success: true})
	s.Emit(context.Background(), Event{EventType: "login_failure", Error: "access denied"})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), buf.String())
	}
	var e Event
	if err := json.Unmarshal([]byte(lines[1]), &e); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if e.EventType != "login_failure" || e.Error != "access denied" {
		t.Fatalf("unexpected decoded event: %+v", e)
	}
}

func TestLogSinkLevels(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogSink(zerolog.New(&buf))

	sink.Emit(context.Background(), Event{EventType: "otp_verified", FlowID: "f-1", UserID: "u-1", Success: true})
	sink.Emit(context.Background(), Event{
		EventType: "login_failure",
		FlowID:    "f-2",
		Error:     "invalid_credentials",
		Metadata:  map[string]string{"email": "driver@fleet.io"},
	})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 log lines, got %d: %q", len(lines), buf.String())
	}

	var ok, failed map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &ok); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal([]byte(lines[1]), &failed); err != nil {
		t.Fatal(err)
	}
	if ok["level"] != "info" || ok["message"] != "otp_verified" || ok["user_id"] != "u-1" || ok["component"] != "audit" {
		t.Fatalf("unexpected success line: %v", ok)
	}
	if failed["level"] != "warn" || failed["error"] != "invalid_credentials" {
		t.Fatalf("unexpected failure line: %v", failed)
	}
	meta, _ := failed["metadata"].(map[string]any)
	if meta["email"] != "driver@fleet.io" {
		t.Fatalf("metadata not logged: %v", failed)
	}
}

func TestJSONWriterSinkNilWriter(t *testing.T) {
	NewJSONWriterSink(nil).Emit(context.Background(), Event{EventType: "sign_out"})
}
