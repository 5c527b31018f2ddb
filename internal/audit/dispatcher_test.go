package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestDispatcherDeliversToSink(t *testing.T) {
	sink := NewChannelSink(4)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 4}, sink)
	defer d.Close()

	d.Emit(context.Background(), Event{EventType: "login_success", MemberID: "7", Success: true})

	select {
	case ev := <-sink.Events():
		if ev.EventType != "login_success" || ev.MemberID != "7" {
			t.Fatalf("unexpected event: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestDisabledDispatcherIsNil(t *testing.T) {
	d := NewDispatcher(Config{Enabled: false}, NoOpSink{})
	if d != nil {
		t.Fatal("expected nil dispatcher when disabled")
	}
	d.Emit(context.Background(), Event{EventType: "x"})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("nil dispatcher should report zero drops")
	}
}

func TestCloseDrainsBufferedEvents(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 8}, sink)

	for i := 0; i < 5; i++ {
		d.Emit(context.Background(), Event{EventType: "logout"})
	}
	d.Close()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 5 {
		t.Fatalf("expected 5 json lines, got %d", len(lines))
	}
	var ev Event
	if err := json.Unmarshal([]byte(lines[0]), &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ev.EventType != "logout" {
		t.Fatalf("unexpected event type %q", ev.EventType)
	}
}

func TestSlogSinkWritesAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	NewSlogSink(logger).Emit(context.Background(), Event{EventType: "login_failure", Username: "alice", Error: "invalid_credentials"})

	out := buf.String()
	for _, want := range []string{"event_type=login_failure", "username=alice", "error=invalid_credentials"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in %q", want, out)
		}
	}
}

// gateSink blocks delivery until release is closed.
type gateSink struct {
	release chan struct{}
	got     chan Event
}

func newGateSink() *gateSink {
	return &gateSink{release: make(chan struct{}), got: make(chan Event, 16)}
}

func (s *gateSink) Emit(_ context.Context, ev Event) {
	<-s.release
	s.got <- ev
}

func TestDropIfFullKeepsSecurityEvents(t *testing.T) {
	sink := newGateSink()
	d := NewDispatcher(Config{
		Enabled:    true,
		BufferSize: 1,
		DropIfFull: true,
		Keep:       func(ev Event) bool { return ev.EventType == "validate.hash_mismatch" },
	}, sink)

	// first event is taken by the worker and parks in the sink
	d.Emit(context.Background(), Event{EventType: "login.before"})
	time.Sleep(20 * time.Millisecond)
	d.Emit(context.Background(), Event{EventType: "login.before"})
	d.Emit(context.Background(), Event{EventType: "login.before"})
	if d.Dropped() != 1 {
		t.Fatalf("expected one dropped event, got %d", d.Dropped())
	}

	kept := make(chan struct{})
	go func() {
		d.Emit(context.Background(), Event{EventType: "validate.hash_mismatch"})
		close(kept)
	}()
	select {
	case <-kept:
		t.Fatal("kept event must wait for room instead of being dropped")
	case <-time.After(20 * time.Millisecond):
	}

	close(sink.release)
	<-kept
	d.Close()

	if d.Dropped() != 1 {
		t.Fatalf("kept event was dropped, drops=%d", d.Dropped())
	}
	if n := len(sink.got); n != 3 {
		t.Fatalf("expected 3 delivered events, got %d", n)
	}
}

func TestCancelledEmitCountsAsDropped(t *testing.T) {
	sink := newGateSink()
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1}, sink)

	d.Emit(context.Background(), Event{EventType: "logout"})
	time.Sleep(20 * time.Millisecond)
	d.Emit(context.Background(), Event{EventType: "logout"})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	d.Emit(ctx, Event{EventType: "logout"})
	if d.Dropped() != 1 {
		t.Fatalf("expected cancelled emit to be counted, got %d", d.Dropped())
	}

	close(sink.release)
	d.Close()
}

type panicSink struct{ n int }

func (s *panicSink) Emit(context.Context, Event) {
	s.n++
	if s.n == 1 {
		panic("sink failure")
	}
}

func TestPanickingSinkDoesNotStopDelivery(t *testing.T) {
	sink := &panicSink{}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 4}, sink)
	d.Emit(context.Background(), Event{EventType: "logout"})
	d.Emit(context.Background(), Event{EventType: "logout"})
	d.Close()

	if sink.n != 2 {
		t.Fatalf("expected both events delivered, got %d", sink.n)
	}
	if d.SinkFailures() != 1 {
		t.Fatalf("expected one sink failure, got %d", d.SinkFailures())
	}
}

func TestEmitStampsMissingTimestamp(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	sink := NewChannelSink(2)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 2, Now: func() time.Time { return at }}, sink)
	d.Emit(context.Background(), Event{EventType: "logout"})
	d.Close()

	ev := <-sink.Events()
	if !ev.Timestamp.Equal(at) {
		t.Fatalf("expected timestamp %v, got %v", at, ev.Timestamp)
	}
}

func TestEmitAfterCloseIsIgnored(t *testing.T) {
	sink := NewChannelSink(2)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 2}, sink)
	d.Close()
	d.Close()
	d.Emit(context.Background(), Event{EventType: "logout"})
	if len(sink.Events()) != 0 {
		t.Fatal("closed dispatcher must not deliver")
	}
}
