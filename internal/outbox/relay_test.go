package outbox

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

type memStore struct {
	mu     sync.Mutex
	events []Event
	sent   map[int64]bool
}

func newMemStore(events ...Event) *memStore {
	for i := range events {
		events[i].Seq = int64(i + 1)
	}
	return &memStore{events: events, sent: map[int64]bool{}}
}

func (s *memStore) Pending(ctx context.Context, limit int) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Event
	for _, e := range s.events {
		if !s.sent[e.Seq] && len(out) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *memStore) MarkSent(ctx context.Context, seq int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent[seq] = true
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	got    []string
	failOn string
}

func (p *recordingPublisher) Publish(ctx context.Context, e Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if e.Key == p.failOn {
		return errors.New("broker down")
	}
	p.got = append(p.got, e.Key)
	return nil
}

func (p *recordingPublisher) keys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.got...)
}

func mustEvent(t *testing.T, key string) Event {
	t.Helper()
	e, err := NewEvent("order.created", key, map[string]string{"orderId": key})
	if err != nil {
		t.Fatal(err)
	}
	return e
}

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestFlush_PublishesInOrder(t *testing.T) {
	store := newMemStore(mustEvent(t, "1"), mustEvent(t, "2"), mustEvent(t, "3"))
	pub := &recordingPublisher{}
	r := NewRelay(store, pub, time.Second, quiet)

	n, err := r.Flush(context.Background())
	if err != nil || n != 3 {
		t.Fatalf("expected 3 sent, got %d %v", n, err)
	}
	if got := pub.keys(); len(got) != 3 || got[0] != "1" || got[2] != "3" {
		t.Fatalf("unexpected publish order %v", got)
	}

	if n, _ := r.Flush(context.Background()); n != 0 {
		t.Fatalf("expected nothing left, flushed %d", n)
	}
}

func TestFlush_StopsAtFirstFailure(t *testing.T) {
	store := newMemStore(mustEvent(t, "1"), mustEvent(t, "2"), mustEvent(t, "3"))
	pub := &recordingPublisher{failOn: "2"}
	r := NewRelay(store, pub, time.Second, quiet)

	n, err := r.Flush(context.Background())
	if err != nil || n != 1 {
		t.Fatalf("expected 1 sent, got %d %v", n, err)
	}

	pending, _ := store.Pending(context.Background(), 10)
	if len(pending) != 2 || pending[0].Key != "2" {
		t.Fatalf("expected events 2 and 3 to stay pending, got %v", pending)
	}

	pub.failOn = ""
	if n, _ := r.Flush(context.Background()); n != 2 {
		t.Fatalf("expected retry to send 2, got %d", n)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	store := newMemStore(mustEvent(t, "1"))
	pub := &recordingPublisher{}
	r := NewRelay(store, pub, 5*time.Millisecond, quiet)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for len(pub.keys()) == 0 {
		select {
		case <-deadline:
			t.Fatal("relay never published")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("expected clean stop, got %v", err)
	}
}
