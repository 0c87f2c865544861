package analytics

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/Proximity-Search-Platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Proximity-Search-Platform/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Proximity-Search-Platform/pkg/metrics"
)

type fakePublisher struct {
	mu      sync.Mutex
	batches [][]kafka.Event
	err     error
}

func (p *fakePublisher) PublishBatch(ctx context.Context, events []kafka.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.batches = append(p.batches, append([]kafka.Event(nil), events...))
	return nil
}

func (p *fakePublisher) published() (batches, events int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, b := range p.batches {
		events += len(b)
	}
	return len(p.batches), events
}

func eventCount(t *testing.T, reg *prometheus.Registry, status string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != "analytics_events_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "status" && l.GetValue() == status {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func cancelled() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}

func TestCollectorFlushesFullBatches(t *testing.T) {
	pub := &fakePublisher{}
	c := NewCollector(pub, config.AnalyticsConfig{BufferSize: 16, BatchSize: 2, FlushInterval: time.Hour}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	for i := 0; i < 4; i++ {
		c.Track(QueryEvent{Query: "a /1 b", Direction: "bidirectional"})
	}
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, n := pub.published(); n == 4 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("events were not published before the deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if batches, _ := pub.published(); batches != 2 {
		t.Errorf("published %d batches, want 2", batches)
	}
}

func TestCollectorDrainsOnShutdown(t *testing.T) {
	pub := &fakePublisher{}
	c := NewCollector(pub, config.AnalyticsConfig{BatchSize: 100, FlushInterval: time.Hour}, nil)
	c.Track(QueryEvent{Query: "a /1 b", Direction: "unidirectional"})
	c.Track(QueryEvent{Query: "c /2 d", Direction: "bidirectional"})
	c.Track(ReloadEvent{Generation: 2})

	if err := c.Run(cancelled()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(pub.batches) != 1 || len(pub.batches[0]) != 3 {
		t.Fatalf("batches = %v, want one batch of 3", pub.batches)
	}
	first := pub.batches[0][0]
	if first.Key != "query:unidirectional" {
		t.Errorf("Key = %q, want query:unidirectional", first.Key)
	}
	if qe, ok := first.Value.(QueryEvent); !ok || qe.Type != EventQuery {
		t.Errorf("Value = %#v, want a stamped QueryEvent", first.Value)
	}
	if re, ok := pub.batches[0][2].Value.(ReloadEvent); !ok || re.Type != EventReload {
		t.Errorf("Value = %#v, want a stamped ReloadEvent", pub.batches[0][2].Value)
	}
}

func TestCollectorDropsWhenBufferFull(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(&fakePublisher{}, config.AnalyticsConfig{BufferSize: 1}, metrics.NewWithRegistry(reg))
	c.Track(QueryEvent{Query: "a /1 b"})
	c.Track(QueryEvent{Query: "a /1 b"})
	if got := eventCount(t, reg, "dropped"); got != 1 {
		t.Errorf("dropped = %v, want 1", got)
	}
}

func TestCollectorCountsFailedBatches(t *testing.T) {
	reg := prometheus.NewRegistry()
	pub := &fakePublisher{err: errors.New("broker unavailable")}
	c := NewCollector(pub, config.AnalyticsConfig{BatchSize: 10}, metrics.NewWithRegistry(reg))
	c.Track(QueryEvent{Query: "a /1 b"})
	c.Track(QueryEvent{Query: "a /2 b"})

	if err := c.Run(cancelled()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := eventCount(t, reg, "failed"); got != 2 {
		t.Errorf("failed = %v, want 2", got)
	}
	if got := eventCount(t, reg, "published"); got != 0 {
		t.Errorf("published = %v, want 0", got)
	}
}

func TestTrackersFanOut(t *testing.T) {
	a, b := NewAggregator(), NewAggregator()
	Trackers{a, b}.Track(QueryEvent{Query: "x /1 y", Direction: "bidirectional", TotalHits: 1})
	if a.Stats().TotalQueries != 1 || b.Stats().TotalQueries != 1 {
		t.Error("event not delivered to every tracker")
	}
}
