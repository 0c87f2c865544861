package analytics

import (
	"context"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Proximity-Search-Platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Proximity-Search-Platform/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Proximity-Search-Platform/pkg/metrics"
)

// Tracker accepts analytics events. Implementations must not block the
// caller for long, since queries track events inline.
type Tracker interface {
	Track(event Event)
}

// Trackers fans an event out to several trackers.
type Trackers []Tracker

func (ts Trackers) Track(event Event) {
	for _, t := range ts {
		t.Track(event)
	}
}

// Publisher writes a batch of events to the event log. *kafka.Producer
// satisfies it.
type Publisher interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

// Collector buffers events in a channel and publishes them in batches, when
// a batch fills up or the flush interval elapses. Track never blocks: when
// the buffer is full the event is dropped and counted.
type Collector struct {
	publisher     Publisher
	eventCh       chan Event
	batchSize     int
	flushInterval time.Duration
	metrics       *metrics.Metrics
	logger        *slog.Logger
}

func NewCollector(publisher Publisher, cfg config.AnalyticsConfig, m *metrics.Metrics) *Collector {
	bufferSize := cfg.BufferSize
	if bufferSize <= 0 {
		bufferSize = 10000
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	flushInterval := cfg.FlushInterval
	if flushInterval <= 0 {
		flushInterval = 2 * time.Second
	}
	return &Collector{
		publisher:     publisher,
		eventCh:       make(chan Event, bufferSize),
		batchSize:     batchSize,
		flushInterval: flushInterval,
		metrics:       m,
		logger:        slog.Default().With("component", "analytics-collector"),
	}
}

// Track enqueues event for publishing.
func (c *Collector) Track(event Event) {
	select {
	case c.eventCh <- event:
	default:
		c.count("dropped", 1)
		c.logger.Warn("analytics event dropped (buffer full)", "type", event.EventType())
	}
}

// Run publishes tracked events until ctx is cancelled, then drains whatever
// is still buffered with a short deadline of its own.
func (c *Collector) Run(ctx context.Context) error {
	c.logger.Info("analytics collector started",
		"buffer_size", cap(c.eventCh),
		"batch_size", c.batchSize,
		"flush_interval", c.flushInterval,
	)
	ticker := time.NewTicker(c.flushInterval)
	defer ticker.Stop()

	batch := make([]kafka.Event, 0, c.batchSize)
	for {
		select {
		case event := <-c.eventCh:
			batch = append(batch, kafka.Event{Key: event.key(), Value: event.stamped()})
			if len(batch) >= c.batchSize {
				batch = c.flush(ctx, batch)
			}
		case <-ticker.C:
			batch = c.flush(ctx, batch)
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			for {
				select {
				case event := <-c.eventCh:
					batch = append(batch, kafka.Event{Key: event.key(), Value: event.stamped()})
					if len(batch) >= c.batchSize {
						batch = c.flush(flushCtx, batch)
					}
				default:
					c.flush(flushCtx, batch)
					c.logger.Info("analytics collector stopped")
					return nil
				}
			}
		}
	}
}

// flush publishes batch and returns it emptied for reuse. A failed batch is
// dropped; analytics is best effort.
func (c *Collector) flush(ctx context.Context, batch []kafka.Event) []kafka.Event {
	if len(batch) == 0 {
		return batch
	}
	if err := c.publisher.PublishBatch(ctx, batch); err != nil {
		c.count("failed", len(batch))
		c.logger.Error("failed to publish analytics batch", "events", len(batch), "error", err)
	} else {
		c.count("published", len(batch))
		c.logger.Debug("analytics batch published", "events", len(batch))
	}
	return batch[:0]
}

func (c *Collector) count(status string, n int) {
	if c.metrics == nil {
		return
	}
	c.metrics.AnalyticsEvents.WithLabelValues(status).Add(float64(n))
}
