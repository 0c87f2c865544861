// Package kafka wraps segmentio/kafka-go for the query-event stream. The
// producer writes JSON batches keyed for partitioning; the consumer feeds
// each message to a MessageHandler and commits it.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/Proximity-Search-Platform/pkg/config"
)

// fetchBackoff is the pause after a failed fetch.
const fetchBackoff = time.Second

type MessageHandler func(ctx context.Context, key []byte, value []byte) error

type Consumer struct {
	reader  *kafka.Reader
	handler MessageHandler
	logger  *slog.Logger

	handled atomic.Int64
	failed  atomic.Int64
}

// NewConsumer joins cfg.ConsumerGroup on topic. A group with no committed
// offset starts from the newest message.
func NewConsumer(cfg config.KafkaConfig, topic string, handler MessageHandler) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:     cfg.Brokers,
			Topic:       topic,
			GroupID:     cfg.ConsumerGroup,
			MinBytes:    1e3,
			MaxBytes:    10e6,
			MaxWait:     500 * time.Millisecond,
			StartOffset: kafka.LastOffset,
		}),
		handler: handler,
		logger:  slog.Default().With("component", "kafka-consumer", "topic", topic),
	}
}

// Start consumes until ctx is cancelled, then closes the reader. A message
// the handler rejects is still committed so one bad event cannot stall its
// partition.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("consumer started")
	defer c.logger.Info("consumer stopped", "handled", c.handled.Load(), "failed", c.failed.Load())

	for {
		msg, err := c.reader.FetchMessage(ctx)
		switch {
		case ctx.Err() != nil:
			return c.reader.Close()
		case errors.Is(err, kafka.ErrGroupClosed):
			return nil
		case err != nil:
			c.logger.Error("fetch failed", "error", err, "backoff", fetchBackoff)
			select {
			case <-time.After(fetchBackoff):
				continue
			case <-ctx.Done():
				return c.reader.Close()
			}
		}

		log := c.logger.With("partition", msg.Partition, "offset", msg.Offset)
		if err := c.handler(ctx, msg.Key, msg.Value); err != nil {
			c.failed.Add(1)
			log.Error("handler rejected message", "key", string(msg.Key), "error", err)
		} else {
			c.handled.Add(1)
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			log.Error("commit failed", "error", err)
		}
	}
}

// Lag is how many messages the reader trails the partition head by, as of
// its last fetch.
func (c *Consumer) Lag() int64 {
	return c.reader.Stats().Lag
}

// Counts reports how many messages were handled and rejected.
func (c *Consumer) Counts() (handled, failed int64) {
	return c.handled.Load(), c.failed.Load()
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

// DecodeJSON unmarshals a message value into T.
func DecodeJSON[T any](value []byte) (T, error) {
	var result T
	if err := json.Unmarshal(value, &result); err != nil {
		return result, fmt.Errorf("decoding kafka message: %w", err)
	}
	return result, nil
}
