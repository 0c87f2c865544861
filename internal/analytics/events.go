// Package analytics records proximity query and index reload events. The
// searcher publishes them through a Collector; the analytics service folds
// them into an Aggregator.
package analytics

import (
	"fmt"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Proximity-Search-Platform/pkg/kafka"
)

type EventType string

const (
	EventQuery  EventType = "query"
	EventReload EventType = "reload"
)

// QueryEvent describes one executed proximity query, successful or not.
type QueryEvent struct {
	Type       EventType `json:"type"`
	Query      string    `json:"query"`
	Direction  string    `json:"direction"`
	K          int       `json:"k"`
	Generation uint64    `json:"generation"`
	TotalHits  int       `json:"total_hits"`
	LatencyUs  int64     `json:"latency_us"`
	CacheHit   bool      `json:"cache_hit"`
	ErrorKind  string    `json:"error_kind,omitempty"`
	RequestID  string    `json:"request_id,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// ReloadEvent describes one index rebuild attempt.
type ReloadEvent struct {
	Type         EventType `json:"type"`
	Generation   uint64    `json:"generation"`
	Source       string    `json:"source"`
	Terms        int       `json:"terms"`
	Documents    int       `json:"documents"`
	SkippedLines int       `json:"skipped_lines"`
	DurationMs   int64     `json:"duration_ms"`
	Error        string    `json:"error,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// Event is implemented by QueryEvent and ReloadEvent.
type Event interface {
	EventType() EventType
	key() string
	stamped() Event
}

func (e QueryEvent) EventType() EventType  { return EventQuery }
func (e ReloadEvent) EventType() EventType { return EventReload }

// Query events are keyed by direction so each partition sees one mode.
func (e QueryEvent) key() string  { return "query:" + e.Direction }
func (e ReloadEvent) key() string { return "reload" }

// stamped returns the event with its type field set, so that Decode can
// read it back whatever the producer filled in.
func (e QueryEvent) stamped() Event {
	e.Type = EventQuery
	return e
}

func (e ReloadEvent) stamped() Event {
	e.Type = EventReload
	return e
}

// Decode reads a JSON event and returns it as a QueryEvent or ReloadEvent
// according to its type field.
func Decode(data []byte) (Event, error) {
	envelope, err := kafka.DecodeJSON[struct {
		Type EventType `json:"type"`
	}](data)
	if err != nil {
		return nil, fmt.Errorf("decoding event envelope: %w", err)
	}
	switch envelope.Type {
	case EventQuery:
		e, err := kafka.DecodeJSON[QueryEvent](data)
		if err != nil {
			return nil, fmt.Errorf("decoding query event: %w", err)
		}
		return e, nil
	case EventReload:
		e, err := kafka.DecodeJSON[ReloadEvent](data)
		if err != nil {
			return nil, fmt.Errorf("decoding reload event: %w", err)
		}
		return e, nil
	default:
		return nil, fmt.Errorf("unknown event type %q", envelope.Type)
	}
}
