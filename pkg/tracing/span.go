// Package tracing times the stages of one request as a tree of spans carried
// in its context. Child spans are only recorded under a root, and every
// Span method is safe on a nil receiver, so untraced requests pay nothing.
package tracing

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/Proximity-Search-Platform/pkg/logger"
)

type spanKey struct{}

type Span struct {
	Name    string
	TraceID string
	start   time.Time

	mu       sync.Mutex
	duration time.Duration
	attrs    map[string]any
	children []*Span
}

// StartSpan opens a root span. Its trace id is the request id carried by ctx
// when there is one, else a fresh UUID.
func StartSpan(ctx context.Context, name string) (context.Context, *Span) {
	traceID := logger.RequestID(ctx)
	if traceID == "" {
		traceID = uuid.NewString()
	}
	span := &Span{Name: name, TraceID: traceID, start: time.Now()}
	return context.WithValue(ctx, spanKey{}, span), span
}

// StartChildSpan opens a span under the one in ctx. With no span in ctx it
// returns ctx unchanged and a nil span.
func StartChildSpan(ctx context.Context, name string) (context.Context, *Span) {
	parent := SpanFromContext(ctx)
	if parent == nil {
		return ctx, nil
	}
	child := &Span{Name: name, TraceID: parent.TraceID, start: time.Now()}
	parent.mu.Lock()
	parent.children = append(parent.children, child)
	parent.mu.Unlock()
	return context.WithValue(ctx, spanKey{}, child), child
}

func SpanFromContext(ctx context.Context) *Span {
	span, _ := ctx.Value(spanKey{}).(*Span)
	return span
}

func (s *Span) End() {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.duration = time.Since(s.start)
	s.mu.Unlock()
}

func (s *Span) SetAttr(key string, value any) {
	if s == nil {
		return
	}
	s.mu.Lock()
	if s.attrs == nil {
		s.attrs = make(map[string]any)
	}
	s.attrs[key] = value
	s.mu.Unlock()
}

// Summary is the JSON form of a finished span tree. Only the root carries
// the trace id.
type Summary struct {
	Name       string         `json:"name"`
	TraceID    string         `json:"trace_id,omitempty"`
	DurationUS int64          `json:"duration_us"`
	Attrs      map[string]any `json:"attrs,omitempty"`
	Children   []Summary      `json:"children,omitempty"`
}

func (s *Span) Summarize() Summary {
	sum := s.summarize()
	sum.TraceID = s.TraceID
	return sum
}

func (s *Span) summarize() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	sum := Summary{Name: s.Name, DurationUS: s.duration.Microseconds()}
	if len(s.attrs) > 0 {
		sum.Attrs = make(map[string]any, len(s.attrs))
		for k, v := range s.attrs {
			sum.Attrs[k] = v
		}
	}
	for _, child := range s.children {
		sum.Children = append(sum.Children, child.summarize())
	}
	return sum
}

// Log writes the tree as one debug record, one group per direct child.
func (s *Span) Log(log *slog.Logger) {
	if s == nil {
		return
	}
	sum := s.Summarize()
	args := []any{
		"trace_id", sum.TraceID,
		"span", sum.Name,
		"duration_us", sum.DurationUS,
	}
	for _, child := range sum.Children {
		group := []any{"duration_us", child.DurationUS}
		for k, v := range child.Attrs {
			group = append(group, k, v)
		}
		args = append(args, slog.Group(child.Name, group...))
	}
	log.Debug("trace", args...)
}
