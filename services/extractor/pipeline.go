// Package extractor pulls paginated bookmark batches out of an
// authenticated session into a growing record set, then sequences
// truncation, export and teardown.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"bookmark-extract/lib/progress"
	"bookmark-extract/lib/recordset"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("services/extractor")

// Source is the paginated bookmark feed. *twitter.Pager implements it.
// One outstanding pull at a time; NextBatch reports whether more pages
// remain.
type Source interface {
	Open(ctx context.Context) error
	NextBatch(ctx context.Context) ([]recordset.Record, bool, error)
}

// Subscriber receives pipeline emissions. OnResults is handed the whole
// accumulated set after every merge, never just the delta, so observed
// state only ever grows.
type Subscriber struct {
	OnResults  func(recordset.Set)
	OnError    func(error)
	OnComplete func()
}

// Pipeline runs the accumulate/stop loop. Run is invoked once per task.
type Pipeline struct {
	source   Source
	limit    int // 0 = unbounded
	notifier *progress.Notifier

	unsubscribed atomic.Bool
	terminated   atomic.Bool
}

func NewPipeline(source Source, limit int, notifier *progress.Notifier) *Pipeline {
	return &Pipeline{
		source:   source,
		limit:    limit,
		notifier: notifier,
	}
}

// Unsubscribe guarantees no further pipeline emissions once it returns.
// There is no mid-pull cancellation; an in-flight pull finishes but its
// result is dropped.
func (p *Pipeline) Unsubscribe() {
	p.unsubscribed.Store(true)
}

// terminate marks the single allowed terminal signal (completion or
// error). Returns false if one was already sent.
func (p *Pipeline) terminate() bool {
	return p.terminated.CompareAndSwap(false, true)
}

func (p *Pipeline) fail(err error, sub Subscriber) {
	if !p.terminate() {
		return
	}
	// surface the failure on the message channel before the handler runs
	p.notifier.EmitMessage(err.Error())
	var trace interface{ StackTrace() string }
	if errors.As(err, &trace) {
		p.notifier.EmitMessage(trace.StackTrace())
	}
	if sub.OnError != nil {
		sub.OnError(err)
	}
}

// Run opens the session and pulls batches until the configured maximum
// is exceeded or the source is exhausted. It stops after the batch that
// crossed the limit, never before, and never starts another pull once
// past it.
func (p *Pipeline) Run(ctx context.Context, sub Subscriber) {
	ctx, span := tracer.Start(ctx, "pipeline:Run")
	defer span.End()

	err := p.source.Open(ctx)
	if err != nil {
		span.SetStatus(codes.Error, "failed to open source")
		p.fail(fmt.Errorf("failed to open bookmarks: %w", err), sub)
		return
	}

	accumulated := recordset.New()
	for {
		if p.unsubscribed.Load() {
			return
		}

		batch, more, err := p.source.NextBatch(ctx)
		if err != nil {
			span.SetStatus(codes.Error, "failed to pull batch")
			p.fail(err, sub)
			return
		}
		if p.unsubscribed.Load() {
			return
		}

		accumulated = recordset.Union(accumulated, recordset.New(batch...))
		span.AddEvent("merged batch", trace.WithAttributes(
			attribute.Int("custom.batch_size", len(batch)),
			attribute.Int("custom.accumulated", accumulated.Size()),
		))

		if sub.OnResults != nil {
			sub.OnResults(accumulated)
		}
		if p.limit > 0 {
			p.notifier.EmitRatio(min(accumulated.Size(), p.limit), p.limit)
		}

		if p.limit > 0 && accumulated.Size() > p.limit {
			break
		}
		if !more {
			break
		}
	}

	if p.unsubscribed.Load() || !p.terminate() {
		return
	}
	if sub.OnComplete != nil {
		sub.OnComplete()
	}
}
