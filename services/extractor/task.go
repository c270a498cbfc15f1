package extractor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"bookmark-extract/lib/export"
	"bookmark-extract/lib/platforms/twitter"
	"bookmark-extract/lib/progress"
	"bookmark-extract/lib/recordset"
	"bookmark-extract/services/session"

	"github.com/mazen160/go-random"
)

// taskProgressEvents is the orchestrator's own fixed event count for a
// full run: extraction-complete and export-complete.
const taskProgressEvents = 2

// Options is the immutable per-run configuration. Limit 0 means
// unbounded; an empty Filename skips the file export.
type Options struct {
	Credentials twitter.Credentials
	Driver      string
	Limit       int
	Filename    string
	OnSuccess   func(records []recordset.Record)
	OnError     func(err error)
}

// Task sequences session-open, extraction, bounded materialization,
// export and teardown, and folds both subsystems' events into one
// progress channel.
type Task struct {
	Id string

	opts       Options
	controller *session.Controller
	notifier   *progress.Notifier

	// overridable for tests
	source      Source
	fileSink    export.Sink
	consoleSink export.Sink

	sessionSub session.Subscription
	pipeline   *Pipeline

	mu      sync.Mutex
	current recordset.Set
	stopped bool
}

// NewTask wires the orchestrator to an initialized controller. From
// construction on, every controller event re-surfaces on the progress
// channel, so a caller watching only the channel sees both subsystems.
func NewTask(opts Options, controller *session.Controller, notifier *progress.Notifier) *Task {
	id, err := random.String(8)
	if err != nil {
		id = "task"
	}

	t := &Task{
		Id:          id,
		opts:        opts,
		controller:  controller,
		notifier:    notifier,
		consoleSink: export.Console{},
		current:     recordset.New(),
	}
	if opts.Filename != "" {
		t.fileSink = export.JSONFile{Filename: opts.Filename}
	}

	t.sessionSub = controller.Subscribe(func(ev session.Event) {
		switch ev.Kind {
		case session.EventSuccess:
			notifier.EmitProgress(progress.KindSessionSuccess)
		case session.EventActionRequired:
			notifier.EmitProgress(progress.KindSessionActionRequired)
			notifier.EmitMessage(ev.Message)
		default:
			notifier.EmitMessage(ev.Message)
			for _, detail := range ev.Details {
				notifier.EmitMessage(detail)
			}
		}
	})
	return t
}

// NumEvents is the number of discrete progress events a full run emits:
// the session controller's fixed count, the orchestrator's own fixed
// count, and one per unit of the limit when one is configured. Callers
// use it to pre-size progress displays; it says nothing about timing.
func (t *Task) NumEvents() int {
	n := session.NumProgressEvents + taskProgressEvents
	if t.opts.Limit > 0 {
		n += t.opts.Limit
	}
	return n
}

func (t *Task) setCurrent(s recordset.Set) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current = s
}

// Current is the latest accumulated snapshot. Snapshots are replaced
// wholesale, never mutated, so a held reference stays consistent.
func (t *Task) Current() recordset.Set {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// LogIn starts the session and submits the stored credentials. Outcomes
// surface on the progress channel; when the site demands a code the
// caller finishes that exchange through the controller before Run.
func (t *Task) LogIn(ctx context.Context) {
	ctx, span := tracer.Start(ctx, "task:LogIn")
	defer span.End()

	if t.controller.State() == session.StateInactive {
		t.controller.Initialize(ctx, t.opts.Driver)
	}
	if t.controller.State() == session.StateLoggedOut {
		t.controller.LogIn(ctx, t.opts.Credentials)
	}
}

// Run drives one extraction to completion. The session must already be
// authenticated (code entry, if any, happens out of band between LogIn
// and Run).
func (t *Task) Run(ctx context.Context) {
	ctx, span := tracer.Start(ctx, "task:Run")
	defer span.End()

	source := t.source
	if source == nil {
		source = t.controller.Bookmarks()
	}

	t.pipeline = NewPipeline(source, t.opts.Limit, t.notifier)
	t.pipeline.Run(ctx, Subscriber{
		OnResults: t.setCurrent,
		OnError: func(err error) {
			// the pipeline already forwarded message events for this
			if t.opts.OnError != nil {
				t.opts.OnError(err)
			}
		},
		OnComplete: func() {
			t.Stop(ctx)
			if t.opts.OnSuccess != nil {
				t.opts.OnSuccess(t.Current().Capped(t.opts.Limit))
			}
		},
	})
}

// Stop finalizes the run with whatever was accumulated so far: tears
// down event forwarding, then the extraction subscription, emits the one
// extraction-complete event, exports the limit-capped list and releases
// the session. Graceful stop, never abort-and-discard.
func (t *Task) Stop(ctx context.Context) {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.stopped = true
	t.mu.Unlock()

	ctx, span := tracer.Start(ctx, "task:Stop")
	defer span.End()

	// forwarding goes down before the pipeline subscription; both before
	// the completion event, so nothing can fire after it
	t.sessionSub.Unsubscribe()
	if t.pipeline != nil {
		t.pipeline.Unsubscribe()
	}
	t.notifier.EmitProgress(progress.KindExtractionComplete)

	records := t.Current().Capped(t.opts.Limit)
	slog.InfoContext(ctx, "extraction complete", "task", t.Id, "records", len(records))

	if t.fileSink != nil {
		err := t.fileSink.Write(ctx, records)
		if err != nil {
			// file export is best-effort, never fatal to the run
			t.notifier.EmitMessage(fmt.Sprintf("file export failed: %s", err.Error()))
		}
	}
	if t.consoleSink != nil {
		err := t.consoleSink.Write(ctx, records)
		if err != nil {
			t.notifier.EmitMessage(fmt.Sprintf("console export failed: %s", err.Error()))
		}
	}
	t.notifier.EmitProgress(progress.KindExportComplete)

	t.controller.TearDown(ctx)
}
