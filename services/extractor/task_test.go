package extractor

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"bookmark-extract/lib/export"
	"bookmark-extract/lib/progress"
	"bookmark-extract/lib/recordset"
	"bookmark-extract/services/session"

	"github.com/stretchr/testify/require"
)

type failingSink struct{}

func (failingSink) Write(ctx context.Context, records []recordset.Record) error {
	return errors.New("disk full")
}

type recordingSink struct {
	written [][]recordset.Record
}

func (s *recordingSink) Write(ctx context.Context, records []recordset.Record) error {
	s.written = append(s.written, records)
	return nil
}

func newTestTask(opts Options, source Source) (*Task, *[]progress.Event) {
	notifier := progress.NewNotifier()
	events := &[]progress.Event{}
	notifier.Subscribe(func(ev progress.Event) {
		*events = append(*events, ev)
	})

	task := NewTask(opts, session.NewController(), notifier)
	task.source = source
	task.consoleSink = export.Console{Out: &bytes.Buffer{}}
	return task, events
}

func TestTaskRunBoundedExport(t *testing.T) {
	var exported []recordset.Record
	sink := &recordingSink{}

	task, events := newTestTask(Options{
		Limit:     5,
		OnSuccess: func(records []recordset.Record) { exported = records },
	}, newFakeSource(3, 3, 3))
	task.fileSink = sink

	task.Run(context.Background())

	// internal accumulation overshot to 6, the export is capped at 5
	require.Len(t, exported, 5)
	require.Len(t, sink.written, 1)
	require.Len(t, sink.written[0], 5)
	require.Equal(t, "0", exported[0].Id)

	// completion and export events fired exactly once, in order, last
	var kinds []progress.Kind
	for _, ev := range *events {
		if !ev.IsMessage {
			kinds = append(kinds, ev.Kind)
		}
	}
	require.GreaterOrEqual(t, len(kinds), 2)
	require.Equal(t, progress.KindExtractionComplete, kinds[len(kinds)-2])
	require.Equal(t, progress.KindExportComplete, kinds[len(kinds)-1])
}

func TestTaskNoEventsAfterCompletion(t *testing.T) {
	task, events := newTestTask(Options{Limit: 2}, newFakeSource(3))
	task.Run(context.Background())

	count := len(*events)
	// teardown already ran inside Stop; its session success event landed
	// after unsubscription and must not surface
	for _, ev := range *events {
		require.NotEqual(t, progress.KindSessionSuccess, ev.Kind)
	}
	task.Stop(context.Background())
	require.Len(t, *events, count)
}

func TestTaskFileExportFailureIsNonFatal(t *testing.T) {
	succeeded := false
	task, events := newTestTask(Options{
		OnSuccess: func([]recordset.Record) { succeeded = true },
		OnError:   func(error) { t.Fatal("error callback must not run") },
	}, newFakeSource(2))
	task.fileSink = failingSink{}
	console := &recordingSink{}
	task.consoleSink = console

	task.Run(context.Background())

	require.True(t, succeeded)
	// console export still happened
	require.Len(t, console.written, 1)

	found := false
	for _, ev := range *events {
		if ev.IsMessage && ev.Message == "file export failed: disk full" {
			found = true
		}
	}
	require.True(t, found)
}

func TestTaskPipelineErrorSurfaces(t *testing.T) {
	source := newFakeSource(2, 2)
	source.failAt = 1

	var got error
	task, events := newTestTask(Options{
		OnError:   func(err error) { got = err },
		OnSuccess: func([]recordset.Record) { t.Fatal("success callback must not run") },
	}, source)

	task.Run(context.Background())

	require.Error(t, got)
	found := false
	for _, ev := range *events {
		if ev.IsMessage && ev.Message == "pull failed" {
			found = true
		}
	}
	require.True(t, found)
}

func TestTaskCurrentSnapshots(t *testing.T) {
	task, _ := newTestTask(Options{}, newFakeSource(2, 2))

	var held recordset.Set
	holding := false
	task.source = &snapshotSource{inner: newFakeSource(2, 2), after: func() {
		// grab a reference once the first batch has been merged
		if !holding && task.Current().Size() == 2 {
			held = task.Current()
			holding = true
		}
	}}

	task.Run(context.Background())

	// the snapshot taken mid-run is unchanged by later merges
	require.True(t, holding)
	require.Equal(t, 2, held.Size())
	require.Equal(t, 4, task.Current().Size())
}

// snapshotSource invokes a hook after each pull.
type snapshotSource struct {
	inner Source
	after func()
}

func (s *snapshotSource) Open(ctx context.Context) error {
	return s.inner.Open(ctx)
}

func (s *snapshotSource) NextBatch(ctx context.Context) ([]recordset.Record, bool, error) {
	defer s.after()
	return s.inner.NextBatch(ctx)
}

func TestTaskLogInUnsupportedDriver(t *testing.T) {
	task, events := newTestTask(Options{Driver: "netscape"}, nil)
	task.LogIn(context.Background())

	// the controller's userError resurfaced on the progress channel
	found := false
	for _, ev := range *events {
		if ev.IsMessage && ev.Message == "unsupported browser driver" {
			found = true
		}
	}
	require.True(t, found)
}

func TestNumEvents(t *testing.T) {
	bounded, _ := newTestTask(Options{Limit: 10}, nil)
	require.Equal(t, session.NumProgressEvents+taskProgressEvents+10, bounded.NumEvents())

	unbounded, _ := newTestTask(Options{}, nil)
	require.Equal(t, session.NumProgressEvents+taskProgressEvents, unbounded.NumEvents())
}
