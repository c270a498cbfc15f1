package extractor

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"bookmark-extract/lib/progress"
	"bookmark-extract/lib/recordset"

	"github.com/stretchr/testify/require"
)

// fakeSource serves scripted batches, optionally failing at one index.
type fakeSource struct {
	batches [][]recordset.Record
	failAt  int // -1 = never
	openErr error

	pulls int
}

func newFakeSource(sizes ...int) *fakeSource {
	s := &fakeSource{failAt: -1}
	next := 0
	for _, size := range sizes {
		batch := make([]recordset.Record, size)
		for i := range batch {
			batch[i] = recordset.Record{
				Id:   fmt.Sprintf("%d", next),
				Text: fmt.Sprintf("bookmark %d", next),
			}
			next++
		}
		s.batches = append(s.batches, batch)
	}
	return s
}

func (s *fakeSource) Open(ctx context.Context) error {
	return s.openErr
}

func (s *fakeSource) NextBatch(ctx context.Context) ([]recordset.Record, bool, error) {
	if s.failAt >= 0 && s.pulls == s.failAt {
		return nil, false, errors.New("pull failed")
	}
	if s.pulls >= len(s.batches) {
		return nil, false, nil
	}
	batch := s.batches[s.pulls]
	s.pulls++
	return batch, s.pulls < len(s.batches), nil
}

type capture struct {
	emissions []recordset.Set
	errs      []error
	completes int
	events    []progress.Event
}

func runPipeline(t *testing.T, source Source, limit int) (*capture, *progress.Notifier) {
	t.Helper()
	notifier := progress.NewNotifier()
	c := &capture{}
	notifier.Subscribe(func(ev progress.Event) {
		c.events = append(c.events, ev)
	})

	p := NewPipeline(source, limit, notifier)
	p.Run(context.Background(), Subscriber{
		OnResults:  func(s recordset.Set) { c.emissions = append(c.emissions, s) },
		OnError:    func(err error) { c.errs = append(c.errs, err) },
		OnComplete: func() { c.completes++ },
	})
	return c, notifier
}

func TestMonotonicGrowth(t *testing.T) {
	c, _ := runPipeline(t, newFakeSource(2, 3, 1), 0)

	require.Len(t, c.emissions, 3)
	require.Equal(t, 1, c.completes)
	require.Empty(t, c.errs)

	prev := recordset.New()
	for _, s := range c.emissions {
		require.GreaterOrEqual(t, s.Size(), prev.Size())
		// each emission is a superset of the previous by identifier
		for _, r := range prev.Values() {
			require.True(t, s.Has(r.Id))
		}
		prev = s
	}
	require.Equal(t, 6, prev.Size())
}

func TestBoundedStopExactness(t *testing.T) {
	source := newFakeSource(3, 3, 3)
	c, _ := runPipeline(t, source, 5)

	// cumulative 3, then 6 > 5: stops after the second batch, the third
	// pull never happens
	require.Equal(t, 2, source.pulls)
	require.Equal(t, 1, c.completes)
	require.Equal(t, 6, c.emissions[len(c.emissions)-1].Size())

	// but the exported list is hard-capped
	capped := c.emissions[len(c.emissions)-1].Capped(5)
	require.Len(t, capped, 5)
	for i, r := range capped {
		require.Equal(t, fmt.Sprintf("%d", i), r.Id)
	}
}

func TestBoundedProgressRatios(t *testing.T) {
	c, _ := runPipeline(t, newFakeSource(3, 3, 3), 5)

	var ratios []progress.Ratio
	for _, ev := range c.events {
		if ev.Kind == progress.KindExtraction {
			ratios = append(ratios, ev.Ratio)
		}
	}
	require.Equal(t, []progress.Ratio{
		{Complete: 3, Total: 5},
		// overshoot is clamped to the limit
		{Complete: 5, Total: 5},
	}, ratios)
}

func TestUnboundedModeEmitsNoRatios(t *testing.T) {
	c, _ := runPipeline(t, newFakeSource(3, 3), 0)

	require.Equal(t, 1, c.completes)
	for _, ev := range c.events {
		require.NotEqual(t, progress.KindExtraction, ev.Kind)
	}
}

func TestDedupAcrossBatches(t *testing.T) {
	source := &fakeSource{failAt: -1, batches: [][]recordset.Record{
		{{Id: "a", Text: "original"}, {Id: "b"}},
		{{Id: "a", Text: "resurfaced"}, {Id: "c"}},
	}}
	c, _ := runPipeline(t, source, 0)

	final := c.emissions[len(c.emissions)-1]
	require.Equal(t, 3, final.Size())
	got, _ := final.Get("a")
	require.Equal(t, "original", got.Text)
}

func TestErrorSignaledExactlyOnce(t *testing.T) {
	source := newFakeSource(2, 2)
	source.failAt = 1
	c, _ := runPipeline(t, source, 0)

	require.Len(t, c.errs, 1)
	require.Equal(t, 0, c.completes)

	// the failure's message was forwarded on the message channel before
	// the handler ran
	var messages []string
	for _, ev := range c.events {
		if ev.IsMessage {
			messages = append(messages, ev.Message)
		}
	}
	require.Contains(t, messages, "pull failed")
}

func TestOpenFailure(t *testing.T) {
	source := newFakeSource(2)
	source.openErr = errors.New("session not on bookmarks page")
	c, _ := runPipeline(t, source, 0)

	require.Len(t, c.errs, 1)
	require.Equal(t, 0, c.completes)
	require.Empty(t, c.emissions)
}

func TestUnsubscribeSilencesPipeline(t *testing.T) {
	notifier := progress.NewNotifier()
	p := NewPipeline(newFakeSource(2, 2), 0, notifier)
	p.Unsubscribe()

	called := false
	p.Run(context.Background(), Subscriber{
		OnResults:  func(recordset.Set) { called = true },
		OnComplete: func() { called = true },
		OnError:    func(error) { called = true },
	})
	require.False(t, called)
}
