package progress

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDispatchOrder(t *testing.T) {
	n := NewNotifier()

	var got []Event
	sub := n.Subscribe(func(ev Event) {
		got = append(got, ev)
	})
	defer sub.Unsubscribe()

	n.EmitRatio(1, 5)
	n.EmitMessage("pulled a page")
	n.EmitRatio(2, 5)
	n.EmitProgress(KindExtractionComplete)

	require.Len(t, got, 4)
	require.Equal(t, KindExtraction, got[0].Kind)
	require.Equal(t, Ratio{Complete: 1, Total: 5}, got[0].Ratio)
	require.True(t, got[1].IsMessage)
	require.Equal(t, Ratio{Complete: 2, Total: 5}, got[2].Ratio)
	require.Equal(t, KindExtractionComplete, got[3].Kind)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	n := NewNotifier()

	count := 0
	sub := n.Subscribe(func(Event) { count++ })

	n.EmitMessage("one")
	sub.Unsubscribe()
	n.EmitMessage("two")
	// unsubscribing twice is fine
	sub.Unsubscribe()
	n.EmitMessage("three")

	require.Equal(t, 1, count)
}

func TestMultipleListeners(t *testing.T) {
	n := NewNotifier()

	a, b := 0, 0
	subA := n.Subscribe(func(Event) { a++ })
	defer subA.Unsubscribe()
	subB := n.Subscribe(func(Event) { b++ })
	defer subB.Unsubscribe()

	n.EmitProgress(KindExportComplete)

	require.Equal(t, 1, a)
	require.Equal(t, 1, b)
}
