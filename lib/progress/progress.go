// Package progress is the uniform event surface the extractor reports
// through. It is a small in-process pub/sub: listeners register, events
// are dispatched synchronously in emission order.
package progress

import "sync"

// Kind tags a progress event with the operation it reports on.
type Kind string

const (
	KindExtraction         Kind = "extraction-progress"
	KindExtractionComplete Kind = "extraction-complete"
	KindExportComplete     Kind = "export-complete"
	// session-controller origin tags, forwarded verbatim
	KindSessionSuccess        Kind = "session-success"
	KindSessionActionRequired Kind = "session-action-required"
)

// Ratio is (complete, total) for a bounded extraction. Total is only
// meaningful for KindExtraction events.
type Ratio struct {
	Complete int
	Total    int
}

// Event is either a progress notification or a free-text message.
type Event struct {
	Kind    Kind
	Ratio   Ratio
	Message string
	// IsMessage distinguishes diagnostic text from progress notifications.
	IsMessage bool
}

// Listener receives events. It is invoked synchronously on the emitting
// goroutine, so it must not block.
type Listener func(Event)

// Notifier dispatches events to subscribed listeners. Safe for
// concurrent use.
type Notifier struct {
	mu        sync.Mutex
	listeners map[uint64]Listener
	nextId    uint64
}

func NewNotifier() *Notifier {
	return &Notifier{listeners: make(map[uint64]Listener)}
}

// Subscription is an active listener registration.
type Subscription struct {
	notifier *Notifier
	id       uint64
}

// Unsubscribe stops delivery to the listener. Safe to call more than
// once; no event is delivered after it returns.
func (s Subscription) Unsubscribe() {
	s.notifier.mu.Lock()
	defer s.notifier.mu.Unlock()
	delete(s.notifier.listeners, s.id)
}

func (n *Notifier) Subscribe(l Listener) Subscription {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.nextId++
	n.listeners[n.nextId] = l
	return Subscription{notifier: n, id: n.nextId}
}

func (n *Notifier) emit(ev Event) {
	n.mu.Lock()
	ids := make([]uint64, 0, len(n.listeners))
	for id := range n.listeners {
		ids = append(ids, id)
	}
	listeners := make([]Listener, len(ids))
	for i, id := range ids {
		listeners[i] = n.listeners[id]
	}
	n.mu.Unlock()

	for _, l := range listeners {
		l(ev)
	}
}

// EmitProgress raises a tagged progress event.
func (n *Notifier) EmitProgress(kind Kind) {
	n.emit(Event{Kind: kind})
}

// EmitRatio raises an extraction-progress event with a completion ratio.
func (n *Notifier) EmitRatio(complete, total int) {
	n.emit(Event{Kind: KindExtraction, Ratio: Ratio{Complete: complete, Total: total}})
}

// EmitMessage raises a free-text diagnostic event.
func (n *Notifier) EmitMessage(text string) {
	n.emit(Event{Message: text, IsMessage: true})
}
