package session

import "sync"

// EventKind is the controller's closed event taxonomy. Errors never cross
// the call boundary as return values, they are converted to events.
type EventKind string

const (
	// the just-requested operation completed
	EventSuccess EventKind = "success"
	// a human must supply a code
	EventActionRequired EventKind = "actionRequired"
	// caller-supplied input was rejected; recoverable by retry
	EventUserError EventKind = "userError"
	// a precondition was violated by the integrating code
	EventInternalError EventKind = "internalError"
)

type Event struct {
	Kind    EventKind
	Message string
	Details []string
}

// Listener is invoked synchronously on the emitting goroutine.
type Listener func(Event)

type Subscription struct {
	emitter *emitter
	id      uint64
}

func (s Subscription) Unsubscribe() {
	s.emitter.mu.Lock()
	defer s.emitter.mu.Unlock()
	delete(s.emitter.listeners, s.id)
}

type emitter struct {
	mu        sync.Mutex
	listeners map[uint64]Listener
	nextId    uint64
}

func newEmitter() *emitter {
	return &emitter{listeners: make(map[uint64]Listener)}
}

func (e *emitter) subscribe(l Listener) Subscription {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextId++
	e.listeners[e.nextId] = l
	return Subscription{emitter: e, id: e.nextId}
}

func (e *emitter) emit(ev Event) {
	e.mu.Lock()
	listeners := make([]Listener, 0, len(e.listeners))
	for _, l := range e.listeners {
		listeners = append(listeners, l)
	}
	e.mu.Unlock()

	for _, l := range listeners {
		l(ev)
	}
}
