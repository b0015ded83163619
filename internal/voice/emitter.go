package voice

import "sync"

// EventName identifies one of the client's event streams.
type EventName string

const (
	EventConnected          EventName = "connected"
	EventDisconnected       EventName = "disconnected"
	EventMessage            EventName = "message"
	EventInterimMessage     EventName = "interimMessage"
	EventRecordingStarted   EventName = "recordingStarted"
	EventRecordingStopped   EventName = "recordingStopped"
	EventSpeaking           EventName = "speaking"
	EventRMS                EventName = "rms"
	EventError              EventName = "error"
	EventReconnectionFailed EventName = "reconnectionFailed"
	EventChatMetadata       EventName = "chatMetadata"
)

// emitter is a typed listener registry. Listeners can be added and removed
// at any time without disrupting a dispatch already in flight: emit works
// on a snapshot taken under the lock.
type emitter struct {
	mu        sync.RWMutex
	nextID    int
	listeners map[EventName]map[int]func(any)
}

func newEmitter() *emitter {
	return &emitter{listeners: make(map[EventName]map[int]func(any))}
}

func (e *emitter) on(name EventName, fn func(any)) func() {
	e.mu.Lock()
	e.nextID++
	id := e.nextID
	if e.listeners[name] == nil {
		e.listeners[name] = make(map[int]func(any))
	}
	e.listeners[name][id] = fn
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		delete(e.listeners[name], id)
		e.mu.Unlock()
	}
}

func (e *emitter) emit(name EventName, payload any) {
	e.mu.RLock()
	fns := make([]func(any), 0, len(e.listeners[name]))
	for _, fn := range e.listeners[name] {
		fns = append(fns, fn)
	}
	e.mu.RUnlock()

	for _, fn := range fns {
		fn(payload)
	}
}
