package voice

import "testing"

func TestEmitterDispatchAndUnsubscribe(t *testing.T) {
	e := newEmitter()

	var got []any
	off := e.on(EventRMS, func(v any) { got = append(got, v) })

	e.emit(EventRMS, 0.5)
	e.emit(EventRMS, 0.7)
	off()
	e.emit(EventRMS, 0.9)

	if len(got) != 2 {
		t.Fatalf("expected 2 deliveries, got %d", len(got))
	}
}

func TestEmitterIsolatesEventNames(t *testing.T) {
	e := newEmitter()

	calls := 0
	e.on(EventMessage, func(any) { calls++ })

	e.emit(EventInterimMessage, nil)
	e.emit(EventError, nil)
	if calls != 0 {
		t.Fatalf("listener received events for other names: %d calls", calls)
	}

	e.emit(EventMessage, nil)
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestEmitterMutationDuringDispatch(t *testing.T) {
	e := newEmitter()

	var offSelf func()
	fired := 0
	offSelf = e.on(EventMessage, func(any) {
		fired++
		// Removing and adding listeners mid-dispatch must not deadlock
		// or disrupt the in-flight emit.
		offSelf()
		e.on(EventMessage, func(any) {})
	})

	e.emit(EventMessage, nil)
	if fired != 1 {
		t.Fatalf("expected the listener to fire once, got %d", fired)
	}

	e.emit(EventMessage, nil)
	if fired != 1 {
		t.Fatalf("removed listener fired again: %d", fired)
	}
}

func TestEmitterNoListeners(t *testing.T) {
	e := newEmitter()
	e.emit(EventSpeaking, "hello")
}
