package voice

import (
	"sync"
	"time"
)

// Action is the turn-taking command a processed chunk calls for.
type Action int

const (
	ActionNone Action = iota
	ActionPause
	ActionResume
)

// TurnTaker approximates conversational turn-taking with local energy-based
// voice activity detection: the assistant is paused when the user's RMS
// energy crosses the speech threshold and resumed once they have been
// silent for the silence window. It holds no semantic understanding; the
// remote service would otherwise keep talking over the user.
//
// Process runs on every captured chunk (~10/s), so resume latency is
// bounded by the silence window plus one chunk period.
type TurnTaker struct {
	threshold float64
	silence   time.Duration

	mu         sync.Mutex
	paused     bool
	lastSpeech time.Time
	now        func() time.Time
}

func NewTurnTaker(threshold float64, silence time.Duration) *TurnTaker {
	return &TurnTaker{
		threshold: threshold,
		silence:   silence,
		now:       time.Now,
	}
}

// Process updates the VAD state with one chunk's RMS energy and returns the
// command to send, if any. A run of loud chunks produces exactly one
// ActionPause; a quiet stretch longer than the silence window produces
// exactly one ActionResume.
func (t *TurnTaker) Process(rms float64) Action {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if rms >= t.threshold {
		t.lastSpeech = now
		if !t.paused {
			t.paused = true
			return ActionPause
		}
		return ActionNone
	}

	if t.paused && !t.lastSpeech.IsZero() && now.Sub(t.lastSpeech) > t.silence {
		t.paused = false
		return ActionResume
	}
	return ActionNone
}

// Paused reports whether a pause command was issued more recently than any
// resume.
func (t *TurnTaker) Paused() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.paused
}

// SetPaused records a manually issued pause or resume so automatic
// detection stays consistent with the wire state.
func (t *TurnTaker) SetPaused(paused bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.paused = paused
	if !paused {
		t.lastSpeech = time.Time{}
	}
}

// Reset returns the controller to its initial state.
func (t *TurnTaker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.paused = false
	t.lastSpeech = time.Time{}
}
