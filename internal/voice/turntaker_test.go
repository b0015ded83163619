package voice

import (
	"testing"
	"time"
)

func newTestTurnTaker(threshold float64, silence time.Duration) (*TurnTaker, *time.Time) {
	tt := NewTurnTaker(threshold, silence)
	now := time.Unix(1000, 0)
	tt.now = func() time.Time { return now }
	return tt, &now
}

func TestTurnTakerPausesOnceForSustainedSpeech(t *testing.T) {
	tt, now := newTestTurnTaker(0.02, 800*time.Millisecond)

	pauses := 0
	for i := 0; i < 10; i++ {
		*now = now.Add(100 * time.Millisecond)
		if action := tt.Process(0.5); action == ActionPause {
			pauses++
		} else if action == ActionResume {
			t.Fatal("unexpected resume during speech")
		}
	}

	if pauses != 1 {
		t.Fatalf("expected exactly 1 pause across the speech run, got %d", pauses)
	}
	if !tt.Paused() {
		t.Fatal("controller should report paused")
	}
}

func TestTurnTakerResumesOnceAfterSilence(t *testing.T) {
	tt, now := newTestTurnTaker(0.02, 800*time.Millisecond)

	if action := tt.Process(0.5); action != ActionPause {
		t.Fatalf("expected pause, got %v", action)
	}

	resumes := 0
	for i := 0; i < 20; i++ {
		*now = now.Add(100 * time.Millisecond)
		if action := tt.Process(0.001); action == ActionResume {
			resumes++
		}
	}

	if resumes != 1 {
		t.Fatalf("expected exactly 1 resume after silence, got %d", resumes)
	}
	if tt.Paused() {
		t.Fatal("controller should report resumed")
	}
}

func TestTurnTakerHoldsWhileSilenceShorterThanWindow(t *testing.T) {
	tt, now := newTestTurnTaker(0.02, 800*time.Millisecond)

	tt.Process(0.5)

	// Quiet chunks inside the silence window must not resume.
	for i := 0; i < 7; i++ {
		*now = now.Add(100 * time.Millisecond)
		if action := tt.Process(0.001); action != ActionNone {
			t.Fatalf("expected no action at %dms of silence, got %v", (i+1)*100, action)
		}
	}

	// Speech again restarts the silence clock.
	if action := tt.Process(0.5); action != ActionNone {
		t.Fatalf("expected no second pause, got %v", action)
	}

	*now = now.Add(500 * time.Millisecond)
	if action := tt.Process(0.001); action != ActionNone {
		t.Fatal("silence clock should have restarted after renewed speech")
	}

	*now = now.Add(400 * time.Millisecond)
	if action := tt.Process(0.001); action != ActionResume {
		t.Fatalf("expected resume after full silence window, got %v", action)
	}
}

func TestTurnTakerBelowThresholdNeverPauses(t *testing.T) {
	tt, now := newTestTurnTaker(0.02, 800*time.Millisecond)

	for i := 0; i < 30; i++ {
		*now = now.Add(100 * time.Millisecond)
		if action := tt.Process(0.01); action != ActionNone {
			t.Fatalf("expected no action for quiet input, got %v", action)
		}
	}
}

func TestTurnTakerManualOverrideSync(t *testing.T) {
	tt, now := newTestTurnTaker(0.02, 800*time.Millisecond)

	tt.SetPaused(true)
	if action := tt.Process(0.5); action != ActionNone {
		t.Fatalf("manually paused controller should not pause again, got %v", action)
	}

	tt.SetPaused(false)
	*now = now.Add(time.Hour)
	if action := tt.Process(0.001); action != ActionNone {
		t.Fatalf("resumed controller should not resume again, got %v", action)
	}
}

func TestTurnTakerReset(t *testing.T) {
	tt, _ := newTestTurnTaker(0.02, 800*time.Millisecond)

	tt.Process(0.5)
	tt.Reset()
	if tt.Paused() {
		t.Fatal("reset should clear paused state")
	}
	if action := tt.Process(0.5); action != ActionPause {
		t.Fatalf("expected pause after reset, got %v", action)
	}
}
