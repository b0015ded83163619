package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nvoss/sonara/internal/storage"
	"github.com/nvoss/sonara/internal/transcript"
)

type summaryUpdate struct {
	Summary string
	Status  string
}

type fakeStore struct {
	mu sync.Mutex

	created   []string
	ended     []string
	audioPath string
	messages  map[string][]transcript.Message
	updates   []summaryUpdate

	createErr error
	appendErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{messages: make(map[string][]transcript.Message)}
}

func (s *fakeStore) CreateSession(id string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	s.created = append(s.created, id)
	return nil
}

func (s *fakeStore) EndSession(id string, _ time.Time, audioPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ended = append(s.ended, id)
	s.audioPath = audioPath
	return nil
}

func (s *fakeStore) AppendMessage(sessionID string, msg transcript.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appendErr != nil {
		return s.appendErr
	}
	s.messages[sessionID] = append(s.messages[sessionID], msg)
	return nil
}

func (s *fakeStore) GetMessages(sessionID string) ([]transcript.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.messages[sessionID], nil
}

func (s *fakeStore) UpdateSummary(_, summary, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, summaryUpdate{Summary: summary, Status: status})
	return nil
}

type fakeSummarizer struct {
	summary    string
	err        error
	transcript string
}

func (f *fakeSummarizer) Summarize(_ context.Context, _, text string) (string, error) {
	f.transcript = text
	return f.summary, f.err
}

type fakeArchive struct {
	appended []transcript.Message
	err      error
}

func (a *fakeArchive) Append(msg transcript.Message) error {
	if a.err != nil {
		return a.err
	}
	a.appended = append(a.appended, msg)
	return nil
}

func finalMessage(role transcript.Role, content string) transcript.Message {
	return transcript.Message{
		ID:        "m-" + content,
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
}

func TestHandleMessageStartsSessionLazily(t *testing.T) {
	store := newFakeStore()
	m := NewManager(store, nil, nil, nil)

	if m.Active() != "" {
		t.Fatal("expected no session before the first message")
	}

	if err := m.HandleMessage(finalMessage(transcript.RoleUser, "hello")); err != nil {
		t.Fatalf("HandleMessage failed: %v", err)
	}

	sessionID := m.Active()
	if sessionID == "" {
		t.Fatal("expected a session after the first message")
	}
	if len(store.created) != 1 {
		t.Fatalf("expected 1 created session, got %d", len(store.created))
	}

	if err := m.HandleMessage(finalMessage(transcript.RoleAssistant, "hi there")); err != nil {
		t.Fatalf("HandleMessage failed: %v", err)
	}
	if m.Active() != sessionID {
		t.Fatal("second message must not open a new session")
	}
	if len(store.created) != 1 {
		t.Fatalf("expected still 1 created session, got %d", len(store.created))
	}
	if len(store.messages[sessionID]) != 2 {
		t.Fatalf("expected 2 persisted messages, got %d", len(store.messages[sessionID]))
	}
}

func TestHandleMessageIgnoresInterimAndEmpty(t *testing.T) {
	store := newFakeStore()
	m := NewManager(store, nil, nil, nil)

	interim := finalMessage(transcript.RoleAssistant, "partial")
	interim.Interim = true
	if err := m.HandleMessage(interim); err != nil {
		t.Fatalf("HandleMessage failed: %v", err)
	}
	if err := m.HandleMessage(finalMessage(transcript.RoleUser, "   ")); err != nil {
		t.Fatalf("HandleMessage failed: %v", err)
	}

	if m.Active() != "" {
		t.Fatal("interim and empty messages must not open a session")
	}
	if len(store.created) != 0 {
		t.Fatalf("expected no created sessions, got %d", len(store.created))
	}
}

func TestHandleMessageCreateFailureResets(t *testing.T) {
	store := newFakeStore()
	store.createErr = errors.New("disk full")
	m := NewManager(store, nil, nil, nil)

	if err := m.HandleMessage(finalMessage(transcript.RoleUser, "hello")); err == nil {
		t.Fatal("expected error when session creation fails")
	}
	if m.Active() != "" {
		t.Fatal("failed creation must not leave a dangling session")
	}

	// A later message retries cleanly.
	store.createErr = nil
	if err := m.HandleMessage(finalMessage(transcript.RoleUser, "again")); err != nil {
		t.Fatalf("HandleMessage after recovery failed: %v", err)
	}
	if m.Active() == "" {
		t.Fatal("expected a session after recovery")
	}
}

func TestArchiveErrorDoesNotFailHandle(t *testing.T) {
	store := newFakeStore()
	archive := &fakeArchive{err: errors.New("read-only fs")}
	m := NewManager(store, archive, nil, nil)

	if err := m.HandleMessage(finalMessage(transcript.RoleUser, "hello")); err != nil {
		t.Fatalf("archive failure must not fail HandleMessage: %v", err)
	}
	if len(store.messages[m.Active()]) != 1 {
		t.Fatal("message must still be persisted when the archive fails")
	}
}

func TestEndWithoutSession(t *testing.T) {
	m := NewManager(newFakeStore(), nil, nil, nil)

	if err := m.End(context.Background()); !errors.Is(err, ErrNoActiveSession) {
		t.Fatalf("expected ErrNoActiveSession, got %v", err)
	}
}

func TestEndClosesSessionAndSummarizes(t *testing.T) {
	store := newFakeStore()
	summarizer := &fakeSummarizer{summary: "## Session notes\n- went well"}
	m := NewManager(store, nil, summarizer, nil)

	if err := m.HandleMessage(finalMessage(transcript.RoleUser, "I slept badly")); err != nil {
		t.Fatalf("HandleMessage failed: %v", err)
	}
	if err := m.HandleMessage(finalMessage(transcript.RoleAssistant, "Tell me more.")); err != nil {
		t.Fatalf("HandleMessage failed: %v", err)
	}
	sessionID := m.Active()
	m.SetAudioPath("data/audio/u1.wav")

	if err := m.End(context.Background()); err != nil {
		t.Fatalf("End failed: %v", err)
	}

	if m.Active() != "" {
		t.Fatal("expected no active session after End")
	}
	if len(store.ended) != 1 || store.ended[0] != sessionID {
		t.Fatalf("unexpected ended sessions %v", store.ended)
	}
	if store.audioPath != "data/audio/u1.wav" {
		t.Fatalf("unexpected audio path %q", store.audioPath)
	}

	if summarizer.transcript == "" {
		t.Fatal("summarizer should receive the rendered transcript")
	}

	if len(store.updates) != 2 {
		t.Fatalf("expected running then completed updates, got %v", store.updates)
	}
	if store.updates[0].Status != storage.SummaryRunning {
		t.Fatalf("first update status = %q", store.updates[0].Status)
	}
	if store.updates[1].Status != storage.SummaryCompleted || store.updates[1].Summary != summarizer.summary {
		t.Fatalf("final update = %+v", store.updates[1])
	}
}

func TestEndWithoutSummarizerMarksCompleted(t *testing.T) {
	store := newFakeStore()
	m := NewManager(store, nil, nil, nil)

	if err := m.HandleMessage(finalMessage(transcript.RoleUser, "hello")); err != nil {
		t.Fatalf("HandleMessage failed: %v", err)
	}
	if err := m.End(context.Background()); err != nil {
		t.Fatalf("End failed: %v", err)
	}

	if len(store.updates) != 1 || store.updates[0].Status != storage.SummaryCompleted {
		t.Fatalf("expected a single completed update, got %v", store.updates)
	}
}

func TestEndSummaryFailureMarksFailed(t *testing.T) {
	store := newFakeStore()
	summarizer := &fakeSummarizer{err: errors.New("api down")}
	m := NewManager(store, nil, summarizer, nil)

	if err := m.HandleMessage(finalMessage(transcript.RoleUser, "hello")); err != nil {
		t.Fatalf("HandleMessage failed: %v", err)
	}
	if err := m.End(context.Background()); err != nil {
		t.Fatalf("End should not fail on summary errors: %v", err)
	}

	last := store.updates[len(store.updates)-1]
	if last.Status != storage.SummaryFailed {
		t.Fatalf("expected failed status, got %+v", last)
	}
}
