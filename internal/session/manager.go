package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nvoss/sonara/internal/storage"
	"github.com/nvoss/sonara/internal/transcript"
)

// Manager books one conversation at a time: it lazily opens a session row
// when the first finalized message arrives, persists every turn, and on End
// closes the row and generates the session summary.
type Manager struct {
	store      Store
	archive    Archiver
	summarizer Summarizer
	log        *zap.Logger

	mu            sync.Mutex
	sessionID     string
	startedAt     time.Time
	lastAudioPath string
}

func NewManager(store Store, archive Archiver, summarizer Summarizer, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		store:      store,
		archive:    archive,
		summarizer: summarizer,
		log:        log,
	}
}

// HandleMessage persists one finalized turn, starting a session on the
// first one. Interim and empty messages are ignored.
func (m *Manager) HandleMessage(msg transcript.Message) error {
	if msg.Interim || strings.TrimSpace(msg.Content) == "" {
		return nil
	}

	ts := msg.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	if err := m.ensureSessionStarted(ts); err != nil {
		return err
	}

	sessionID := m.Active()
	if err := m.store.AppendMessage(sessionID, msg); err != nil {
		return fmt.Errorf("append message: %w", err)
	}

	if m.archive != nil {
		if err := m.archive.Append(msg); err != nil {
			m.log.Warn("archive message", zap.Error(err))
		}
	}
	return nil
}

// SetAudioPath records the latest recorded utterance file; it is stored on
// the session row when the session ends.
func (m *Manager) SetAudioPath(path string) {
	if strings.TrimSpace(path) == "" {
		return
	}
	m.mu.Lock()
	m.lastAudioPath = path
	m.mu.Unlock()
}

// Active returns the current session ID, or "" when none is open.
func (m *Manager) Active() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessionID
}

// End closes the active session and generates its summary before returning.
// Summary failures are recorded on the session row rather than returned.
func (m *Manager) End(ctx context.Context) error {
	m.mu.Lock()
	sessionID := m.sessionID
	startedAt := m.startedAt
	audioPath := m.lastAudioPath
	m.sessionID = ""
	m.startedAt = time.Time{}
	m.lastAudioPath = ""
	m.mu.Unlock()

	if sessionID == "" {
		return ErrNoActiveSession
	}

	endedAt := time.Now().UTC()
	if err := m.store.EndSession(sessionID, endedAt, audioPath); err != nil {
		return fmt.Errorf("end session: %w", err)
	}

	m.log.Info("session ended",
		zap.String("session_id", sessionID),
		zap.Duration("duration", endedAt.Sub(startedAt)))

	m.generateSummary(ctx, sessionID)
	return nil
}

func (m *Manager) ensureSessionStarted(now time.Time) error {
	m.mu.Lock()
	if m.sessionID != "" {
		m.mu.Unlock()
		return nil
	}
	sessionID := uuid.NewString()
	m.sessionID = sessionID
	m.startedAt = now.UTC()
	m.mu.Unlock()

	if err := m.store.CreateSession(sessionID, now.UTC()); err != nil {
		m.mu.Lock()
		m.sessionID = ""
		m.startedAt = time.Time{}
		m.mu.Unlock()
		return fmt.Errorf("create session: %w", err)
	}

	m.log.Info("session started", zap.String("session_id", sessionID))
	return nil
}

func (m *Manager) generateSummary(ctx context.Context, sessionID string) {
	if m.summarizer == nil {
		_ = m.store.UpdateSummary(sessionID, "", storage.SummaryCompleted)
		return
	}

	_ = m.store.UpdateSummary(sessionID, "", storage.SummaryRunning)

	messages, err := m.store.GetMessages(sessionID)
	if err != nil {
		m.log.Warn("load transcript for summary", zap.Error(err))
		_ = m.store.UpdateSummary(sessionID, "", storage.SummaryFailed)
		return
	}

	summaryText, err := m.summarizer.Summarize(ctx, sessionID, transcript.Render(messages))
	if err != nil {
		m.log.Warn("generate summary", zap.Error(err))
		_ = m.store.UpdateSummary(sessionID, "", storage.SummaryFailed)
		return
	}

	if err := m.store.UpdateSummary(sessionID, summaryText, storage.SummaryCompleted); err != nil {
		m.log.Warn("store summary", zap.Error(err))
	}
}
