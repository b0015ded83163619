package session

import (
	"context"
	"time"

	"github.com/nvoss/sonara/internal/transcript"
)

type Store interface {
	CreateSession(id string, startedAt time.Time) error
	EndSession(id string, endedAt time.Time, audioPath string) error
	AppendMessage(sessionID string, msg transcript.Message) error
	GetMessages(sessionID string) ([]transcript.Message, error)
	UpdateSummary(sessionID, summary, status string) error
}

// Archiver keeps a plain-text copy of the conversation alongside the store.
type Archiver interface {
	Append(msg transcript.Message) error
}

type Summarizer interface {
	Summarize(ctx context.Context, sessionID, transcript string) (string, error)
}
