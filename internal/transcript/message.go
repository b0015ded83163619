package transcript

import (
	"fmt"
	"strings"
	"time"
)

// Role identifies the speaker of a conversational turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one normalized conversational turn. Messages are immutable once
// emitted; an interim message is superseded by later ones in the consumer's
// own list, never mutated here.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Interim   bool      `json:"interim,omitempty"`
}

// Final reports whether the message is a finalized turn rather than a
// partial transcript.
func (m Message) Final() bool {
	return !m.Interim
}

func (m Message) FormatMarkdown() string {
	ts := m.Timestamp.Format("15:04:05")
	speaker := "User"
	if m.Role == RoleAssistant {
		speaker = "Assistant"
	}
	return fmt.Sprintf("**[%s] %s:** %s", ts, speaker, strings.TrimSpace(m.Content))
}

// Render joins finalized messages into a plain-text transcript, one
// "role: content" line per turn. Interim messages are skipped.
func Render(messages []Message) string {
	var b strings.Builder
	for _, m := range messages {
		if m.Interim || strings.TrimSpace(m.Content) == "" {
			continue
		}
		b.WriteString(string(m.Role))
		b.WriteString(": ")
		b.WriteString(strings.TrimSpace(m.Content))
		b.WriteString("\n")
	}
	return b.String()
}
