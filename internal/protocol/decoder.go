package protocol

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nvoss/sonara/internal/transcript"
)

// EventKind discriminates the events a decoded frame can produce.
type EventKind string

const (
	EventMessage  EventKind = "message"
	EventInterim  EventKind = "interim"
	EventError    EventKind = "error"
	EventMetadata EventKind = "metadata"
)

// Event is the normalized result of decoding one inbound frame.
type Event struct {
	Kind     EventKind
	Message  transcript.Message // set for EventMessage and EventInterim
	ErrText  string             // set for EventError
	Metadata json.RawMessage    // set for EventMetadata, opaque passthrough
}

// Decoder normalizes the service's loosely shaped inbound frames into
// Events. The schema varies across message types and service versions, so
// every branch funnels through ExtractText rather than bespoke parsing.
//
// At most one event is produced per frame. Frames that carry no text and
// are neither metadata nor errors decode to nothing.
type Decoder struct {
	mu   sync.Mutex
	seed string

	now   func() time.Time
	newID func() string
}

func NewDecoder() *Decoder {
	return &Decoder{
		now:   time.Now,
		newID: func() string { return uuid.NewString() },
	}
}

// SetSeed records the system prompt text sent as an assistant seed so an
// echoed copy arriving back as assistant speech can be recognized and
// dropped. The seed is cleared after one suppression.
func (d *Decoder) SetSeed(text string) {
	d.mu.Lock()
	d.seed = text
	d.mu.Unlock()
}

// Decode parses one inbound frame. The second return is false when the
// frame produced no event (unknown non-textual shape, or suppressed echo).
func (d *Decoder) Decode(raw []byte) (Event, bool) {
	var frame map[string]any
	if err := json.Unmarshal(raw, &frame); err != nil {
		return Event{}, false
	}

	typ, _ := frame["type"].(string)

	if typ == "chat_metadata" {
		return Event{Kind: EventMetadata, Metadata: json.RawMessage(raw)}, true
	}

	if isInterim(frame, typ) {
		if text, ok := interimText(frame); ok {
			return d.messageEvent(transcript.RoleAssistant, text, true), true
		}
		return Event{}, false
	}

	if typ == "error" {
		return Event{Kind: EventError, ErrText: errorText(frame, raw)}, true
	}

	if text, ok := userText(frame, typ); ok {
		return d.messageEvent(transcript.RoleUser, text, false), true
	}

	if text, ok := assistantText(frame, typ); ok {
		if d.suppressEcho(text) {
			return Event{}, false
		}
		return d.messageEvent(transcript.RoleAssistant, text, false), true
	}

	return d.fallback(frame, typ)
}

// fallback covers frames no known rule matched: any text-shaped field in
// the checked locations is taken, with the role inferred from type and
// role hints.
func (d *Decoder) fallback(frame map[string]any, typ string) (Event, bool) {
	for _, key := range []string{"output", "content", "text", "message", "transcript"} {
		text, ok := ExtractText(frame[key])
		if !ok {
			continue
		}
		if userish(typ) || explicitRole(frame) == "user" {
			return d.messageEvent(transcript.RoleUser, text, false), true
		}
		if d.suppressEcho(text) {
			return Event{}, false
		}
		return d.messageEvent(transcript.RoleAssistant, text, false), true
	}
	return Event{}, false
}

// suppressEcho reports whether text is exactly the recorded seed; matching
// consumes the seed so only one echo is dropped.
func (d *Decoder) suppressEcho(text string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.seed != "" && text == d.seed {
		d.seed = ""
		return true
	}
	return false
}

func (d *Decoder) messageEvent(role transcript.Role, text string, interim bool) Event {
	kind := EventMessage
	if interim {
		kind = EventInterim
	}
	return Event{
		Kind: kind,
		Message: transcript.Message{
			ID:        d.newID(),
			Role:      role,
			Content:   text,
			Timestamp: d.now().UTC(),
			Interim:   interim,
		},
	}
}

func isInterim(frame map[string]any, typ string) bool {
	if typ == "interim_output" || typ == "interim_transcript" {
		return true
	}
	for _, key := range []string{"is_interim", "isInterim", "interim"} {
		if flag, ok := frame[key].(bool); ok && flag {
			return true
		}
	}
	return false
}

func interimText(frame map[string]any) (string, bool) {
	for _, key := range []string{"interim_output", "interim_transcript", "text", "content", "output", "message"} {
		if text, ok := ExtractText(frame[key]); ok {
			return text, true
		}
	}
	return "", false
}

func userText(frame map[string]any, typ string) (string, bool) {
	for _, key := range []string{"user_input", "transcript", "user_transcript", "input_audio_transcription", "user_message"} {
		if text, ok := ExtractText(frame[key]); ok {
			return text, true
		}
	}

	if msg, ok := frame["message"].(map[string]any); ok && roleOf(msg) == "user" {
		if text, ok := ExtractText(msg["content"]); ok {
			return text, true
		}
		if text, ok := ExtractText(msg); ok {
			return text, true
		}
	}

	// Frames whose type itself marks them as user speech carry the text at
	// the top level, e.g. {type: "user_message", content: "..."}.
	if userish(typ) {
		for _, key := range []string{"content", "text"} {
			if text, ok := ExtractText(frame[key]); ok {
				return text, true
			}
		}
	}

	return "", false
}

func assistantText(frame map[string]any, typ string) (string, bool) {
	if userish(typ) {
		return "", false
	}

	if text, ok := ExtractText(frame["output"]); ok {
		return text, true
	}

	if msg, ok := frame["message"].(map[string]any); ok {
		role := roleOf(msg)
		if role == "" || role == "assistant" {
			if text, ok := ExtractText(msg["content"]); ok {
				return text, true
			}
			if text, ok := ExtractText(msg["text"]); ok {
				return text, true
			}
		}
	}

	if explicitRole(frame) == "user" {
		return "", false
	}
	if text, ok := ExtractText(frame["content"]); ok {
		return text, true
	}

	return "", false
}

func errorText(frame map[string]any, raw []byte) string {
	for _, key := range []string{"message", "error", "description"} {
		if text, ok := ExtractText(frame[key]); ok {
			return text
		}
	}
	return string(raw)
}

func userish(typ string) bool {
	return strings.Contains(typ, "user") || strings.Contains(typ, "transcript")
}

func roleOf(msg map[string]any) string {
	role, _ := msg["role"].(string)
	return role
}

func explicitRole(frame map[string]any) string {
	if role, ok := frame["role"].(string); ok {
		return role
	}
	if msg, ok := frame["message"].(map[string]any); ok {
		return roleOf(msg)
	}
	return ""
}
