package protocol

// Outbound frame types understood by the voice service.
const (
	TypeSessionSettings = "session_settings"
	TypeAssistantInput  = "assistant_input"
	TypeAudioInput      = "audio_input"
	TypeUserInput       = "user_input"
	TypePauseAssistant  = "pause_assistant_message"
	TypeResumeAssistant = "resume_assistant_message"
)

// EncodingLinear16 is the only wire encoding the client produces.
const EncodingLinear16 = "linear16"

// AudioFormat describes the PCM stream the client will send.
type AudioFormat struct {
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
}

// SessionSettingsFrame is the configuration handshake, sent once
// immediately after connect and before any audio.
type SessionSettingsFrame struct {
	Type     string      `json:"type"`
	ConfigID string      `json:"config_id"`
	Audio    AudioFormat `json:"audio"`
}

func NewSessionSettings(configID string, sampleRate int) SessionSettingsFrame {
	return SessionSettingsFrame{
		Type:     TypeSessionSettings,
		ConfigID: configID,
		Audio: AudioFormat{
			Encoding:   EncodingLinear16,
			SampleRate: sampleRate,
			Channels:   1,
		},
	}
}

// TextFrame carries seed prompts (assistant_input) and typed user text
// (user_input).
type TextFrame struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func NewAssistantInput(text string) TextFrame {
	return TextFrame{Type: TypeAssistantInput, Text: text}
}

func NewUserInput(text string) TextFrame {
	return TextFrame{Type: TypeUserInput, Text: text}
}

// AudioInputFrame carries one base64-encoded PCM16LE chunk.
type AudioInputFrame struct {
	Type       string `json:"type"`
	Data       string `json:"data"`
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
}

func NewAudioInput(payload string, sampleRate int) AudioInputFrame {
	return AudioInputFrame{
		Type:       TypeAudioInput,
		Data:       payload,
		Encoding:   EncodingLinear16,
		SampleRate: sampleRate,
		Channels:   1,
	}
}

// ControlFrame is a bare-type command (pause/resume assistant speech).
type ControlFrame struct {
	Type string `json:"type"`
}

func NewPauseAssistant() ControlFrame {
	return ControlFrame{Type: TypePauseAssistant}
}

func NewResumeAssistant() ControlFrame {
	return ControlFrame{Type: TypeResumeAssistant}
}
