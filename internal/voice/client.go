package voice

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/nvoss/sonara/internal/audio"
	"github.com/nvoss/sonara/internal/protocol"
	"github.com/nvoss/sonara/internal/transcript"
)

const writeWait = 10 * time.Second

// Options configures a Client. Zero values fall back to defaults.
type Options struct {
	// Endpoint is the wss URL of the voice service chat endpoint.
	Endpoint string

	// APIKey is embedded in the connection URI as a query parameter.
	APIKey string

	// SampleRate is the wire PCM rate. Default 16000.
	SampleRate int

	// MaxReconnectAttempts bounds reconnection after an abnormal close.
	// Default 3.
	MaxReconnectAttempts int

	// ReconnectBaseDelay is multiplied by the attempt number (linear
	// backoff). Default 2s.
	ReconnectBaseDelay time.Duration

	// SpeechThreshold is the RMS level treated as user speech. Default 0.02.
	SpeechThreshold float64

	// SilenceWindow is how long the user must stay quiet before the
	// assistant is resumed. Default 800ms.
	SilenceWindow time.Duration

	// Source is the microphone capture stream. Nil disables mic streaming;
	// the record-then-upload fallback still works.
	Source audio.Source

	// AudioDir, when set, keeps a WAV copy of each recorded utterance.
	AudioDir string
}

func (o *Options) applyDefaults() {
	if o.SampleRate <= 0 {
		o.SampleRate = 16000
	}
	if o.MaxReconnectAttempts <= 0 {
		o.MaxReconnectAttempts = 3
	}
	if o.ReconnectBaseDelay <= 0 {
		o.ReconnectBaseDelay = 2 * time.Second
	}
	if o.SpeechThreshold <= 0 {
		o.SpeechThreshold = 0.02
	}
	if o.SilenceWindow <= 0 {
		o.SilenceWindow = 800 * time.Millisecond
	}
}

// Client owns one live session against the remote voice service: the
// socket, the capture pipeline, the inbound decoder and the turn-taking
// controller. One Client supports one active conversation; construct a new
// one per conversation rather than sharing.
type Client struct {
	opts     Options
	log      *zap.Logger
	events   *emitter
	decoder  *protocol.Decoder
	turns    *TurnTaker
	recorder *audio.Recorder

	dial func(ctx context.Context, rawURL string) (*websocket.Conn, error)

	mu             sync.Mutex
	conn           *websocket.Conn
	connected      bool
	closing        bool
	configID       string
	prompt         string
	reconnects     int
	reconnectTimer *time.Timer

	streaming  bool
	pipeline   *audio.Pipeline
	stopStream chan struct{}
	streamDone chan struct{}

	writeMu sync.Mutex
}

func NewClient(opts Options, log *zap.Logger) *Client {
	opts.applyDefaults()
	if log == nil {
		log = zap.NewNop()
	}

	recorder := audio.NewRecorder(opts.AudioDir)
	recorder.SetSampleRate(opts.SampleRate)

	return &Client{
		opts:     opts,
		log:      log,
		events:   newEmitter(),
		decoder:  protocol.NewDecoder(),
		turns:    NewTurnTaker(opts.SpeechThreshold, opts.SilenceWindow),
		recorder: recorder,
		dial: func(ctx context.Context, rawURL string) (*websocket.Conn, error) {
			conn, resp, err := websocket.DefaultDialer.DialContext(ctx, rawURL, nil)
			if resp != nil && resp.Body != nil {
				_ = resp.Body.Close()
			}
			return conn, err
		},
	}
}

// Connect opens the session and performs the configuration handshake. It
// returns once the socket is open; there is no default timeout on the dial
// beyond what ctx imposes. Calling Connect while connected force-closes the
// prior connection first. A non-empty systemPrompt is sent as an assistant
// seed and recorded so its echo can be suppressed.
func (c *Client) Connect(ctx context.Context, configID, systemPrompt string) error {
	c.mu.Lock()
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	prior := c.conn
	c.conn = nil
	c.connected = false
	c.closing = false
	c.configID = configID
	c.prompt = systemPrompt
	dial := c.dial
	c.mu.Unlock()

	if prior != nil {
		_ = prior.Close()
	}

	endpoint, err := c.endpoint()
	if err != nil {
		return err
	}

	conn, err := dial(ctx, endpoint)
	if err != nil {
		return fmt.Errorf("dial voice service: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.reconnects = 0
	c.mu.Unlock()
	c.turns.Reset()

	if err := c.send(protocol.NewSessionSettings(configID, c.opts.SampleRate)); err != nil {
		c.teardownConn(conn)
		return fmt.Errorf("send session settings: %w", err)
	}

	if systemPrompt != "" {
		if err := c.send(protocol.NewAssistantInput(systemPrompt)); err != nil {
			c.teardownConn(conn)
			return fmt.Errorf("send assistant seed: %w", err)
		}
		c.decoder.SetSeed(systemPrompt)
	}

	go c.readLoop(conn)

	c.log.Info("connected to voice service", zap.String("config_id", configID))
	c.events.emit(EventConnected, nil)
	return nil
}

// Disconnect tears down the session: pending reconnect timer, mic
// streaming, any in-progress utterance recording, and the socket (closed
// with a normal-closure code). Safe to call any number of times, from any
// state.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.closing = true
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	conn := c.conn
	c.conn = nil
	wasConnected := c.connected
	c.connected = false
	c.mu.Unlock()

	c.StopMicStream()
	if c.recorder.Recording() {
		_, _, _ = c.recorder.StopUtterance()
	}

	if conn != nil {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		_ = conn.Close()
	}

	if wasConnected {
		c.log.Info("disconnected from voice service")
		c.events.emit(EventDisconnected, nil)
	}
}

// Connected reports whether a session is live.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// SendText submits typed user text over the session, the fallback for
// input without audio.
func (c *Client) SendText(text string) error {
	return c.send(protocol.NewUserInput(text))
}

// StartMicStream begins streaming microphone audio over the session.
// It errors without a live session, is a no-op while already streaming,
// and errors when the client has no capture source.
func (c *Client) StartMicStream() error {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return ErrNotConnected
	}
	if c.streaming {
		c.mu.Unlock()
		return nil
	}
	src := c.opts.Source
	if src == nil {
		c.mu.Unlock()
		return ErrNoAudioSource
	}

	c.pipeline = audio.NewPipeline(src.SampleRate(), c.opts.SampleRate)
	c.streaming = true
	stop := make(chan struct{})
	done := make(chan struct{})
	c.stopStream = stop
	c.streamDone = done
	c.mu.Unlock()

	if err := src.Start(); err != nil {
		c.mu.Lock()
		c.streaming = false
		c.mu.Unlock()
		return fmt.Errorf("start capture: %w", err)
	}

	c.events.emit(EventRecordingStarted, nil)
	go c.captureLoop(src, stop, done)
	return nil
}

// StopMicStream tears down the capture graph and clears the accumulation
// buffer. Idempotent.
func (c *Client) StopMicStream() {
	c.mu.Lock()
	if !c.streaming {
		c.mu.Unlock()
		return
	}
	c.streaming = false
	stop := c.stopStream
	done := c.streamDone
	pipeline := c.pipeline
	src := c.opts.Source
	c.mu.Unlock()

	close(stop)
	if src != nil {
		_ = src.Stop()
	}
	<-done

	if pipeline != nil {
		pipeline.Reset()
	}
	c.events.emit(EventRecordingStopped, nil)
}

// PauseStreaming is the manual override: it sends the pause command and
// stops capture outright, unlike the automatic VAD pause which keeps
// capturing so it can detect when to resume.
func (c *Client) PauseStreaming() error {
	if err := c.send(protocol.NewPauseAssistant()); err != nil {
		return err
	}
	c.turns.SetPaused(true)
	c.StopMicStream()
	return nil
}

// ResumeStreaming undoes a manual pause: resume command plus restarting
// capture.
func (c *Client) ResumeStreaming() error {
	if err := c.send(protocol.NewResumeAssistant()); err != nil {
		return err
	}
	c.turns.SetPaused(false)
	return c.StartMicStream()
}

// StartRecording begins the record-then-upload fallback for runtimes
// without streaming capture: audio written to RecordingWriter accumulates
// until StopRecording sends it as one payload.
func (c *Client) StartRecording() error {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return ErrNotConnected
	}
	c.mu.Unlock()

	if err := c.recorder.StartUtterance(uuid.NewString()); err != nil {
		return err
	}
	c.events.emit(EventRecordingStarted, nil)
	return nil
}

// RecordingWriter returns the sink for fallback utterance PCM16 audio.
func (c *Client) RecordingWriter() io.Writer {
	return c.recorder
}

// StopRecording finalizes the fallback capture and transmits it as a
// single audio frame. Returns the path of the WAV copy, if one was kept.
func (c *Client) StopRecording() (string, error) {
	payload, wavPath, err := c.recorder.StopUtterance()
	if err != nil {
		return "", err
	}
	c.events.emit(EventRecordingStopped, nil)

	if payload == "" {
		return wavPath, nil
	}
	if err := c.send(protocol.NewAudioInput(payload, c.opts.SampleRate)); err != nil {
		return wavPath, fmt.Errorf("send recorded audio: %w", err)
	}
	return wavPath, nil
}

// Event subscriptions. Each returns an unsubscribe func.

func (c *Client) OnConnected(fn func()) func() {
	return c.events.on(EventConnected, func(any) { fn() })
}

func (c *Client) OnDisconnected(fn func()) func() {
	return c.events.on(EventDisconnected, func(any) { fn() })
}

func (c *Client) OnMessage(fn func(transcript.Message)) func() {
	return c.events.on(EventMessage, func(v any) { fn(v.(transcript.Message)) })
}

func (c *Client) OnInterimMessage(fn func(transcript.Message)) func() {
	return c.events.on(EventInterimMessage, func(v any) { fn(v.(transcript.Message)) })
}

func (c *Client) OnSpeaking(fn func(string)) func() {
	return c.events.on(EventSpeaking, func(v any) { fn(v.(string)) })
}

func (c *Client) OnRMS(fn func(float64)) func() {
	return c.events.on(EventRMS, func(v any) { fn(v.(float64)) })
}

func (c *Client) OnError(fn func(error)) func() {
	return c.events.on(EventError, func(v any) { fn(v.(error)) })
}

func (c *Client) OnReconnectionFailed(fn func()) func() {
	return c.events.on(EventReconnectionFailed, func(any) { fn() })
}

func (c *Client) OnChatMetadata(fn func(json.RawMessage)) func() {
	return c.events.on(EventChatMetadata, func(v any) { fn(v.(json.RawMessage)) })
}

func (c *Client) OnRecordingStarted(fn func()) func() {
	return c.events.on(EventRecordingStarted, func(any) { fn() })
}

func (c *Client) OnRecordingStopped(fn func()) func() {
	return c.events.on(EventRecordingStopped, func(any) { fn() })
}

// setDial swaps the socket dialer, used by tests to observe or fail
// connection attempts.
func (c *Client) setDial(dial func(ctx context.Context, rawURL string) (*websocket.Conn, error)) {
	c.mu.Lock()
	c.dial = dial
	c.mu.Unlock()
}

func (c *Client) endpoint() (string, error) {
	u, err := url.Parse(c.opts.Endpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint: %w", err)
	}
	q := u.Query()
	q.Set("api_key", c.opts.APIKey)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Client) send(frame any) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return ErrNotConnected
	}

	payload, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

func (c *Client) captureLoop(src audio.Source, stop <-chan struct{}, done chan struct{}) {
	defer close(done)

	for {
		select {
		case <-stop:
			return
		default:
		}

		block, err := src.Read()
		if err != nil {
			select {
			case <-stop:
			default:
				c.events.emit(EventError, fmt.Errorf("capture read: %w", err))
			}
			return
		}

		for _, chunk := range c.pipeline.Push(block) {
			c.handleChunk(chunk)
		}
	}
}

func (c *Client) handleChunk(chunk audio.Chunk) {
	c.events.emit(EventRMS, chunk.RMS)

	switch c.turns.Process(chunk.RMS) {
	case ActionPause:
		if err := c.send(protocol.NewPauseAssistant()); err != nil {
			c.log.Debug("send pause failed", zap.Error(err))
		}
	case ActionResume:
		if err := c.send(protocol.NewResumeAssistant()); err != nil {
			c.log.Debug("send resume failed", zap.Error(err))
		}
	}

	if err := c.send(protocol.NewAudioInput(chunk.Payload, c.opts.SampleRate)); err != nil {
		c.log.Debug("send audio chunk failed", zap.Error(err))
	}
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			c.handleClosed(conn, err)
			return
		}
		c.handleFrame(raw)
	}
}

func (c *Client) handleFrame(raw []byte) {
	ev, ok := c.decoder.Decode(raw)
	if !ok {
		return
	}

	switch ev.Kind {
	case protocol.EventMetadata:
		c.events.emit(EventChatMetadata, ev.Metadata)
	case protocol.EventError:
		c.events.emit(EventError, &ServiceError{Message: ev.ErrText})
	case protocol.EventInterim:
		c.events.emit(EventInterimMessage, ev.Message)
	case protocol.EventMessage:
		if ev.Message.Role == transcript.RoleAssistant {
			c.events.emit(EventSpeaking, ev.Message.Content)
		}
		c.events.emit(EventMessage, ev.Message)
	}
}

// handleClosed runs when the read loop ends. The close path is the sole
// reconnection trigger; a write error elsewhere only surfaces as an error
// event and lets the subsequent close drive recovery, so a single failure
// never schedules two reconnects.
func (c *Client) handleClosed(conn *websocket.Conn, err error) {
	c.mu.Lock()
	if c.conn != conn {
		// Superseded by a newer connection or an explicit Disconnect.
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.connected = false
	closing := c.closing
	configID := c.configID
	prompt := c.prompt
	c.mu.Unlock()

	c.StopMicStream()

	if closing || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		c.events.emit(EventDisconnected, nil)
		return
	}

	c.log.Warn("connection lost", zap.Error(err))
	c.events.emit(EventError, fmt.Errorf("connection closed: %w", err))
	c.events.emit(EventDisconnected, nil)
	c.scheduleReconnect(configID, prompt)
}

func (c *Client) scheduleReconnect(configID, prompt string) {
	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		return
	}
	if c.reconnects >= c.opts.MaxReconnectAttempts {
		c.mu.Unlock()
		c.log.Warn("reconnection attempts exhausted",
			zap.Int("attempts", c.opts.MaxReconnectAttempts))
		c.events.emit(EventReconnectionFailed, nil)
		return
	}
	c.reconnects++
	attempt := c.reconnects
	delay := time.Duration(attempt) * c.opts.ReconnectBaseDelay

	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
	}
	c.reconnectTimer = time.AfterFunc(delay, func() {
		if err := c.Connect(context.Background(), configID, prompt); err != nil {
			c.log.Warn("reconnect attempt failed", zap.Int("attempt", attempt), zap.Error(err))
			c.scheduleReconnect(configID, prompt)
		}
	})
	c.mu.Unlock()

	c.log.Info("reconnect scheduled", zap.Int("attempt", attempt), zap.Duration("delay", delay))
}
