package audio

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const (
	defaultSampleRate = 16000
	pcmChannels       = 1
	pcmBitDepth       = 16
)

// Recorder is the record-then-upload fallback for runtimes without a
// streaming capture graph: it accumulates one complete utterance of PCM16
// audio in memory, then hands it back as a single base64 payload. If an
// audio directory is configured, a WAV copy of each utterance is kept there.
type Recorder struct {
	audioDir string

	mu          sync.Mutex
	utteranceID string
	sampleRate  int
	buf         bytes.Buffer
	active      bool
}

func NewRecorder(audioDir string) *Recorder {
	return &Recorder{audioDir: audioDir, sampleRate: defaultSampleRate}
}

func (r *Recorder) SetSampleRate(sampleRate int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if sampleRate > 0 {
		r.sampleRate = sampleRate
	}
}

// StartUtterance begins capturing a new utterance, discarding any capture
// already in progress.
func (r *Recorder) StartUtterance(utteranceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.audioDir != "" {
		if err := os.MkdirAll(r.audioDir, 0o755); err != nil {
			return fmt.Errorf("create audio directory: %w", err)
		}
	}

	r.utteranceID = utteranceID
	r.buf.Reset()
	r.active = true
	return nil
}

// Write appends PCM16 bytes to the current utterance. Writes outside an
// active utterance are dropped so callers can tee unconditionally.
func (r *Recorder) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.active {
		return len(p), nil
	}
	return r.buf.Write(p)
}

// Recording reports whether an utterance capture is in progress.
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// StopUtterance finalizes the capture and returns the base64 payload plus
// the path of the WAV copy, if one was written. Stopping without an active
// utterance returns empty values.
func (r *Recorder) StopUtterance() (payload string, wavPath string, err error) {
	r.mu.Lock()
	if !r.active {
		r.mu.Unlock()
		return "", "", nil
	}

	utteranceID := r.utteranceID
	sampleRate := r.sampleRate
	pcm := make([]byte, r.buf.Len())
	copy(pcm, r.buf.Bytes())

	r.utteranceID = ""
	r.buf.Reset()
	r.active = false
	r.mu.Unlock()

	payload = base64.StdEncoding.EncodeToString(pcm)

	if r.audioDir != "" && len(pcm) > 0 {
		wavPath = filepath.Join(r.audioDir, utteranceID+".wav")
		if err := writeWav(wavPath, pcm, sampleRate); err != nil {
			return "", "", fmt.Errorf("write wav copy: %w", err)
		}
	}

	return payload, wavPath, nil
}

func writeWav(wavPath string, pcmData []byte, sampleRate int) error {
	out, err := os.OpenFile(wavPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open wav output: %w", err)
	}
	defer out.Close()

	header, err := wavHeader(len(pcmData), sampleRate, pcmChannels, pcmBitDepth)
	if err != nil {
		return fmt.Errorf("build wav header: %w", err)
	}

	if _, err := out.Write(header); err != nil {
		return fmt.Errorf("write wav header: %w", err)
	}
	if _, err := out.Write(pcmData); err != nil {
		return fmt.Errorf("write wav payload: %w", err)
	}

	return nil
}

func wavHeader(dataSize, sampleRate, channels, bitDepth int) ([]byte, error) {
	byteRate := sampleRate * channels * bitDepth / 8
	blockAlign := channels * bitDepth / 8
	chunkSize := 36 + dataSize

	buf := bytes.NewBuffer(make([]byte, 0, 44))
	if _, err := buf.WriteString("RIFF"); err != nil {
		return nil, err
	}
	if err := binary.Write(buf, binary.LittleEndian, uint32(chunkSize)); err != nil {
		return nil, err
	}
	if _, err := buf.WriteString("WAVE"); err != nil {
		return nil, err
	}
	if _, err := buf.WriteString("fmt "); err != nil {
		return nil, err
	}
	if err := binary.Write(buf, binary.LittleEndian, uint32(16)); err != nil {
		return nil, err
	}
	if err := binary.Write(buf, binary.LittleEndian, uint16(1)); err != nil {
		return nil, err
	}
	if err := binary.Write(buf, binary.LittleEndian, uint16(channels)); err != nil {
		return nil, err
	}
	if err := binary.Write(buf, binary.LittleEndian, uint32(sampleRate)); err != nil {
		return nil, err
	}
	if err := binary.Write(buf, binary.LittleEndian, uint32(byteRate)); err != nil {
		return nil, err
	}
	if err := binary.Write(buf, binary.LittleEndian, uint16(blockAlign)); err != nil {
		return nil, err
	}
	if err := binary.Write(buf, binary.LittleEndian, uint16(bitDepth)); err != nil {
		return nil, err
	}
	if _, err := buf.WriteString("data"); err != nil {
		return nil, err
	}
	if err := binary.Write(buf, binary.LittleEndian, uint32(dataSize)); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
