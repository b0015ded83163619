package audio

import (
	"github.com/gordonklaus/portaudio"
)

// Source produces raw float32 sample blocks at a fixed hardware rate.
type Source interface {
	SampleRate() int
	Start() error
	Stop() error
	// Read blocks until the next sample block is available. The returned
	// slice is owned by the caller.
	Read() ([]float32, error)
}

// Mic wraps PortAudio with a configurable buffer size.
type Mic struct {
	stream *portaudio.Stream
	buf    []float32
	rate   int
}

// NewMic opens a PortAudio capture stream with the given sample rate and
// buffer size (in frames). portaudio.Initialize must have been called.
func NewMic(sampleRate, framesPerBuffer int) (*Mic, error) {
	buf := make([]float32, framesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(sampleRate), framesPerBuffer, buf)
	if err != nil {
		return nil, err
	}
	return &Mic{stream: stream, buf: buf, rate: sampleRate}, nil
}

func (m *Mic) SampleRate() int { return m.rate }
func (m *Mic) Start() error    { return m.stream.Start() }
func (m *Mic) Stop() error     { return m.stream.Stop() }

func (m *Mic) Read() ([]float32, error) {
	if err := m.stream.Read(); err != nil {
		return nil, err
	}
	out := make([]float32, len(m.buf))
	copy(out, m.buf)
	return out, nil
}

// Close releases the underlying stream.
func (m *Mic) Close() error {
	return m.stream.Close()
}
