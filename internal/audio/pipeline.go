package audio

import "encoding/base64"

// Chunk is one ~100ms span of captured audio, downsampled to the target
// rate and ready for the wire.
type Chunk struct {
	PCM     []byte // 16-bit little-endian PCM at the target rate
	Payload string // base64 of PCM
	RMS     float64
}

// Pipeline accumulates raw float32 samples at the device rate and drains
// them into fixed-cadence encoded chunks at the target rate. Between calls
// the residual buffer is always shorter than one chunk span.
type Pipeline struct {
	srcRate  int
	dstRate  int
	chunkLen int // samples per span at the source rate
	buf      []float32
}

func NewPipeline(srcRate, dstRate int) *Pipeline {
	chunkLen := srcRate / 10
	if chunkLen < 1 {
		chunkLen = 1
	}
	return &Pipeline{
		srcRate:  srcRate,
		dstRate:  dstRate,
		chunkLen: chunkLen,
	}
}

// Push appends a raw sample block and returns every chunk that became ready.
// At the usual block sizes this is zero or one chunk per call.
func (p *Pipeline) Push(block []float32) []Chunk {
	p.buf = append(p.buf, block...)

	var chunks []Chunk
	for len(p.buf) >= p.chunkLen {
		down := Downsample(p.buf[:p.chunkLen], p.srcRate, p.dstRate)
		pcm := EncodePCM16(down)
		chunks = append(chunks, Chunk{
			PCM:     pcm,
			Payload: base64.StdEncoding.EncodeToString(pcm),
			RMS:     RMS(down),
		})
		p.buf = append(p.buf[:0], p.buf[p.chunkLen:]...)
	}
	return chunks
}

// Pending returns the number of buffered samples not yet drained.
func (p *Pipeline) Pending() int {
	return len(p.buf)
}

// Reset discards any buffered samples.
func (p *Pipeline) Reset() {
	p.buf = p.buf[:0]
}
