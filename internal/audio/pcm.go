package audio

import (
	"encoding/binary"
	"math"
)

// Downsample converts samples captured at srcRate into dstRate using
// bucket-average decimation: each output sample is the arithmetic mean of
// every input sample whose time span maps to it. The output length is
// round(len * dstRate / srcRate).
func Downsample(samples []float32, srcRate, dstRate int) []float32 {
	if srcRate <= 0 || dstRate <= 0 || len(samples) == 0 {
		return nil
	}
	if srcRate == dstRate {
		out := make([]float32, len(samples))
		copy(out, samples)
		return out
	}

	ratio := float64(srcRate) / float64(dstRate)
	outLen := int(math.Round(float64(len(samples)) / ratio))
	if outLen == 0 {
		return nil
	}

	out := make([]float32, outLen)
	for i := range out {
		start := int(float64(i) * ratio)
		end := int(float64(i+1) * ratio)
		if end > len(samples) {
			end = len(samples)
		}
		if start >= end {
			if start >= len(samples) {
				start = len(samples) - 1
			}
			end = start + 1
		}

		var sum float64
		for _, s := range samples[start:end] {
			sum += float64(s)
		}
		out[i] = float32(sum / float64(end-start))
	}
	return out
}

// EncodePCM16 converts float32 samples in [-1, 1] to 16-bit little-endian PCM.
// Out-of-range samples are clamped.
func EncodePCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		v := int16(math.Round(float64(s) * 32767))
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}
	return out
}

// DecodePCM16 converts 16-bit little-endian PCM back to float32 samples.
// A trailing odd byte is ignored.
func DecodePCM16(data []byte) []float32 {
	out := make([]float32, len(data)/2)
	for i := range out {
		v := int16(binary.LittleEndian.Uint16(data[i*2:]))
		out[i] = float32(v) / 32767
	}
	return out
}

// RMS returns the root-mean-square energy of the samples, in [0, 1] for
// normalized input.
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}
