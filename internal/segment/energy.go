package segment

import (
	"encoding/binary"
	"math"
)

// computeRMS returns the root-mean-square energy of a 16-bit signed
// little-endian PCM buffer. Returns 0 for buffers shorter than one sample.
// The result is expressed in the same units as PCM sample values (0–32 767).
func computeRMS(pcm []byte) float64 {
	n := len(pcm) / 2 // number of 16-bit samples
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		sample := int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
		v := float64(sample)
		sum += v * v
	}
	return math.Sqrt(sum / float64(n))
}

// noiseFloor tracks an exponential moving average of the energy observed in
// non-speech frames and derives an activation threshold from it. This adapts
// the segmenter to rooms with different ambient noise levels.
type noiseFloor struct {
	floor   float64
	damping float64
	ratio   float64
}

// newNoiseFloor seeds the floor so that the initial derived threshold equals
// the configured static threshold.
func newNoiseFloor(initialThreshold, damping, ratio float64) *noiseFloor {
	return &noiseFloor{
		floor:   initialThreshold / ratio,
		damping: damping,
		ratio:   ratio,
	}
}

// observe folds the energy of a silent frame into the floor estimate.
// Speech frames must not be fed here or the floor would chase the talker.
func (n *noiseFloor) observe(rms float64) {
	n.floor = n.floor*(1-n.damping) + rms*n.damping
}

// threshold returns the current activation threshold.
func (n *noiseFloor) threshold() float64 {
	return n.floor * n.ratio
}
