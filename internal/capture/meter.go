// Package capture runs the microphone side of the audio pipeline: it reads
// fixed-size blocks from a capture device, meters them for UI volume and
// voice-activity detection, downsamples them to the model's input rate, and
// ships them to the streaming session as encoded PCM.
package capture

import "math"

// Meter derives a display volume and a voice-activity verdict from the RMS
// amplitude of a sample block.
type Meter struct {
	// Gain scales the raw RMS into the 0..100 display range. RMS values of
	// normal speech sit well below 1.0, so the factor is large.
	Gain float64

	// Threshold is the raw RMS level above which the block counts as voiced.
	Threshold float64
}

// Measure returns the display volume (0..100, clamped) and whether the block
// exceeds the voice-activity threshold. An empty block measures as silent.
func (m Meter) Measure(samples []float32) (volume float64, voiced bool) {
	if len(samples) == 0 {
		return 0, false
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	rms := math.Sqrt(sum / float64(len(samples)))

	volume = rms * m.Gain
	if volume > 100 {
		volume = 100
	}
	return volume, rms > m.Threshold
}
