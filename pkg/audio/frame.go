// Package audio provides the sample-level building blocks of the TutorVox
// pipeline: the [FrameBlock] type that carries normalized audio between
// stages, the block-averaging [Downsample] converter, and the PCM16
// [EncodePCM16]/[DecodePCM16] codec used on the wire.
//
// Everything here is pure sample math. Device I/O lives in
// [github.com/tutorvox/tutorvox/pkg/device]; transport lives in
// [github.com/tutorvox/tutorvox/pkg/stream].
package audio

import "time"

// FrameBlock is an ordered block of normalized audio samples in [-1.0, 1.0],
// tagged with its sample rate and channel count. Multi-channel blocks are
// interleaved. A FrameBlock is immutable once produced: pipeline stages
// return new blocks rather than mutating their input.
type FrameBlock struct {
	// Samples holds the normalized sample data, interleaved when Channels > 1.
	Samples []float32

	// Rate is the sample rate in Hz (per channel).
	Rate int

	// Channels is the channel count: 1 for mono capture and model output.
	Channels int
}

// Duration returns the playback duration of the block. Returns 0 when the
// rate or channel count is not positive.
func (b FrameBlock) Duration() time.Duration {
	if b.Rate <= 0 || b.Channels <= 0 {
		return 0
	}
	frames := len(b.Samples) / b.Channels
	return time.Duration(frames) * time.Second / time.Duration(b.Rate)
}
