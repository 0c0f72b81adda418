// Package device defines the interfaces for local audio device access in
// TutorVox.
//
// The two entry points are obtained from a [Platform]:
//
//   - [CaptureDevice] — a microphone-style source yielding fixed-size blocks
//     of normalized samples.
//   - [OutputTimeline] — a speaker-side clock against which decoded audio can
//     be scheduled for gap-free playback at a chosen position.
//
// Implementations are provided by adapter packages (device/portaudio for real
// hardware, device/mock for tests). The interfaces are intentionally narrow so
// the session controller stays decoupled from the audio backend.
//
// This package lives under pkg/ because external code (alternative device
// adapters) is expected to implement [Platform].
package device

import (
	"context"
	"time"

	"github.com/tutorvox/tutorvox/pkg/audio"
)

// CaptureConfig describes the capture stream a caller wants opened.
type CaptureConfig struct {
	// SampleRate is the requested capture rate in Hz.
	SampleRate int

	// Channels is the requested channel count. TutorVox captures mono.
	Channels int

	// BlockSize is the number of frames delivered per Read. Constant for
	// the lifetime of the device.
	BlockSize int
}

// OutputConfig describes the playback stream a caller wants opened.
type OutputConfig struct {
	// SampleRate is the playback rate in Hz.
	SampleRate int

	// Channels is the playback channel count.
	Channels int
}

// CaptureDevice is an open microphone stream delivering successive
// fixed-size blocks of normalized audio.
//
// Implementations must be safe for concurrent use, though in practice a
// single capture loop owns the device and is its only reader.
type CaptureDevice interface {
	// Read blocks until the next full block of samples is available and
	// returns it as a mono [audio.FrameBlock] at the device rate. Returns
	// an error when ctx is cancelled or the device has been closed; a
	// closed device never yields further blocks.
	Read(ctx context.Context) (audio.FrameBlock, error)

	// SampleRate reports the actual capture rate in Hz, which may differ
	// from the requested rate if the hardware could not honour it.
	SampleRate() int

	// Close releases the device. Safe to call more than once.
	Close() error
}

// Clip is a single block of audio that has been handed to an
// [OutputTimeline] for playback at a fixed start position.
type Clip interface {
	// Done returns a channel that is closed when the clip finishes playing
	// or is halted.
	Done() <-chan struct{}

	// Halt stops the clip immediately. Halting a clip that has already
	// finished (or was already halted) is a no-op and returns nil.
	Halt() error
}

// OutputTimeline is a playback device exposed as a monotonic clock plus the
// ability to schedule buffered audio at a future position on that clock.
//
// Implementations must be safe for concurrent use.
type OutputTimeline interface {
	// Now returns the current position of the playback clock. The clock
	// starts at zero when the timeline is opened and never decreases.
	Now() time.Duration

	// PlayAt schedules block to begin playing when the clock reaches start.
	// A start position in the past plays as soon as possible. The returned
	// [Clip] tracks the scheduled playback.
	PlayAt(block audio.FrameBlock, start time.Duration) (Clip, error)

	// Close stops all scheduled playback and releases the device. Safe to
	// call more than once.
	Close() error
}

// Platform is the entry point for an audio device backend. Implementations
// wrap a host audio API (PortAudio, test doubles, …) and expose uniform
// capture and playback abstractions.
//
// Implementations must be safe for concurrent use.
type Platform interface {
	// OpenCapture acquires the capture device described by cfg. The ctx
	// governs the acquisition only; the returned device remains open until
	// Close is called.
	OpenCapture(ctx context.Context, cfg CaptureConfig) (CaptureDevice, error)

	// OpenOutput acquires a playback timeline described by cfg. The ctx
	// governs the acquisition only; the returned timeline remains open
	// until Close is called.
	OpenOutput(ctx context.Context, cfg OutputConfig) (OutputTimeline, error)
}
