package capture

import (
	"context"
	"errors"
	"log/slog"

	"github.com/tutorvox/tutorvox/internal/observe"
	"github.com/tutorvox/tutorvox/pkg/audio"
	"github.com/tutorvox/tutorvox/pkg/device"
)

// Loop pumps microphone blocks through the outbound pipeline: read, meter,
// downsample, encode, send. One Loop serves one live session; the session
// controller creates a fresh Loop per Start.
type Loop struct {
	// Device is the open capture device to read from.
	Device device.CaptureDevice

	// Meter derives volume and voice activity per block.
	Meter Meter

	// TargetRate is the sample rate in Hz the model expects.
	TargetRate int

	// Send delivers one encoded payload to the streaming session. A send
	// failure is logged and counted but never stops the loop; the session
	// controller decides when capture ends.
	Send func(audio.Payload) error

	// Observe, if non-nil, receives the metered volume and voice-activity
	// verdict for every block before it is sent. Used to drive the UI meter
	// and the silence watchdog.
	Observe func(volume float64, voiced bool)

	// Metrics records per-block counters. If nil, [observe.DefaultMetrics]
	// is used.
	Metrics *observe.Metrics

	// Logger, if nil, defaults to slog.Default().
	Logger *slog.Logger
}

// Run reads blocks until ctx is cancelled or the device fails. Returns nil on
// cancellation and the device error otherwise. Send failures do not end the
// loop.
func (l *Loop) Run(ctx context.Context) error {
	log := l.Logger
	if log == nil {
		log = slog.Default()
	}
	metrics := l.Metrics
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}

	loggedRateFallback := false
	for {
		block, err := l.Device.Read(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			if ctx.Err() != nil {
				// Device read errors during teardown are expected.
				return nil
			}
			return err
		}
		metrics.CaptureBlocks.Add(ctx, 1)

		volume, voiced := l.Meter.Measure(block.Samples)
		if l.Observe != nil {
			l.Observe(volume, voiced)
		}

		out := audio.Downsample(block, l.TargetRate)
		if out.Rate != l.TargetRate && !loggedRateFallback {
			// Downsample passes the block through when the device rate is
			// at or below the target. The session was opened declaring
			// the rate actually sent, so keep going at the device rate.
			log.Warn("capture rate below target, sending at device rate",
				"device_rate", block.Rate, "target_rate", l.TargetRate)
			loggedRateFallback = true
		}

		if err := l.Send(audio.EncodePCM16(out)); err != nil {
			metrics.SendFailures.Add(ctx, 1)
			log.Warn("failed to send audio chunk", "error", err)
		}
	}
}
