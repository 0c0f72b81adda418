// Package portaudio implements the device interfaces on top of the PortAudio
// host API via github.com/gordonklaus/portaudio.
//
// A [Platform] owns the PortAudio library lifecycle: it is initialised once
// in [New] and released in [Platform.Close]. Capture uses a blocking input
// stream read into a fixed block buffer; playback runs a feeder goroutine
// that paces scheduled clips against a monotonic clock and relies on the
// blocking output stream to keep samples back-to-back.
package portaudio

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/tutorvox/tutorvox/pkg/audio"
	"github.com/tutorvox/tutorvox/pkg/device"
)

// Compile-time interface assertions.
var (
	_ device.Platform       = (*Platform)(nil)
	_ device.CaptureDevice  = (*capture)(nil)
	_ device.OutputTimeline = (*timeline)(nil)
	_ device.Clip           = (*clip)(nil)
)

// queueDepth is the playback clip queue capacity. The session controller
// enqueues strictly sequentially, so the queue only needs to absorb bursts
// of chunks arriving faster than real time.
const queueDepth = 256

// Platform is a device.Platform backed by the host's default PortAudio
// devices.
type Platform struct {
	closeOnce sync.Once
}

// New initialises the PortAudio library and returns a Platform. The caller
// must call [Platform.Close] to release the library.
func New() (*Platform, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio: initialize: %w", err)
	}
	return &Platform{}, nil
}

// Close terminates the PortAudio library. Safe to call more than once.
func (p *Platform) Close() error {
	var err error
	p.closeOnce.Do(func() {
		err = portaudio.Terminate()
	})
	return err
}

// OpenCapture opens the default input device as a blocking stream reading
// cfg.BlockSize frames per call.
func (p *Platform) OpenCapture(_ context.Context, cfg device.CaptureConfig) (device.CaptureDevice, error) {
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	buf := make([]float32, cfg.BlockSize*cfg.Channels)
	stream, err := portaudio.OpenDefaultStream(cfg.Channels, 0, float64(cfg.SampleRate), cfg.BlockSize, buf)
	if err != nil {
		return nil, fmt.Errorf("portaudio: open capture stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("portaudio: start capture stream: %w", err)
	}
	return &capture{
		stream:   stream,
		buf:      buf,
		rate:     cfg.SampleRate,
		channels: cfg.Channels,
	}, nil
}

// OpenOutput opens the default output device as a blocking stream and starts
// the clip feeder. The timeline clock starts at zero.
func (p *Platform) OpenOutput(_ context.Context, cfg device.OutputConfig) (device.OutputTimeline, error) {
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	// ~20ms write granularity keeps Halt responsive without starving the
	// device buffer.
	blockFrames := cfg.SampleRate / 50
	if blockFrames < 64 {
		blockFrames = 64
	}
	buf := make([]float32, blockFrames*cfg.Channels)
	stream, err := portaudio.OpenDefaultStream(0, cfg.Channels, float64(cfg.SampleRate), blockFrames, buf)
	if err != nil {
		return nil, fmt.Errorf("portaudio: open output stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("portaudio: start output stream: %w", err)
	}
	t := &timeline{
		stream:      stream,
		buf:         buf,
		blockFrames: blockFrames,
		channels:    cfg.Channels,
		rate:        cfg.SampleRate,
		epoch:       time.Now(),
		queue:       make(chan *clip, queueDepth),
		done:        make(chan struct{}),
	}
	go t.feed()
	return t, nil
}

// ── capture ────────────────────────────────────────────────────────────────────

type capture struct {
	stream   *portaudio.Stream
	buf      []float32
	rate     int
	channels int

	mu     sync.Mutex
	closed bool
}

// Read blocks until the stream fills one block buffer, then returns a copy of
// it as a FrameBlock. The internal buffer is reused across calls, so the
// returned block owns its own sample slice.
func (c *capture) Read(ctx context.Context) (audio.FrameBlock, error) {
	if err := ctx.Err(); err != nil {
		return audio.FrameBlock{}, err
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return audio.FrameBlock{}, fmt.Errorf("portaudio: capture device closed")
	}
	c.mu.Unlock()

	if err := c.stream.Read(); err != nil {
		return audio.FrameBlock{}, fmt.Errorf("portaudio: read: %w", err)
	}
	samples := make([]float32, len(c.buf))
	copy(samples, c.buf)
	return audio.FrameBlock{Samples: samples, Rate: c.rate, Channels: c.channels}, nil
}

func (c *capture) SampleRate() int { return c.rate }

// Close stops and closes the stream. A blocked Read returns its stream error
// once the stream stops. Idempotent.
func (c *capture) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	stopErr := c.stream.Stop()
	closeErr := c.stream.Close()
	if stopErr != nil {
		return fmt.Errorf("portaudio: stop capture: %w", stopErr)
	}
	if closeErr != nil {
		return fmt.Errorf("portaudio: close capture: %w", closeErr)
	}
	return nil
}

// ── timeline ───────────────────────────────────────────────────────────────────

type timeline struct {
	stream      *portaudio.Stream
	buf         []float32
	blockFrames int
	channels    int
	rate        int
	epoch       time.Time
	queue       chan *clip
	done        chan struct{}
	closeOnce   sync.Once
	closeErr    error
}

// Now reports wall-clock time elapsed since the timeline was opened. The
// session controller's playback cursor arithmetic only needs a monotonic
// clock shared with PlayAt, not the device's own DAC clock.
func (t *timeline) Now() time.Duration {
	return time.Since(t.epoch)
}

// PlayAt queues block to start playing at the given clock position.
func (t *timeline) PlayAt(block audio.FrameBlock, start time.Duration) (device.Clip, error) {
	cl := &clip{
		block: block,
		start: start,
		done:  make(chan struct{}),
	}
	select {
	case t.queue <- cl:
		return cl, nil
	case <-t.done:
		return nil, fmt.Errorf("portaudio: timeline closed")
	default:
		return nil, fmt.Errorf("portaudio: playback queue full")
	}
}

// feed plays queued clips in order. It sleeps until each clip's start
// position, then writes the clip's samples through the blocking stream in
// blockFrames chunks, checking for halt between chunks. Because the session
// controller schedules clips back-to-back, the blocking writes keep the
// device buffer continuously fed.
func (t *timeline) feed() {
	for {
		select {
		case <-t.done:
			return
		case cl := <-t.queue:
			t.play(cl)
		}
	}
}

func (t *timeline) play(cl *clip) {
	defer cl.complete()

	if wait := cl.start - t.Now(); wait > 0 {
		select {
		case <-time.After(wait):
		case <-cl.done:
			return
		case <-t.done:
			return
		}
	}

	samples := cl.block.Samples
	step := t.blockFrames * t.channels
	for off := 0; off < len(samples); off += step {
		select {
		case <-cl.done:
			return
		case <-t.done:
			return
		default:
		}

		end := off + step
		if end > len(samples) {
			end = len(samples)
		}
		n := copy(t.buf, samples[off:end])
		for i := n; i < len(t.buf); i++ {
			t.buf[i] = 0
		}
		if err := t.stream.Write(); err != nil {
			// Output underflow is routine on the first write after a
			// pause; anything else ends the clip early.
			if err == portaudio.OutputUnderflowed {
				continue
			}
			return
		}
	}
}

// Close stops the feeder and releases the stream. Idempotent.
func (t *timeline) Close() error {
	t.closeOnce.Do(func() {
		close(t.done)
		stopErr := t.stream.Stop()
		closeErr := t.stream.Close()
		if stopErr != nil {
			t.closeErr = fmt.Errorf("portaudio: stop output: %w", stopErr)
		} else if closeErr != nil {
			t.closeErr = fmt.Errorf("portaudio: close output: %w", closeErr)
		}
	})
	return t.closeErr
}

// ── clip ───────────────────────────────────────────────────────────────────────

type clip struct {
	block audio.FrameBlock
	start time.Duration

	mu       sync.Mutex
	done     chan struct{}
	finished bool
}

func (c *clip) Done() <-chan struct{} { return c.done }

// Halt marks the clip finished; the feeder abandons it at the next chunk
// boundary. Safe after natural completion.
func (c *clip) Halt() error {
	c.complete()
	return nil
}

func (c *clip) complete() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.finished {
		c.finished = true
		close(c.done)
	}
}
