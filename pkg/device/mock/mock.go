// Package mock provides test doubles for the device package interfaces.
//
// Use [Platform] to verify resource acquisition and release, [Capture] to
// script microphone blocks, and [Timeline] to drive a manual playback clock
// and inspect what was scheduled where.
//
// Example:
//
//	cap := mock.NewCapture(48000, blocks...)
//	tl := mock.NewTimeline()
//	p := &mock.Platform{CaptureDevice: cap, Output: tl}
package mock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tutorvox/tutorvox/pkg/audio"
	"github.com/tutorvox/tutorvox/pkg/device"
)

// Compile-time interface assertions.
var (
	_ device.Platform       = (*Platform)(nil)
	_ device.CaptureDevice  = (*Capture)(nil)
	_ device.OutputTimeline = (*Timeline)(nil)
	_ device.Clip           = (*Clip)(nil)
)

// Platform is a mock device.Platform that hands out pre-built devices and
// records acquisition calls.
type Platform struct {
	mu sync.Mutex

	// CaptureDevice is returned by OpenCapture. If nil, a new empty
	// [Capture] at 48000 Hz is returned.
	CaptureDevice *Capture

	// Output is returned by OpenOutput. If nil, a new [Timeline] is returned.
	Output *Timeline

	// OpenCaptureErr, if non-nil, is returned by OpenCapture.
	OpenCaptureErr error

	// OpenOutputErr, if non-nil, is returned by OpenOutput.
	OpenOutputErr error

	// OpenCaptureCalls counts OpenCapture invocations.
	OpenCaptureCalls int

	// OpenOutputCalls counts OpenOutput invocations.
	OpenOutputCalls int
}

// OpenCapture records the call and returns CaptureDevice or OpenCaptureErr.
func (p *Platform) OpenCapture(_ context.Context, _ device.CaptureConfig) (device.CaptureDevice, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.OpenCaptureCalls++
	if p.OpenCaptureErr != nil {
		return nil, p.OpenCaptureErr
	}
	if p.CaptureDevice == nil {
		p.CaptureDevice = NewCapture(48000)
	}
	return p.CaptureDevice, nil
}

// OpenOutput records the call and returns Output or OpenOutputErr.
func (p *Platform) OpenOutput(_ context.Context, _ device.OutputConfig) (device.OutputTimeline, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.OpenOutputCalls++
	if p.OpenOutputErr != nil {
		return nil, p.OpenOutputErr
	}
	if p.Output == nil {
		p.Output = NewTimeline()
	}
	return p.Output, nil
}

// Capture is a scripted device.CaptureDevice. Read returns the queued blocks
// in order; once the script is exhausted Read blocks until more blocks are
// pushed, the context is cancelled, or the device is closed.
type Capture struct {
	rate   int
	blocks chan audio.FrameBlock

	mu         sync.Mutex
	closed     bool
	closeCount int
	done       chan struct{}
}

// NewCapture creates a Capture at the given rate with the given scripted
// blocks queued.
func NewCapture(rate int, blocks ...audio.FrameBlock) *Capture {
	c := &Capture{
		rate:   rate,
		blocks: make(chan audio.FrameBlock, len(blocks)+16),
		done:   make(chan struct{}),
	}
	for _, b := range blocks {
		c.blocks <- b
	}
	return c
}

// Push queues another block for a future Read.
func (c *Capture) Push(b audio.FrameBlock) {
	c.blocks <- b
}

// Read returns the next scripted block.
func (c *Capture) Read(ctx context.Context) (audio.FrameBlock, error) {
	select {
	case b := <-c.blocks:
		return b, nil
	case <-c.done:
		return audio.FrameBlock{}, fmt.Errorf("mock: capture device closed")
	case <-ctx.Done():
		return audio.FrameBlock{}, ctx.Err()
	}
}

// SampleRate returns the rate the capture was created with.
func (c *Capture) SampleRate() int { return c.rate }

// Close marks the device closed and unblocks pending Reads. Idempotent.
func (c *Capture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeCount++
	if !c.closed {
		c.closed = true
		close(c.done)
	}
	return nil
}

// CloseCount reports how many times Close was called.
func (c *Capture) CloseCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeCount
}

// Scheduled records one PlayAt call on a [Timeline].
type Scheduled struct {
	// Block is the audio that was scheduled.
	Block audio.FrameBlock

	// Start is the requested start position.
	Start time.Duration

	// Clip is the clip handle that PlayAt returned.
	Clip *Clip
}

// Timeline is a device.OutputTimeline with a manually advanced clock. Tests
// control time with [Timeline.Advance] and complete clips explicitly with
// [Clip.Finish].
type Timeline struct {
	mu         sync.Mutex
	now        time.Duration
	scheduled  []Scheduled
	playErr    error
	closed     bool
	closeCount int
}

// NewTimeline creates a Timeline with its clock at zero.
func NewTimeline() *Timeline {
	return &Timeline{}
}

// Now returns the current manual clock position.
func (t *Timeline) Now() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.now
}

// Advance moves the manual clock forward by d.
func (t *Timeline) Advance(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.now += d
}

// SetPlayErr makes every subsequent PlayAt call fail with err.
func (t *Timeline) SetPlayErr(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.playErr = err
}

// PlayAt records the scheduling request and returns a new unfinished [Clip].
func (t *Timeline) PlayAt(block audio.FrameBlock, start time.Duration) (device.Clip, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.playErr != nil {
		return nil, t.playErr
	}
	if t.closed {
		return nil, fmt.Errorf("mock: timeline closed")
	}
	clip := &Clip{done: make(chan struct{})}
	t.scheduled = append(t.scheduled, Scheduled{Block: block, Start: start, Clip: clip})
	return clip, nil
}

// Scheduled returns a snapshot of every PlayAt call in order.
func (t *Timeline) Scheduled() []Scheduled {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Scheduled, len(t.scheduled))
	copy(out, t.scheduled)
	return out
}

// Close marks the timeline closed. Idempotent.
func (t *Timeline) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closeCount++
	t.closed = true
	return nil
}

// CloseCount reports how many times Close was called.
func (t *Timeline) CloseCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closeCount
}

// Clip is a mock device.Clip. It completes only when a test calls
// [Clip.Finish] or something halts it.
type Clip struct {
	mu        sync.Mutex
	done      chan struct{}
	finished  bool
	haltCount int
}

// Done returns the completion channel.
func (c *Clip) Done() <-chan struct{} { return c.done }

// Halt records the call and closes the completion channel. Idempotent and
// safe after Finish.
func (c *Clip) Halt() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.haltCount++
	if !c.finished {
		c.finished = true
		close(c.done)
	}
	return nil
}

// Finish simulates natural playback completion.
func (c *Clip) Finish() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.finished {
		c.finished = true
		close(c.done)
	}
}

// HaltCount reports how many times Halt was called.
func (c *Clip) HaltCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.haltCount
}

// Halted reports whether the clip was explicitly halted at least once.
func (c *Clip) Halted() bool {
	return c.HaltCount() > 0
}
