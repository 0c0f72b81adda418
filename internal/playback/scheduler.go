// Package playback schedules decoded model audio onto an output timeline so
// that chunks arriving in bursts play back gaplessly in arrival order.
package playback

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tutorvox/tutorvox/internal/observe"
	"github.com/tutorvox/tutorvox/pkg/audio"
	"github.com/tutorvox/tutorvox/pkg/device"
)

// Scheduler appends audio blocks to a moving cursor on an output timeline.
//
// Each block starts at the later of the cursor and the timeline clock, then
// the cursor advances by the block's duration. Chunks that arrive faster than
// real time queue up back-to-back; after a gap the cursor snaps forward to
// the clock so playback resumes immediately instead of racing to catch up.
//
// Scheduler is safe for concurrent use, though the session controller drives
// it from a single goroutine.
type Scheduler struct {
	// Timeline is the output the scheduler plays onto.
	Timeline device.OutputTimeline

	// Metrics records scheduling counters. If nil, [observe.DefaultMetrics]
	// is used.
	Metrics *observe.Metrics

	// Logger, if nil, defaults to slog.Default().
	Logger *slog.Logger

	mu      sync.Mutex
	cursor  time.Duration
	live    map[int]device.Clip
	nextSeq int
	stopped bool
}

// Enqueue schedules block at the current cursor position. On scheduling
// failure the cursor does not advance, so the next chunk reuses the slot.
// Returns an error after Stop.
func (s *Scheduler) Enqueue(ctx context.Context, block audio.FrameBlock) error {
	metrics := s.metricsOrDefault()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return fmt.Errorf("playback: scheduler stopped")
	}

	start := s.cursor
	if now := s.Timeline.Now(); now > start {
		start = now
	}

	clip, err := s.Timeline.PlayAt(block, start)
	if err != nil {
		s.loggerOrDefault().Warn("failed to schedule audio chunk",
			"start", start, "duration", block.Duration(), "error", err)
		return err
	}

	s.cursor = start + block.Duration()
	if s.live == nil {
		s.live = make(map[int]device.Clip)
	}
	seq := s.nextSeq
	s.nextSeq++
	s.live[seq] = clip
	metrics.ChunksScheduled.Add(ctx, 1)

	go func() {
		<-clip.Done()
		s.mu.Lock()
		delete(s.live, seq)
		s.mu.Unlock()
	}()
	return nil
}

// Flush halts every live clip and rewinds the cursor so the next chunk plays
// immediately. The scheduler stays usable; this is the barge-in path when the
// model abandons its in-flight response.
func (s *Scheduler) Flush(ctx context.Context) {
	s.mu.Lock()
	clips := s.drainLocked()
	s.cursor = 0
	s.mu.Unlock()

	s.haltAll(ctx, clips)
}

// Stop halts every live clip and rejects further Enqueue calls. Idempotent.
func (s *Scheduler) Stop(ctx context.Context) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	clips := s.drainLocked()
	s.cursor = 0
	s.mu.Unlock()

	s.haltAll(ctx, clips)
}

// Pending reports the number of clips scheduled but not yet completed.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live)
}

// drainLocked removes and returns all live clips. Caller holds s.mu.
func (s *Scheduler) drainLocked() []device.Clip {
	clips := make([]device.Clip, 0, len(s.live))
	for _, c := range s.live {
		clips = append(clips, c)
	}
	s.live = nil
	return clips
}

func (s *Scheduler) haltAll(ctx context.Context, clips []device.Clip) {
	metrics := s.metricsOrDefault()
	for _, c := range clips {
		if err := c.Halt(); err != nil {
			s.loggerOrDefault().Warn("failed to halt clip", "error", err)
			continue
		}
		metrics.PlaybackHalts.Add(ctx, 1)
	}
}

func (s *Scheduler) metricsOrDefault() *observe.Metrics {
	if s.Metrics != nil {
		return s.Metrics
	}
	return observe.DefaultMetrics()
}

func (s *Scheduler) loggerOrDefault() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
