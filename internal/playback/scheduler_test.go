package playback_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tutorvox/tutorvox/internal/playback"
	"github.com/tutorvox/tutorvox/pkg/audio"
	"github.com/tutorvox/tutorvox/pkg/device/mock"
)

// chunk builds a mono FrameBlock with the given duration at 24000 Hz.
func chunk(d time.Duration) audio.FrameBlock {
	frames := int(d * 24000 / time.Second)
	return audio.FrameBlock{Samples: make([]float32, frames), Rate: 24000, Channels: 1}
}

func TestScheduler_BackToBackChunks(t *testing.T) {
	t.Parallel()

	tl := mock.NewTimeline()
	s := &playback.Scheduler{Timeline: tl}
	ctx := context.Background()

	// Three chunks arriving faster than real time (clock stays at 0) must
	// be laid out gaplessly.
	for range 3 {
		if err := s.Enqueue(ctx, chunk(100*time.Millisecond)); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}

	got := tl.Scheduled()
	if len(got) != 3 {
		t.Fatalf("scheduled %d clips, want 3", len(got))
	}
	wantStarts := []time.Duration{0, 100 * time.Millisecond, 200 * time.Millisecond}
	for i, sc := range got {
		if sc.Start != wantStarts[i] {
			t.Errorf("clip %d start = %v, want %v", i, sc.Start, wantStarts[i])
		}
	}
}

func TestScheduler_CursorSnapsForwardAfterGap(t *testing.T) {
	t.Parallel()

	tl := mock.NewTimeline()
	s := &playback.Scheduler{Timeline: tl}
	ctx := context.Background()

	if err := s.Enqueue(ctx, chunk(100*time.Millisecond)); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	// The clock overtakes the cursor during a silence gap. The next chunk
	// must start at the clock, not at the stale cursor.
	tl.Advance(500 * time.Millisecond)
	if err := s.Enqueue(ctx, chunk(100*time.Millisecond)); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	got := tl.Scheduled()
	if len(got) != 2 {
		t.Fatalf("scheduled %d clips, want 2", len(got))
	}
	if got[1].Start != 500*time.Millisecond {
		t.Errorf("post-gap start = %v, want %v", got[1].Start, 500*time.Millisecond)
	}

	// And the chunk after that chains off the new cursor.
	if err := s.Enqueue(ctx, chunk(100*time.Millisecond)); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	got = tl.Scheduled()
	if got[2].Start != 600*time.Millisecond {
		t.Errorf("chained start = %v, want %v", got[2].Start, 600*time.Millisecond)
	}
}

func TestScheduler_PlayFailureDoesNotAdvanceCursor(t *testing.T) {
	t.Parallel()

	tl := mock.NewTimeline()
	s := &playback.Scheduler{Timeline: tl}
	ctx := context.Background()

	if err := s.Enqueue(ctx, chunk(100*time.Millisecond)); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	tl.SetPlayErr(errors.New("device busy"))
	if err := s.Enqueue(ctx, chunk(100*time.Millisecond)); err == nil {
		t.Fatal("Enqueue succeeded despite PlayAt failure")
	}

	// The failed chunk must not burn its slot: the next chunk starts where
	// the failed one would have.
	tl.SetPlayErr(nil)
	if err := s.Enqueue(ctx, chunk(100*time.Millisecond)); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	got := tl.Scheduled()
	if len(got) != 2 {
		t.Fatalf("scheduled %d clips, want 2", len(got))
	}
	if got[1].Start != 100*time.Millisecond {
		t.Errorf("retry start = %v, want %v", got[1].Start, 100*time.Millisecond)
	}
}

func TestScheduler_FlushHaltsLiveClipsAndStaysUsable(t *testing.T) {
	t.Parallel()

	tl := mock.NewTimeline()
	s := &playback.Scheduler{Timeline: tl}
	ctx := context.Background()

	for range 2 {
		if err := s.Enqueue(ctx, chunk(100*time.Millisecond)); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}

	s.Flush(ctx)

	for _, sc := range tl.Scheduled() {
		if !sc.Clip.Halted() {
			t.Error("live clip not halted by Flush")
		}
	}

	// The cursor rewound, so the next chunk plays at the clock position.
	if err := s.Enqueue(ctx, chunk(100*time.Millisecond)); err != nil {
		t.Fatalf("Enqueue after Flush: %v", err)
	}
	got := tl.Scheduled()
	if got[2].Start != 0 {
		t.Errorf("post-flush start = %v, want 0", got[2].Start)
	}
}

func TestScheduler_CompletedClipsNotHalted(t *testing.T) {
	t.Parallel()

	tl := mock.NewTimeline()
	s := &playback.Scheduler{Timeline: tl}
	ctx := context.Background()

	if err := s.Enqueue(ctx, chunk(100*time.Millisecond)); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := s.Enqueue(ctx, chunk(100*time.Millisecond)); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	scheduled := tl.Scheduled()
	scheduled[0].Clip.Finish()

	// Wait for the completion watcher to drop the finished clip.
	deadline := time.After(2 * time.Second)
	for s.Pending() != 1 {
		select {
		case <-deadline:
			t.Fatal("finished clip never left the live set")
		case <-time.After(time.Millisecond):
		}
	}

	s.Stop(ctx)

	if scheduled[0].Clip.Halted() {
		t.Error("naturally finished clip was halted")
	}
	if !scheduled[1].Clip.Halted() {
		t.Error("live clip not halted by Stop")
	}
}

func TestScheduler_StopIsIdempotentAndFinal(t *testing.T) {
	t.Parallel()

	tl := mock.NewTimeline()
	s := &playback.Scheduler{Timeline: tl}
	ctx := context.Background()

	if err := s.Enqueue(ctx, chunk(100*time.Millisecond)); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	s.Stop(ctx)
	s.Stop(ctx)

	if got := tl.Scheduled()[0].Clip.HaltCount(); got != 1 {
		t.Errorf("clip halted %d times, want 1", got)
	}

	if err := s.Enqueue(ctx, chunk(100*time.Millisecond)); err == nil {
		t.Error("Enqueue succeeded after Stop")
	}
}
