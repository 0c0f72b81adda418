package capture_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tutorvox/tutorvox/internal/capture"
	"github.com/tutorvox/tutorvox/pkg/audio"
	"github.com/tutorvox/tutorvox/pkg/device/mock"
)

// block builds a FrameBlock of n constant-amplitude mono samples.
func block(rate, n int, amp float32) audio.FrameBlock {
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = amp
	}
	return audio.FrameBlock{Samples: samples, Rate: rate, Channels: 1}
}

// sendCollector accumulates sent payloads and cancels the loop context once
// the expected number of sends has been observed.
type sendCollector struct {
	mu       sync.Mutex
	payloads []audio.Payload
	want     int
	cancel   context.CancelFunc
}

func (c *sendCollector) send(p audio.Payload) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.payloads = append(c.payloads, p)
	if len(c.payloads) >= c.want {
		c.cancel()
	}
	return nil
}

func (c *sendCollector) sent() []audio.Payload {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]audio.Payload, len(c.payloads))
	copy(out, c.payloads)
	return out
}

func TestLoop_DownsamplesAndEncodes(t *testing.T) {
	t.Parallel()

	dev := mock.NewCapture(48000, block(48000, 4096, 0.25))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	col := &sendCollector{want: 1, cancel: cancel}
	loop := &capture.Loop{
		Device:     dev,
		Meter:      capture.Meter{Gain: 500, Threshold: 0.02},
		TargetRate: 16000,
		Send:       col.send,
	}

	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not finish")
	}

	sent := col.sent()
	if len(sent) != 1 {
		t.Fatalf("sent %d payloads, want 1", len(sent))
	}

	// 4096 samples at a 3:1 ratio average down to 1365 samples, 2 bytes each.
	if got := len(sent[0].Data); got != 1365*2 {
		t.Errorf("payload size = %d bytes, want %d", got, 1365*2)
	}
	if sent[0].MIMEType != "audio/pcm;rate=16000" {
		t.Errorf("payload MIME type = %q, want %q", sent[0].MIMEType, "audio/pcm;rate=16000")
	}
}

func TestLoop_ObserveSeesEveryBlock(t *testing.T) {
	t.Parallel()

	loud := block(48000, 1024, 0.5)
	quiet := block(48000, 1024, 0.001)
	dev := mock.NewCapture(48000, loud, quiet)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	col := &sendCollector{want: 2, cancel: cancel}

	type reading struct {
		volume float64
		voiced bool
	}
	var mu sync.Mutex
	var readings []reading

	loop := &capture.Loop{
		Device:     dev,
		Meter:      capture.Meter{Gain: 500, Threshold: 0.02},
		TargetRate: 16000,
		Send:       col.send,
		Observe: func(volume float64, voiced bool) {
			mu.Lock()
			readings = append(readings, reading{volume, voiced})
			mu.Unlock()
		},
	}

	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not finish")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(readings) != 2 {
		t.Fatalf("observed %d readings, want 2", len(readings))
	}
	if !readings[0].voiced {
		t.Error("loud block not reported as voiced")
	}
	if readings[1].voiced {
		t.Error("quiet block reported as voiced")
	}
	if readings[0].volume <= readings[1].volume {
		t.Errorf("loud volume %v not greater than quiet volume %v",
			readings[0].volume, readings[1].volume)
	}
}

func TestLoop_SendFailureDoesNotStopLoop(t *testing.T) {
	t.Parallel()

	dev := mock.NewCapture(48000, block(48000, 512, 0.1), block(48000, 512, 0.1))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	calls := 0
	send := func(audio.Payload) error {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls == 1 {
			return errors.New("transport rejected chunk")
		}
		cancel()
		return nil
	}

	loop := &capture.Loop{
		Device:     dev,
		Meter:      capture.Meter{Gain: 500, Threshold: 0.02},
		TargetRate: 16000,
		Send:       send,
	}

	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("loop stopped after send failure instead of continuing")
	}

	mu.Lock()
	defer mu.Unlock()
	if calls != 2 {
		t.Errorf("send called %d times, want 2", calls)
	}
}

func TestLoop_ReturnsNilOnCancel(t *testing.T) {
	t.Parallel()

	dev := mock.NewCapture(48000)
	ctx, cancel := context.WithCancel(context.Background())

	loop := &capture.Loop{
		Device:     dev,
		Meter:      capture.Meter{Gain: 500, Threshold: 0.02},
		TargetRate: 16000,
		Send:       func(audio.Payload) error { return nil },
	}

	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v after cancel, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not exit on cancel")
	}
}

func TestLoop_DeviceFailurePropagates(t *testing.T) {
	t.Parallel()

	dev := mock.NewCapture(48000)
	loop := &capture.Loop{
		Device:     dev,
		Meter:      capture.Meter{Gain: 500, Threshold: 0.02},
		TargetRate: 16000,
		Send:       func(audio.Payload) error { return nil },
	}

	done := make(chan error, 1)
	go func() { done <- loop.Run(context.Background()) }()

	// Closing the device makes pending Reads fail while the context is
	// still live, which must surface as an error.
	dev.Close()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("Run returned nil, want device error")
		}
		if !strings.Contains(err.Error(), "closed") {
			t.Errorf("Run error = %v, want device-closed error", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not exit on device failure")
	}
}

func TestLoop_PassthroughWhenDeviceAtTargetRate(t *testing.T) {
	t.Parallel()

	dev := mock.NewCapture(16000, block(16000, 1024, 0.1))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	col := &sendCollector{want: 1, cancel: cancel}
	loop := &capture.Loop{
		Device:     dev,
		Meter:      capture.Meter{Gain: 500, Threshold: 0.02},
		TargetRate: 16000,
		Send:       col.send,
	}

	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not finish")
	}

	sent := col.sent()
	if len(sent) != 1 {
		t.Fatalf("sent %d payloads, want 1", len(sent))
	}
	if got := len(sent[0].Data); got != 1024*2 {
		t.Errorf("payload size = %d bytes, want %d (no rate conversion)", got, 1024*2)
	}
}
