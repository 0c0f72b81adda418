package audio_test

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/tutorvox/tutorvox/pkg/audio"
)

// int16sToBytes packs int16 samples as little-endian PCM.
func int16sToBytes(samples []int16) []byte {
	data := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(data[i*2:], uint16(s))
	}
	return data
}

// bytesToInt16s unpacks little-endian PCM into int16 samples.
func bytesToInt16s(data []byte) []int16 {
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return samples
}

func TestEncodePCM16_AsymmetricScaling(t *testing.T) {
	in := block(16000, -1.0, 1.0, 0.0, -0.5, 0.5)
	p := audio.EncodePCM16(in)

	got := bytesToInt16s(p.Data)
	want := []int16{-32768, 32767, 0, -16384, 16383}
	if len(got) != len(want) {
		t.Fatalf("length: got %d samples, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d: got %d, want %d", i, got[i], want[i])
		}
	}
}

func TestEncodePCM16_ClampsOutOfRange(t *testing.T) {
	in := block(16000, 1.5, -1.5, math.MaxFloat32, -math.MaxFloat32)
	p := audio.EncodePCM16(in)

	got := bytesToInt16s(p.Data)
	want := []int16{32767, -32768, 32767, -32768}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d: got %d, want %d", i, got[i], want[i])
		}
	}
}

func TestEncodePCM16_LittleEndianLayout(t *testing.T) {
	in := block(16000, 0.5)
	p := audio.EncodePCM16(in)

	// int16(0.5 * 32767) = 16383 = 0x3FFF, low byte first.
	want := []byte{0xFF, 0x3F}
	if len(p.Data) != len(want) {
		t.Fatalf("length: got %d bytes, want %d", len(p.Data), len(want))
	}
	for i := range want {
		if p.Data[i] != want[i] {
			t.Errorf("byte %d: got %#02x, want %#02x", i, p.Data[i], want[i])
		}
	}
}

func TestEncodePCM16_MIMETypeCarriesRate(t *testing.T) {
	for _, rate := range []int{8000, 16000, 24000, 48000} {
		p := audio.EncodePCM16(audio.FrameBlock{Samples: []float32{0}, Rate: rate, Channels: 1})
		want := audio.PCMMIMEType(rate)
		if p.MIMEType != want {
			t.Errorf("rate %d: got %q, want %q", rate, p.MIMEType, want)
		}
	}
	if got := audio.PCMMIMEType(16000); got != "audio/pcm;rate=16000" {
		t.Errorf("mime type: got %q, want audio/pcm;rate=16000", got)
	}
}

func TestDecodePCM16_SymmetricDivisor(t *testing.T) {
	data := int16sToBytes([]int16{-32768, 32767, 0, 16384, -16384})
	blocks, err := audio.DecodePCM16(data, 24000, 1)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(blocks) != 1 {
		t.Fatalf("expected 1 channel block, got %d", len(blocks))
	}

	got := blocks[0].Samples
	want := []float32{-1.0, 32767.0 / 32768.0, 0.0, 0.5, -0.5}
	if len(got) != len(want) {
		t.Fatalf("length: got %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d: got %v, want %v", i, got[i], want[i])
		}
	}
	if blocks[0].Rate != 24000 || blocks[0].Channels != 1 {
		t.Errorf("metadata: got rate=%d channels=%d, want 24000/1", blocks[0].Rate, blocks[0].Channels)
	}
}

func TestDecodePCM16_DeinterleavesStereo(t *testing.T) {
	// Interleaved L R L R L R.
	data := int16sToBytes([]int16{100, -100, 200, -200, 300, -300})
	blocks, err := audio.DecodePCM16(data, 48000, 2)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(blocks) != 2 {
		t.Fatalf("expected 2 channel blocks, got %d", len(blocks))
	}

	wantL := []float32{100.0 / 32768.0, 200.0 / 32768.0, 300.0 / 32768.0}
	wantR := []float32{-100.0 / 32768.0, -200.0 / 32768.0, -300.0 / 32768.0}
	for i := range wantL {
		if blocks[0].Samples[i] != wantL[i] {
			t.Errorf("left %d: got %v, want %v", i, blocks[0].Samples[i], wantL[i])
		}
		if blocks[1].Samples[i] != wantR[i] {
			t.Errorf("right %d: got %v, want %v", i, blocks[1].Samples[i], wantR[i])
		}
	}
	for c, b := range blocks {
		if b.Channels != 1 {
			t.Errorf("channel %d: per-channel block must be mono, got %d", c, b.Channels)
		}
	}
}

func TestDecodePCM16_DropsTrailingPartialFrame(t *testing.T) {
	// Three samples with two channels: one complete frame, one dangling sample.
	data := int16sToBytes([]int16{100, -100, 200})
	blocks, err := audio.DecodePCM16(data, 48000, 2)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	for c, b := range blocks {
		if len(b.Samples) != 1 {
			t.Errorf("channel %d: got %d frames, want 1", c, len(b.Samples))
		}
	}
}

func TestDecodePCM16_Errors(t *testing.T) {
	if _, err := audio.DecodePCM16([]byte{0x00, 0x01, 0x02}, 24000, 1); err == nil {
		t.Error("odd byte count must fail")
	}
	if _, err := audio.DecodePCM16([]byte{0x00, 0x01}, 24000, 0); err == nil {
		t.Error("zero channels must fail")
	}
	if _, err := audio.DecodePCM16(nil, 24000, 1); err != nil {
		t.Errorf("empty input must decode to empty blocks, got error: %v", err)
	}
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	in := make([]float32, 256)
	for i := range in {
		in[i] = float32(math.Sin(float64(i) / 256 * 2 * math.Pi * 3))
	}

	p := audio.EncodePCM16(audio.FrameBlock{Samples: in, Rate: 16000, Channels: 1})
	blocks, err := audio.DecodePCM16(p.Data, 16000, 1)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	out := blocks[0].Samples
	if len(out) != len(in) {
		t.Fatalf("length: got %d, want %d", len(out), len(in))
	}
	// Encode truncates at scale 32767 while decode divides by 32768, so a
	// positive sample can land up to two quantization steps away.
	const maxErr = 2.0 / 32768.0
	for i := range in {
		if diff := math.Abs(float64(out[i] - in[i])); diff > maxErr {
			t.Errorf("sample %d: got %v, want %v (diff %v)", i, out[i], in[i], diff)
		}
	}
}
