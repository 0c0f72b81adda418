package audio

import "fmt"

// Payload is a transport-ready encoded audio chunk: signed 16-bit
// little-endian PCM bytes plus the format descriptor the remote protocol
// expects. Ownership transfers to the transport on send; the pipeline does
// not retain payloads.
type Payload struct {
	// Data is the raw s16le PCM byte sequence.
	Data []byte

	// MIMEType declares the payload format, e.g. "audio/pcm;rate=16000".
	MIMEType string
}

// PCMMIMEType returns the format descriptor for raw PCM at the given rate.
func PCMMIMEType(rate int) string {
	return fmt.Sprintf("audio/pcm;rate=%d", rate)
}

// EncodePCM16 quantizes b into a little-endian 16-bit PCM [Payload]. Each
// sample is clamped to [-1, 1] and scaled asymmetrically: negative values by
// 32768, non-negative values by 32767, matching the asymmetric signed 16-bit
// range. [DecodePCM16] divides by 32768 regardless of sign; the pairing
// round-trips within 1/32768.
//
// Pure; no failure modes.
func EncodePCM16(b FrameBlock) Payload {
	data := make([]byte, len(b.Samples)*2)
	for i, s := range b.Samples {
		f := float64(s)
		if f > 1 {
			f = 1
		} else if f < -1 {
			f = -1
		}
		var v int16
		if f < 0 {
			v = int16(f * 32768)
		} else {
			v = int16(f * 32767)
		}
		data[i*2] = byte(v)
		data[i*2+1] = byte(v >> 8)
	}
	return Payload{Data: data, MIMEType: PCMMIMEType(b.Rate)}
}

// DecodePCM16 expands little-endian 16-bit PCM bytes into one normalized
// [FrameBlock] per channel at the declared source rate. Every sample is
// divided by 32768 regardless of sign. Interleaved input is deinterleaved;
// the frame count is total samples / channels, and a trailing partial frame
// is dropped.
//
// The returned blocks keep the source rate: rate conversion for a playback
// device mismatch belongs to the playback subsystem.
func DecodePCM16(data []byte, rate, channels int) ([]FrameBlock, error) {
	if channels < 1 {
		return nil, fmt.Errorf("audio: decode: invalid channel count %d", channels)
	}
	if len(data)%2 != 0 {
		return nil, fmt.Errorf("audio: decode: odd byte count %d", len(data))
	}

	total := len(data) / 2
	frames := total / channels

	blocks := make([]FrameBlock, channels)
	for c := range blocks {
		blocks[c] = FrameBlock{
			Samples:  make([]float32, frames),
			Rate:     rate,
			Channels: 1,
		}
	}

	for i := range frames * channels {
		v := int16(data[i*2]) | int16(data[i*2+1])<<8
		blocks[i%channels].Samples[i/channels] = float32(v) / 32768.0
	}

	return blocks, nil
}
