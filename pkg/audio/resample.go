package audio

import "math"

// Downsample converts b to targetRate by block averaging: each output sample
// is the arithmetic mean of a contiguous block of input samples. Block
// boundaries are recomputed from the absolute output index —
// round((i+1) * rateRatio) — so non-integer ratios cannot accumulate drift;
// neighbouring blocks may differ in size by one sample.
//
// If targetRate equals b.Rate the input is returned unchanged, sharing the
// same backing array. If targetRate exceeds b.Rate the input is also returned
// unchanged: this is a deliberate degraded fallback, not upsampling — callers
// that need true upsampling must not rely on Downsample.
//
// Pure and deterministic; the only allocation is the output buffer.
func Downsample(b FrameBlock, targetRate int) FrameBlock {
	if b.Rate <= 0 || targetRate <= 0 {
		return b
	}
	if targetRate >= b.Rate {
		return b
	}

	ratio := float64(b.Rate) / float64(targetRate)
	n := len(b.Samples)
	outLen := int(math.Round(float64(n) / ratio))
	out := make([]float32, outLen)

	start := 0
	for i := range out {
		end := int(math.Round(float64(i+1) * ratio))
		if end > n {
			end = n
		}
		var sum float64
		for _, s := range b.Samples[start:end] {
			sum += float64(s)
		}
		if count := end - start; count > 0 {
			out[i] = float32(sum / float64(count))
		}
		start = end
	}

	return FrameBlock{Samples: out, Rate: targetRate, Channels: b.Channels}
}
