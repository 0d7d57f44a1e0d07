package audio_test

import (
	"testing"

	"github.com/voxping/voxping/pkg/audio"
)

func TestResampleMonoF32_SameRate(t *testing.T) {
	t.Parallel()
	in := []float32{0.1, 0.2, 0.3}
	out := audio.ResampleMonoF32(in, 16000, 16000)
	if len(out) != len(in) {
		t.Fatalf("length mismatch: got %d, want %d", len(out), len(in))
	}
}

func TestResampleMonoF32_Downsample2to1(t *testing.T) {
	t.Parallel()
	in := make([]float32, 480)
	for i := range in {
		in[i] = float32(i) / float32(len(in))
	}
	out := audio.ResampleMonoF32(in, 32000, 16000)
	if len(out) != 240 {
		t.Fatalf("got %d samples, want 240", len(out))
	}
	// A monotonically increasing ramp must stay monotonic after resampling.
	for i := 1; i < len(out); i++ {
		if out[i] < out[i-1] {
			t.Fatalf("output not monotonic at %d: %v < %v", i, out[i], out[i-1])
		}
	}
}

func TestResampleMonoF32_Upsample(t *testing.T) {
	t.Parallel()
	in := []float32{0, 1}
	out := audio.ResampleMonoF32(in, 8000, 16000)
	if len(out) != 4 {
		t.Fatalf("got %d samples, want 4", len(out))
	}
	if out[0] != 0 {
		t.Errorf("first sample = %v; want 0", out[0])
	}
	// Interpolated values must lie within the input range.
	for i, s := range out {
		if s < 0 || s > 1 {
			t.Errorf("sample %d = %v; want within [0, 1]", i, s)
		}
	}
}

func TestResampleMonoF32_InvalidRates(t *testing.T) {
	t.Parallel()
	in := []float32{0.1, 0.2}
	if out := audio.ResampleMonoF32(in, 0, 16000); len(out) != len(in) {
		t.Errorf("zero src rate: got %d samples, want input unchanged", len(out))
	}
	if out := audio.ResampleMonoF32(in, 16000, -1); len(out) != len(in) {
		t.Errorf("negative dst rate: got %d samples, want input unchanged", len(out))
	}
}
