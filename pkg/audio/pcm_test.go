package audio_test

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/voxping/voxping/pkg/audio"
)

func pcmValue(t *testing.T, data []byte, i int) int16 {
	t.Helper()
	if len(data) < (i+1)*2 {
		t.Fatalf("pcm data too short: %d bytes, want sample %d", len(data), i)
	}
	return int16(binary.LittleEndian.Uint16(data[i*2:]))
}

func TestEncodePCM16_HalfScale(t *testing.T) {
	t.Parallel()
	// 0.5 × 32767 = 16383.5, truncated to 16383.
	got := pcmValue(t, audio.EncodePCM16([]float32{0.5}), 0)
	if got != 16383 {
		t.Errorf("EncodePCM16(0.5) = %d; want 16383", got)
	}
}

func TestEncodePCM16_FullScale(t *testing.T) {
	t.Parallel()
	data := audio.EncodePCM16([]float32{-1, 0, 1})
	want := []int16{-32768, 0, 32767}
	for i, w := range want {
		if got := pcmValue(t, data, i); got != w {
			t.Errorf("sample %d: got %d, want %d", i, got, w)
		}
	}
}

func TestEncodePCM16_ClampsOutOfRange(t *testing.T) {
	t.Parallel()
	data := audio.EncodePCM16([]float32{2.5, -3.1})
	if got := pcmValue(t, data, 0); got != 32767 {
		t.Errorf("sample 0: got %d, want 32767", got)
	}
	if got := pcmValue(t, data, 1); got != -32768 {
		t.Errorf("sample 1: got %d, want -32768", got)
	}
}

func TestDecodePCM16_IgnoresTrailingOddByte(t *testing.T) {
	t.Parallel()
	out := audio.DecodePCM16([]byte{0x00, 0x40, 0x7f})
	if len(out) != 1 {
		t.Fatalf("got %d samples, want 1", len(out))
	}
}

// TestPCM16RoundTrip verifies that encode-then-decode reproduces every sample
// within one quantisation step (1/32768).
func TestPCM16RoundTrip(t *testing.T) {
	t.Parallel()
	const step = 1.0 / 32768

	samples := []float32{-1, -0.999, -0.5, -0.25, -step, 0, step, 0.25, 0.5, 0.75, 0.999, 1}
	// A sweep across the full range too.
	for i := -100; i <= 100; i++ {
		samples = append(samples, float32(i)/100)
	}

	decoded := audio.DecodePCM16(audio.EncodePCM16(samples))
	if len(decoded) != len(samples) {
		t.Fatalf("got %d samples, want %d", len(decoded), len(samples))
	}
	for i, in := range samples {
		if diff := math.Abs(float64(decoded[i]) - float64(in)); diff > step {
			t.Errorf("sample %d (%v): round-trip error %v exceeds %v", i, in, diff, step)
		}
	}
}

func TestPCM16RoundTrip_HalfScaleScenario(t *testing.T) {
	t.Parallel()
	decoded := audio.DecodePCM16(audio.EncodePCM16([]float32{0.5}))
	if diff := math.Abs(float64(decoded[0]) - 0.5); diff > 1.0/32768 {
		t.Errorf("0.5 round-trip = %v; want within 1/32768 of 0.5", decoded[0])
	}
}
