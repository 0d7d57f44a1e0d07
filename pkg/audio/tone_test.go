package audio_test

import (
	"context"
	"testing"

	"github.com/voxping/voxping/pkg/audio"
)

func TestToneSource_FrameShape(t *testing.T) {
	t.Parallel()
	src, err := audio.NewToneSource(440, 320)
	if err != nil {
		t.Fatalf("NewToneSource: %v", err)
	}
	defer src.Close()

	if src.SampleRate() != audio.WireSampleRate {
		t.Errorf("SampleRate() = %d, want %d", src.SampleRate(), audio.WireSampleRate)
	}

	frame, err := src.ReadFrame(context.Background())
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if len(frame) != 320 {
		t.Fatalf("frame length = %d, want 320", len(frame))
	}
	for i, s := range frame {
		if s < -1 || s > 1 {
			t.Fatalf("sample %d = %v out of [-1, 1]", i, s)
		}
	}
}

func TestToneSource_PhaseContinuity(t *testing.T) {
	t.Parallel()
	src, err := audio.NewToneSource(440, 160)
	if err != nil {
		t.Fatalf("NewToneSource: %v", err)
	}
	defer src.Close()

	ctx := context.Background()
	a, err := src.ReadFrame(ctx)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	b, err := src.ReadFrame(ctx)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	// Consecutive frames continue the same waveform: the step across the
	// frame boundary must be no larger than the biggest step inside a frame.
	var maxStep float32
	for i := 1; i < len(a); i++ {
		if d := abs32(a[i] - a[i-1]); d > maxStep {
			maxStep = d
		}
	}
	if d := abs32(b[0] - a[len(a)-1]); d > maxStep*1.01 {
		t.Errorf("discontinuity at frame boundary: step %v, max in-frame step %v", d, maxStep)
	}
}

func TestToneSource_ClosedAndInvalid(t *testing.T) {
	t.Parallel()
	if _, err := audio.NewToneSource(0, 320); err == nil {
		t.Error("zero frequency accepted, want error")
	}
	if _, err := audio.NewToneSource(440, 0); err == nil {
		t.Error("zero frame size accepted, want error")
	}

	src, err := audio.NewToneSource(440, 320)
	if err != nil {
		t.Fatalf("NewToneSource: %v", err)
	}
	src.Close()
	if _, err := src.ReadFrame(context.Background()); err == nil {
		t.Error("ReadFrame after Close succeeded, want error")
	}
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
