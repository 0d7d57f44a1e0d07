package audio_test

import (
	"errors"
	"testing"
	"time"

	"github.com/voxping/voxping/pkg/audio"
	"github.com/voxping/voxping/pkg/audio/mock"
)

// waitFor polls cond until it returns true or the timeout elapses.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func frame(v float32) []float32 { return []float32{v, v, v} }

func TestPlaybackQueue_PlaysInOrder(t *testing.T) {
	t.Parallel()
	sink := &mock.Sink{PlayDelay: 10 * time.Millisecond}
	q := audio.NewPlaybackQueue(sink)

	// Three frames arrive before the first finishes playing.
	q.Push(frame(0.1))
	q.Push(frame(0.2))
	q.Push(frame(0.3))

	waitFor(t, time.Second, func() bool { return len(sink.Frames()) == 3 })

	got := sink.Frames()
	want := []float32{0.1, 0.2, 0.3}
	for i, w := range want {
		if got[i][0] != w {
			t.Errorf("frame %d: got %v, want %v", i, got[i][0], w)
		}
	}
	if sink.Overlapped() {
		t.Error("frames played concurrently; want strictly sequential playback")
	}
}

func TestPlaybackQueue_KeepsDrainingOnMidDrainPush(t *testing.T) {
	t.Parallel()
	sink := &mock.Sink{PlayDelay: 15 * time.Millisecond}
	q := audio.NewPlaybackQueue(sink)

	q.Push(frame(1))
	// Enqueue more while the first frame is still in the sink.
	time.Sleep(5 * time.Millisecond)
	q.Push(frame(2))
	q.Push(frame(3))

	waitFor(t, time.Second, func() bool { return len(sink.Frames()) == 3 })
	if sink.Overlapped() {
		t.Error("overlapping playback detected")
	}
}

func TestPlaybackQueue_PlayingFlag(t *testing.T) {
	t.Parallel()
	sink := &mock.Sink{PlayDelay: 20 * time.Millisecond}
	q := audio.NewPlaybackQueue(sink)

	if q.Playing() {
		t.Error("Playing() = true before any push")
	}
	q.Push(frame(1))
	if !q.Playing() {
		t.Error("Playing() = false right after push")
	}
	waitFor(t, time.Second, func() bool { return !q.Playing() })
}

func TestPlaybackQueue_IgnoresEmptyFrames(t *testing.T) {
	t.Parallel()
	sink := &mock.Sink{}
	q := audio.NewPlaybackQueue(sink)

	q.Push(nil)
	q.Push([]float32{})
	time.Sleep(10 * time.Millisecond)
	if n := len(sink.Frames()); n != 0 {
		t.Errorf("played %d frames, want 0", n)
	}
	if q.Playing() {
		t.Error("Playing() = true after empty pushes")
	}
}

func TestPlaybackQueue_AbandonDiscardsQueued(t *testing.T) {
	t.Parallel()
	sink := &mock.Sink{PlayDelay: 20 * time.Millisecond}
	q := audio.NewPlaybackQueue(sink)

	q.Push(frame(1))
	q.Push(frame(2))
	q.Push(frame(3))
	q.Abandon()

	// The in-flight frame may finish, but queued frames must not play and
	// new pushes must be ignored.
	q.Push(frame(4))
	waitFor(t, time.Second, func() bool { return !q.Playing() })
	if n := len(sink.Frames()); n > 1 {
		t.Errorf("played %d frames after Abandon, want at most 1", n)
	}
}

func TestPlaybackQueue_SinkErrorStopsDrain(t *testing.T) {
	t.Parallel()
	sink := &mock.Sink{PlayErr: errors.New("device gone")}
	q := audio.NewPlaybackQueue(sink)

	q.Push(frame(1))
	q.Push(frame(2))
	waitFor(t, time.Second, func() bool { return !q.Playing() })
	if q.Depth() != 0 {
		t.Errorf("Depth() = %d after sink error, want 0", q.Depth())
	}
}
