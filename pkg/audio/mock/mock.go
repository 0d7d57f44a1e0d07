// Package mock provides scripted audio sources and recording sinks for
// testing session and playback behaviour without audio hardware.
package mock

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Source is a scripted [audio.Source]. It hands out the configured frames in
// order (optionally paced by Interval) and then blocks like an idle
// microphone until closed or the context is cancelled. When Loop is set, the
// frame list repeats instead of blocking.
type Source struct {
	// Frames are returned by successive ReadFrame calls.
	Frames [][]float32

	// Rate is the reported sample rate. Zero means 16000.
	Rate int

	// Interval paces ReadFrame calls. Zero returns frames immediately.
	Interval time.Duration

	// Loop repeats Frames indefinitely instead of blocking after the last one.
	Loop bool

	mu     sync.Mutex
	idx    int
	closed chan struct{}
	once   sync.Once
}

func (s *Source) done() chan struct{} {
	s.once.Do(func() { s.closed = make(chan struct{}) })
	return s.closed
}

// ReadFrame returns the next scripted frame.
func (s *Source) ReadFrame(ctx context.Context) ([]float32, error) {
	done := s.done()

	if s.Interval > 0 {
		timer := time.NewTimer(s.Interval)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-done:
			return nil, fmt.Errorf("mock source closed")
		}
	}

	s.mu.Lock()
	if s.idx >= len(s.Frames) && s.Loop && len(s.Frames) > 0 {
		s.idx = 0
	}
	if s.idx < len(s.Frames) {
		frame := s.Frames[s.idx]
		s.idx++
		s.mu.Unlock()
		return frame, nil
	}
	s.mu.Unlock()

	// Out of scripted frames: behave like a silent microphone.
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-done:
		return nil, fmt.Errorf("mock source closed")
	}
}

// SampleRate returns the configured rate, defaulting to the wire rate.
func (s *Source) SampleRate() int {
	if s.Rate > 0 {
		return s.Rate
	}
	return 16000
}

// Close unblocks pending and future ReadFrame calls.
func (s *Source) Close() error {
	s.once.Do(func() { s.closed = make(chan struct{}) })
	select {
	case <-s.closed:
	default:
		close(s.closed)
	}
	return nil
}

// Sink is a recording [audio.Sink]. It stores every played frame and detects
// overlapping Play calls, which would violate the playback queue's
// sequential-playback contract.
type Sink struct {
	// PlayDelay simulates the real-time duration of each frame.
	PlayDelay time.Duration

	// PlayErr, when non-nil, is returned by every Play call.
	PlayErr error

	mu         sync.Mutex
	frames     [][]float32
	active     int
	overlapped bool
	closed     bool
}

// Play records the frame, sleeping PlayDelay to emulate playback time.
func (s *Sink) Play(frame []float32) error {
	s.mu.Lock()
	s.active++
	if s.active > 1 {
		s.overlapped = true
	}
	s.mu.Unlock()

	if s.PlayDelay > 0 {
		time.Sleep(s.PlayDelay)
	}

	s.mu.Lock()
	s.active--
	if s.PlayErr == nil {
		s.frames = append(s.frames, frame)
	}
	err := s.PlayErr
	s.mu.Unlock()
	return err
}

// Frames returns a snapshot of all frames played so far, in playback order.
func (s *Sink) Frames() [][]float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]float32, len(s.frames))
	copy(out, s.frames)
	return out
}

// Overlapped reports whether two Play calls ever ran concurrently.
func (s *Sink) Overlapped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.overlapped
}

// Closed reports whether Close has been called.
func (s *Sink) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close marks the sink closed.
func (s *Sink) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
