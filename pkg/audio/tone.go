package audio

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"
)

// toneAmplitude keeps the synthetic signal well below full scale so it is
// audible but not unpleasant on the far end.
const toneAmplitude = 0.2

// ToneSource is a [Source] that synthesises a continuous sine wave at
// [WireSampleRate]. It paces ReadFrame to real time so the send path behaves
// like a microphone, which makes it useful for exercising a session on
// machines without audio hardware.
type ToneSource struct {
	freqHz       float64
	frameSamples int

	mu     sync.Mutex
	pos    int // absolute sample position, for phase continuity across frames
	next   time.Time
	closed bool
}

// NewToneSource creates a tone source emitting frameSamples samples per
// frame at freqHz.
func NewToneSource(freqHz float64, frameSamples int) (*ToneSource, error) {
	if freqHz <= 0 {
		return nil, fmt.Errorf("tone: frequency must be positive, got %v", freqHz)
	}
	if frameSamples <= 0 {
		return nil, fmt.Errorf("tone: frame size must be positive, got %d", frameSamples)
	}
	return &ToneSource{freqHz: freqHz, frameSamples: frameSamples}, nil
}

// ReadFrame returns the next frame of the sine wave, sleeping as needed so
// frames are produced at real-time rate.
func (s *ToneSource) ReadFrame(ctx context.Context) ([]float32, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, fmt.Errorf("tone: source closed")
	}
	frameDur := time.Duration(s.frameSamples) * time.Second / WireSampleRate
	now := time.Now()
	if s.next.IsZero() {
		s.next = now
	}
	wait := s.next.Sub(now)
	s.next = s.next.Add(frameDur)
	start := s.pos
	s.pos += s.frameSamples
	s.mu.Unlock()

	if wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	frame := make([]float32, s.frameSamples)
	for i := range frame {
		t := float64(start+i) / WireSampleRate
		frame[i] = float32(toneAmplitude * math.Sin(2*math.Pi*s.freqHz*t))
	}
	return frame, nil
}

// SampleRate returns [WireSampleRate]; tone sources always generate at the
// wire rate.
func (s *ToneSource) SampleRate() int { return WireSampleRate }

// Close stops the source. Subsequent ReadFrame calls return an error.
func (s *ToneSource) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
