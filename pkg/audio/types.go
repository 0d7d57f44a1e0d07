// Package audio provides the PCM primitives for the voxping client: the
// bit-exact PCM16 wire codec, a mono resampler, the FIFO playback queue that
// drives sequential frame playback, a WAV recorder, and a synthetic tone
// source for headless operation.
//
// All audio inside the client is mono float32 in [-1, 1]. The wire format is
// fixed at 16 kHz signed 16-bit little-endian PCM; [EncodePCM16] and
// [DecodePCM16] implement the exact quantisation contract the agent endpoint
// expects.
//
// This package lives under pkg/ because alternative capture and playback
// backends (see audio/device, audio/mock) are expected to implement [Source]
// and [Sink].
package audio

import "context"

const (
	// WireSampleRate is the sample rate of frames on the transport, in Hz.
	WireSampleRate = 16000

	// WireChannels is the channel count of frames on the transport.
	WireChannels = 1
)

// Source produces blocks of mono float32 samples in [-1, 1], typically from
// a microphone. A Source is owned by exactly one session and is never reused
// after Close.
type Source interface {
	// ReadFrame blocks until a full frame of samples is available or ctx is
	// cancelled. The returned slice is owned by the caller.
	ReadFrame(ctx context.Context) ([]float32, error)

	// SampleRate returns the rate the source captures at, in Hz. Sources
	// running at a rate other than [WireSampleRate] are resampled by the
	// session before transmission.
	SampleRate() int

	// Close stops capture and releases the underlying device. ReadFrame
	// calls in flight return an error. Safe to call more than once.
	Close() error
}

// Sink plays one frame of mono float32 samples at [WireSampleRate].
//
// Play must not return until the frame's full duration has been handed to
// the output device — the playback queue relies on this to guarantee
// sequential, non-overlapping playback.
type Sink interface {
	Play(frame []float32) error
	Close() error
}
