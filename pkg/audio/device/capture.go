// Package device provides microphone capture and speaker playback on the
// host machine, implementing the audio.Source and audio.Sink interfaces via
// miniaudio (github.com/gen2brain/malgo) and oto.
//
// Each session opens its own Capture; the underlying miniaudio context and
// device are torn down on Close and never shared or reused. Speaker playback
// shares the process-wide oto context (an oto limitation) but each Speaker
// owns its players.
package device

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/gen2brain/malgo"
)

// CaptureConfig configures a microphone capture device.
type CaptureConfig struct {
	// SampleRate is the rate to capture at, in Hz.
	SampleRate int

	// FrameSamples is the number of samples returned per ReadFrame call.
	FrameSamples int
}

// Capture reads mono float32 audio from the default microphone. The device
// callback appends samples to an internal buffer; ReadFrame blocks until a
// full frame has accumulated.
type Capture struct {
	ctx    *malgo.AllocatedContext
	device *malgo.Device

	sampleRate   int
	frameSamples int

	mu     sync.Mutex
	cond   *sync.Cond
	buf    []float32
	closed bool
}

// OpenCapture initialises the audio backend, opens the default capture
// device in mono float32 at cfg.SampleRate, and starts capturing.
func OpenCapture(cfg CaptureConfig) (*Capture, error) {
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("capture: sample rate must be positive, got %d", cfg.SampleRate)
	}
	if cfg.FrameSamples <= 0 {
		return nil, fmt.Errorf("capture: frame size must be positive, got %d", cfg.FrameSamples)
	}

	ctxConfig := malgo.ContextConfig{}
	ctxConfig.ThreadPriority = malgo.ThreadPriorityRealtime

	allocCtx, err := malgo.InitContext(nil, ctxConfig, nil)
	if err != nil {
		return nil, fmt.Errorf("capture: init audio context: %w", err)
	}

	c := &Capture{
		ctx:          allocCtx,
		sampleRate:   cfg.SampleRate,
		frameSamples: cfg.FrameSamples,
		buf:          make([]float32, 0, cfg.SampleRate), // 1 second headroom
	}
	c.cond = sync.NewCond(&c.mu)

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = uint32(cfg.SampleRate)
	deviceConfig.PeriodSizeInMilliseconds = 20

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			samples := bytesToF32(input)
			c.mu.Lock()
			if !c.closed {
				c.buf = append(c.buf, samples...)
			}
			c.mu.Unlock()
			c.cond.Signal()
		},
	}

	device, err := malgo.InitDevice(allocCtx.Context, deviceConfig, callbacks)
	if err != nil {
		allocCtx.Uninit()
		return nil, fmt.Errorf("capture: open microphone: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		allocCtx.Uninit()
		return nil, fmt.Errorf("capture: start microphone: %w", err)
	}
	c.device = device
	return c, nil
}

// ReadFrame blocks until FrameSamples samples are buffered, then returns
// them. Returns an error if the device is closed or ctx is cancelled.
func (c *Capture) ReadFrame(ctx context.Context) ([]float32, error) {
	// Wake the cond wait when the context is cancelled.
	stop := context.AfterFunc(ctx, func() { c.cond.Broadcast() })
	defer stop()

	c.mu.Lock()
	defer c.mu.Unlock()
	for len(c.buf) < c.frameSamples {
		if c.closed {
			return nil, fmt.Errorf("capture: device closed")
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.cond.Wait()
	}

	frame := make([]float32, c.frameSamples)
	copy(frame, c.buf[:c.frameSamples])
	c.buf = c.buf[c.frameSamples:]
	return frame, nil
}

// SampleRate returns the device capture rate in Hz.
func (c *Capture) SampleRate() int { return c.sampleRate }

// Close stops the microphone and releases the device and audio context.
// Pending ReadFrame calls return an error. Safe to call more than once.
func (c *Capture) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.buf = nil
	c.mu.Unlock()
	c.cond.Broadcast()

	if c.device != nil {
		_ = c.device.Stop()
		c.device.Uninit()
	}
	_ = c.ctx.Uninit()
	return nil
}

// bytesToF32 reinterprets little-endian float32 PCM bytes as samples.
func bytesToF32(data []byte) []float32 {
	n := len(data) / 4
	out := make([]float32, n)
	for i := range n {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return out
}
