package audio

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync"
)

// wavHeaderSize is the length of a canonical RIFF/WAVE header with a single
// fmt and data chunk.
const wavHeaderSize = 44

// WAVWriter records float32 frames to a PCM16 WAV file. Frames are encoded
// with [EncodePCM16] as they are written; the RIFF size fields are patched on
// Close. Safe for concurrent use — sessions write from both the capture and
// receive goroutines.
type WAVWriter struct {
	mu         sync.Mutex
	f          *os.File
	sampleRate int
	channels   int
	dataLen    uint32
	closed     bool
}

// NewWAVWriter creates path (truncating an existing file) and writes a
// placeholder header for mono PCM16 at sampleRate.
func NewWAVWriter(path string, sampleRate int) (*WAVWriter, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("wav: sample rate must be positive, got %d", sampleRate)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("wav: create %q: %w", path, err)
	}
	w := &WAVWriter{f: f, sampleRate: sampleRate, channels: WireChannels}
	if _, err := f.Write(w.header()); err != nil {
		f.Close()
		return nil, fmt.Errorf("wav: write header: %w", err)
	}
	return w, nil
}

// WriteFrame appends one frame of samples to the file.
func (w *WAVWriter) WriteFrame(samples []float32) error {
	if len(samples) == 0 {
		return nil
	}
	pcm := EncodePCM16(samples)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return fmt.Errorf("wav: writer closed")
	}
	if _, err := w.f.Write(pcm); err != nil {
		return fmt.Errorf("wav: write: %w", err)
	}
	w.dataLen += uint32(len(pcm))
	return nil
}

// Close patches the RIFF and data chunk sizes and closes the file.
// Idempotent.
func (w *WAVWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true

	if _, err := w.f.WriteAt(w.header(), 0); err != nil {
		w.f.Close()
		return fmt.Errorf("wav: finalise header: %w", err)
	}
	if err := w.f.Close(); err != nil {
		return fmt.Errorf("wav: close: %w", err)
	}
	return nil
}

// header builds the 44-byte RIFF/WAVE header for the current data length.
func (w *WAVWriter) header() []byte {
	const bitsPerSample = 16
	byteRate := w.sampleRate * w.channels * bitsPerSample / 8
	blockAlign := w.channels * bitsPerSample / 8

	h := make([]byte, wavHeaderSize)
	copy(h[0:4], "RIFF")
	binary.LittleEndian.PutUint32(h[4:8], 36+w.dataLen)
	copy(h[8:12], "WAVE")

	copy(h[12:16], "fmt ")
	binary.LittleEndian.PutUint32(h[16:20], 16) // PCM fmt chunk size
	binary.LittleEndian.PutUint16(h[20:22], 1)  // PCM format tag
	binary.LittleEndian.PutUint16(h[22:24], uint16(w.channels))
	binary.LittleEndian.PutUint32(h[24:28], uint32(w.sampleRate))
	binary.LittleEndian.PutUint32(h[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(h[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(h[34:36], bitsPerSample)

	copy(h[36:40], "data")
	binary.LittleEndian.PutUint32(h[40:44], w.dataLen)
	return h
}
