package audio

import (
	"log/slog"
	"sync"
)

// PlaybackQueue plays frames through a [Sink] strictly in arrival order.
//
// Push appends a frame and starts a drain goroutine if one is not already
// running; the mutex-guarded draining flag guarantees at most one drain loop
// per queue. The drain loop plays each frame to completion before dequeuing
// the next and keeps going as long as frames arrive, so frames enqueued
// mid-drain are never dropped or reordered.
//
// A queue is owned by exactly one session. After Abandon it accepts no more
// frames; every connect constructs a fresh queue.
type PlaybackQueue struct {
	sink Sink

	mu        sync.Mutex
	frames    [][]float32
	draining  bool
	abandoned bool
}

// NewPlaybackQueue creates a queue that plays through sink. The queue does
// not close the sink; the owner does.
func NewPlaybackQueue(sink Sink) *PlaybackQueue {
	return &PlaybackQueue{sink: sink}
}

// Push enqueues a frame for playback and triggers the drain loop if idle.
// Empty frames and pushes after Abandon are ignored.
func (q *PlaybackQueue) Push(frame []float32) {
	if len(frame) == 0 {
		return
	}
	q.mu.Lock()
	if q.abandoned {
		q.mu.Unlock()
		return
	}
	q.frames = append(q.frames, frame)
	start := !q.draining
	if start {
		q.draining = true
	}
	q.mu.Unlock()

	if start {
		go q.drain()
	}
}

func (q *PlaybackQueue) drain() {
	for {
		q.mu.Lock()
		if q.abandoned || len(q.frames) == 0 {
			q.draining = false
			q.mu.Unlock()
			return
		}
		frame := q.frames[0]
		q.frames = q.frames[1:]
		q.mu.Unlock()

		if err := q.sink.Play(frame); err != nil {
			slog.Warn("playback: sink error, discarding queued audio", "err", err)
			q.mu.Lock()
			q.frames = nil
			q.draining = false
			q.mu.Unlock()
			return
		}
	}
}

// Playing reports whether the drain loop is active, i.e. frames remain or
// one is currently being played.
func (q *PlaybackQueue) Playing() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.draining
}

// Depth returns the number of frames waiting to be played (excluding a frame
// currently in the sink).
func (q *PlaybackQueue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.frames)
}

// Abandon discards all queued frames and stops the drain loop at the next
// frame boundary. It does not wait for an in-flight Play to finish and
// returns immediately. The queue is unusable afterwards.
func (q *PlaybackQueue) Abandon() {
	q.mu.Lock()
	q.abandoned = true
	q.frames = nil
	q.mu.Unlock()
}
