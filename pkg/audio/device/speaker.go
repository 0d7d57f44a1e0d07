package device

import (
	"bytes"
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/voxping/voxping/pkg/audio"
)

// oto allows exactly one context per process, so every Speaker shares it.
var (
	otoOnce sync.Once
	otoCtx  *oto.Context
	otoErr  error
)

func otoContext() (*oto.Context, error) {
	otoOnce.Do(func() {
		op := &oto.NewContextOptions{
			SampleRate:   audio.WireSampleRate,
			ChannelCount: audio.WireChannels,
			Format:       oto.FormatSignedInt16LE,
		}
		var ready chan struct{}
		otoCtx, ready, otoErr = oto.NewContext(op)
		if otoErr == nil {
			<-ready
		}
	})
	return otoCtx, otoErr
}

// Speaker plays mono float32 frames on the default output device at the
// wire sample rate. Play is synchronous: it returns once the frame has
// finished playing, which is what the playback queue relies on to keep
// frames from overlapping.
type Speaker struct {
	mu     sync.Mutex
	closed bool
}

// OpenSpeaker prepares the default output device for playback.
func OpenSpeaker() (*Speaker, error) {
	if _, err := otoContext(); err != nil {
		return nil, fmt.Errorf("speaker: init output device: %w", err)
	}
	return &Speaker{}, nil
}

// Play converts the frame to 16-bit PCM, plays it, and blocks until the
// device has drained it.
func (s *Speaker) Play(frame []float32) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("speaker: closed")
	}
	s.mu.Unlock()

	if len(frame) == 0 {
		return nil
	}
	ctx, err := otoContext()
	if err != nil {
		return err
	}

	player := ctx.NewPlayer(bytes.NewReader(audio.EncodePCM16(frame)))
	defer player.Close()
	player.Play()
	for player.IsPlaying() {
		time.Sleep(time.Millisecond)
	}
	return nil
}

// Close marks the speaker closed. The shared output context stays alive
// for the rest of the process.
func (s *Speaker) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
