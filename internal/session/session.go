// Package session implements the duplex voice session between the local
// audio devices and a remote voice agent.
//
// A session captures microphone frames, encodes them as base64 PCM16, and
// streams them over a JSON-framed WebSocket; agent audio flows back the same
// way and is played through a FIFO playback queue. The session is a small
// state machine: disconnected → connecting → connected, ending in either
// disconnected (clean stop) or error. Audio transmission is gated on the
// agent's "connected" acknowledgement, not on the socket being open.
package session

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"

	"github.com/voxping/voxping/internal/observe"
	"github.com/voxping/voxping/pkg/audio"
)

// Status is the lifecycle state of a [Session].
type Status int

const (
	// StatusDisconnected means no connection exists. This is both the
	// initial state and the state after a clean teardown.
	StatusDisconnected Status = iota

	// StatusConnecting means the WebSocket handshake has begun but the
	// agent has not yet acknowledged the session. No audio is sent.
	StatusConnecting

	// StatusConnected means the agent acknowledged the session and audio
	// flows in both directions.
	StatusConnected

	// StatusError means the session ended abnormally. [Session.LastError]
	// describes the cause until the next Disconnect clears it.
	StatusError
)

// String returns the lowercase name of the status.
func (st Status) String() string {
	switch st {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusError:
		return "error"
	}
	return fmt.Sprintf("Status(%d)", int(st))
}

var (
	// ErrNotDisconnected is returned by Connect when a session is already
	// connecting, connected, or in the error state.
	ErrNotDisconnected = errors.New("session is not disconnected")

	// ErrAckTimeout is the cause recorded when the agent fails to
	// acknowledge the session within the configured timeout.
	ErrAckTimeout = errors.New("agent acknowledgement timed out")
)

// Config describes a session's endpoint and audio plumbing.
type Config struct {
	// Endpoint is the base WebSocket URL of the agent. Each connection
	// appends a fresh session ID path segment.
	Endpoint string

	// APIKey, when non-empty, is sent as a Bearer token in the handshake.
	APIKey string

	// AckTimeout bounds the wait for the agent's "connected" message after
	// the handshake. Zero means wait indefinitely.
	AckTimeout time.Duration

	// NewSource opens the capture device for a connection. Called once per
	// Connect; the session closes the source on teardown.
	NewSource func() (audio.Source, error)

	// NewSink opens the playback device for a connection. Called once per
	// Connect; the session closes the sink on teardown.
	NewSink func() (audio.Sink, error)

	// OutboundWAV, when set, records every captured frame to a WAV file.
	OutboundWAV string

	// InboundWAV, when set, records every decoded agent frame to a WAV file.
	InboundWAV string
}

// ── Options ────────────────────────────────────────────────────────────────────

// Option is a functional option for configuring a Session.
type Option func(*Session)

// WithLogger sets the logger used by the session. Defaults to [slog.Default].
func WithLogger(log *slog.Logger) Option {
	return func(s *Session) { s.log = log }
}

// WithMetrics sets the metrics instance used by the session. Defaults to
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// WithStatusFunc registers a callback invoked on every status transition.
// The callback runs outside the session's locks but must still return
// promptly; it may not call back into the session.
func WithStatusFunc(fn func(Status)) Option {
	return func(s *Session) { s.onStatus = fn }
}

// ── Session ────────────────────────────────────────────────────────────────────

// Session is a single client endpoint towards a voice agent. All methods are
// safe for concurrent use. The zero value is not usable; construct with [New].
type Session struct {
	cfg      Config
	log      *slog.Logger
	metrics  *observe.Metrics
	onStatus func(Status)

	// writeMu serialises WebSocket writes across the capture loop, the
	// start message, and the best-effort stop on teardown.
	writeMu sync.Mutex

	mu       sync.Mutex
	gen      uint64 // bumped on every connect and teardown; stale goroutines no-op
	status   Status
	muted    bool
	lastErr  error
	conn     *websocket.Conn
	cancel   context.CancelFunc
	source   audio.Source
	sink     audio.Sink
	queue    *audio.PlaybackQueue
	outTap   *audio.WAVWriter
	inTap    *audio.WAVWriter
	ackCh    chan struct{}
	dialedAt time.Time
}

// New creates a disconnected session for the given config.
func New(cfg Config, opts ...Option) (*Session, error) {
	var errs []error
	if cfg.Endpoint == "" {
		errs = append(errs, errors.New("session: endpoint is required"))
	}
	if cfg.NewSource == nil {
		errs = append(errs, errors.New("session: audio source factory is required"))
	}
	if cfg.NewSink == nil {
		errs = append(errs, errors.New("session: audio sink factory is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	s := &Session{cfg: cfg}
	for _, o := range opts {
		o(s)
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s, nil
}

// Connect opens the audio devices, dials the agent, and sends the start
// message. It returns once streaming is set up; the transition to
// [StatusConnected] happens asynchronously when the agent acknowledges the
// session. ctx bounds the dial only, not the session lifetime.
//
// Connect is only valid in the disconnected state; call [Session.Disconnect]
// first to leave the error state.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.status != StatusDisconnected {
		cur := s.status
		s.mu.Unlock()
		return fmt.Errorf("session: connect while %s: %w", cur, ErrNotDisconnected)
	}
	s.gen++
	g := s.gen
	s.status = StatusConnecting
	s.lastErr = nil
	s.ackCh = make(chan struct{})
	ackCh := s.ackCh
	sessCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.mu.Unlock()
	s.notify(StatusConnecting)

	src, err := s.cfg.NewSource()
	if err != nil {
		err = fmt.Errorf("session: open audio source: %w", err)
		s.failFrom(g, err)
		return err
	}
	snk, err := s.cfg.NewSink()
	if err != nil {
		_ = src.Close()
		err = fmt.Errorf("session: open audio sink: %w", err)
		s.failFrom(g, err)
		return err
	}

	outTap, inTap, err := s.openTaps()
	if err != nil {
		_ = src.Close()
		_ = snk.Close()
		s.failFrom(g, err)
		return err
	}

	wsURL := strings.TrimRight(s.cfg.Endpoint, "/") + "/" + uuid.NewString()
	dialOpts := &websocket.DialOptions{}
	if s.cfg.APIKey != "" {
		dialOpts.HTTPHeader = http.Header{
			"Authorization": []string{"Bearer " + s.cfg.APIKey},
		}
	}
	conn, _, err := websocket.Dial(ctx, wsURL, dialOpts)
	if err != nil {
		closeTaps(outTap, inTap)
		_ = src.Close()
		_ = snk.Close()
		err = fmt.Errorf("session: dial agent: %w", err)
		s.failFrom(g, err)
		return err
	}

	s.mu.Lock()
	if s.gen != g {
		// Disconnect raced the dial; this connection never becomes live.
		s.mu.Unlock()
		conn.Close(websocket.StatusNormalClosure, "session closed")
		closeTaps(outTap, inTap)
		_ = src.Close()
		_ = snk.Close()
		return errors.New("session: closed during connect")
	}
	s.conn = conn
	s.source = src
	s.sink = snk
	s.queue = audio.NewPlaybackQueue(snk)
	s.outTap, s.inTap = outTap, inTap
	s.dialedAt = time.Now()
	// Incremented in the same critical section that stores the connection;
	// the decrement in shutdown is keyed off the stored conn.
	s.metrics.ActiveSessions.Add(ctx, 1)
	s.mu.Unlock()

	if err := s.writeJSON(sessCtx, clientMessage{Type: typeStart}); err != nil {
		err = fmt.Errorf("session: send start: %w", err)
		s.failFrom(g, err)
		return err
	}

	s.log.Info("session started, waiting for agent acknowledgement", "endpoint", wsURL)

	go s.receiveLoop(sessCtx, g, conn)
	go s.captureLoop(sessCtx, g, src)
	if s.cfg.AckTimeout > 0 {
		go func() {
			t := time.NewTimer(s.cfg.AckTimeout)
			defer t.Stop()
			select {
			case <-t.C:
				s.failFrom(g, fmt.Errorf("session: no acknowledgement within %s: %w", s.cfg.AckTimeout, ErrAckTimeout))
			case <-ackCh:
			case <-sessCtx.Done():
			}
		}()
	}
	return nil
}

// Disconnect tears the session down and returns it to the disconnected
// state. It is valid in every state. A best-effort stop message is sent when
// the connection is still open, and the mute flag and last error are cleared.
func (s *Session) Disconnect() {
	// A concurrent failure can bump the generation between reading it and
	// acting on it; retry with the then-current generation so Disconnect
	// always lands on the disconnected state, whatever it raced with.
	for {
		s.mu.Lock()
		g := s.gen
		s.mu.Unlock()
		if s.shutdown(g, StatusDisconnected, nil, true) {
			return
		}
	}
}

// ToggleMute flips the mute flag and returns the new value. While muted,
// frames are still captured and encoded but not transmitted.
func (s *Session) ToggleMute() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.muted = !s.muted
	return s.muted
}

// Muted reports whether outbound audio is currently suppressed.
func (s *Session) Muted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.muted
}

// Status returns the current lifecycle state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// LastError returns the cause of the most recent failure, or nil. It is set
// when the session enters [StatusError] and cleared by Disconnect.
func (s *Session) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Playing reports whether agent audio is currently being played back.
func (s *Session) Playing() bool {
	s.mu.Lock()
	q := s.queue
	s.mu.Unlock()
	return q != nil && q.Playing()
}

// ── Streaming loops ────────────────────────────────────────────────────────────

// captureLoop reads frames from the source, resamples them to the wire rate,
// and transmits them while the session is connected and unmuted. Frames are
// encoded even while muted so that muting has no effect on capture timing.
func (s *Session) captureLoop(ctx context.Context, g uint64, src audio.Source) {
	rate := src.SampleRate()
	for {
		frame, err := src.ReadFrame(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.failFrom(g, fmt.Errorf("session: read audio frame: %w", err))
			return
		}
		if rate != audio.WireSampleRate {
			frame = audio.ResampleMonoF32(frame, rate, audio.WireSampleRate)
		}
		pcm := audio.EncodePCM16(frame)

		s.mu.Lock()
		stale := s.gen != g
		send := !stale && s.status == StatusConnected && !s.muted
		outTap := s.outTap
		s.mu.Unlock()
		if stale {
			return
		}

		if outTap != nil {
			if err := outTap.WriteFrame(frame); err != nil {
				s.log.Warn("outbound recording failed", "error", err)
			}
		}
		if !send {
			continue
		}

		msg := clientMessage{
			Type: typeAudio,
			Data: base64.StdEncoding.EncodeToString(pcm),
		}
		if err := s.writeJSON(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return
			}
			s.failFrom(g, fmt.Errorf("session: send audio frame: %w", err))
			return
		}
		s.metrics.FramesSent.Add(ctx, 1)
	}
}

// receiveLoop reads agent messages and dispatches them. Malformed messages
// are logged and dropped without ending the session; unknown message types
// are ignored for forward compatibility.
func (s *Session) receiveLoop(ctx context.Context, g uint64, conn *websocket.Conn) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.failFrom(g, fmt.Errorf("session: connection lost: %w", err))
			return
		}

		var msg serverMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.log.Warn("dropping unparseable agent message", "error", err)
			s.metrics.DecodeErrors.Add(ctx, 1, metric.WithAttributes(observe.Attr("reason", "bad_json")))
			continue
		}

		switch msg.Type {
		case typeConnected:
			s.markConnected(g)

		case typeAudio:
			pcm, err := base64.StdEncoding.DecodeString(msg.Data)
			if err != nil {
				s.log.Warn("dropping audio message with invalid base64 payload", "error", err)
				s.metrics.DecodeErrors.Add(ctx, 1, metric.WithAttributes(observe.Attr("reason", "bad_base64")))
				continue
			}
			frame := audio.DecodePCM16(pcm)
			if len(frame) == 0 {
				continue
			}

			s.mu.Lock()
			stale := s.gen != g
			queue := s.queue
			inTap := s.inTap
			s.mu.Unlock()
			if stale {
				return
			}

			if inTap != nil {
				if err := inTap.WriteFrame(frame); err != nil {
					s.log.Warn("inbound recording failed", "error", err)
				}
			}
			queue.Push(frame)
			s.metrics.FramesReceived.Add(ctx, 1)

		case typeError:
			message := msg.Message
			if message == "" {
				message = "agent reported an unspecified error"
			}
			s.failFrom(g, fmt.Errorf("session: agent error: %s", message))
			return

		case typeStopped:
			s.log.Info("agent ended the session")
			s.shutdown(g, StatusDisconnected, nil, false)
			return

		default:
			// Unknown message types are ignored.
		}
	}
}

// markConnected transitions connecting → connected on the agent's
// acknowledgement. Acknowledgements for stale generations and duplicate
// acknowledgements are ignored.
func (s *Session) markConnected(g uint64) {
	s.mu.Lock()
	if s.gen != g || s.status != StatusConnecting {
		s.mu.Unlock()
		return
	}
	s.status = StatusConnected
	close(s.ackCh)
	elapsed := time.Since(s.dialedAt)
	s.mu.Unlock()

	s.metrics.ConnectDuration.Record(context.Background(), elapsed.Seconds())
	s.log.Info("agent acknowledged session", "connect_duration", elapsed)
	s.notify(StatusConnected)
}

// ── Teardown ───────────────────────────────────────────────────────────────────

// failFrom ends generation g's session in the error state.
func (s *Session) failFrom(g uint64, cause error) {
	s.log.Error("session failed", "error", cause)
	s.shutdown(g, StatusError, cause, false)
}

// shutdown tears down generation g and moves the session to final. It
// reports whether it acted: a stale generation is a no-op returning false,
// and callers that must take effect regardless (Disconnect) retry with the
// then-current generation.
func (s *Session) shutdown(g uint64, final Status, cause error, sendStop bool) bool {
	s.mu.Lock()
	if s.gen != g {
		s.mu.Unlock()
		return false
	}
	s.gen++

	conn := s.conn
	cancel := s.cancel
	src := s.source
	snk := s.sink
	queue := s.queue
	outTap, inTap := s.outTap, s.inTap
	started := s.dialedAt
	s.conn, s.cancel, s.source, s.sink, s.queue = nil, nil, nil, nil, nil
	s.outTap, s.inTap = nil, nil

	changed := s.status != final
	s.status = final
	if final == StatusError {
		s.lastErr = cause
	} else {
		s.lastErr = nil
		s.muted = false
	}
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		if sendStop {
			if data, err := json.Marshal(clientMessage{Type: typeStop}); err == nil {
				ctx, stop := context.WithTimeout(context.Background(), time.Second)
				s.writeMu.Lock()
				_ = conn.Write(ctx, websocket.MessageText, data)
				s.writeMu.Unlock()
				stop()
			}
		}
		_ = conn.Close(websocket.StatusNormalClosure, "session closed")
	}
	if queue != nil {
		queue.Abandon()
	}
	if src != nil {
		_ = src.Close()
	}
	if snk != nil {
		_ = snk.Close()
	}
	closeTaps(outTap, inTap)

	if conn != nil {
		s.metrics.ActiveSessions.Add(context.Background(), -1)
		s.metrics.SessionDuration.Record(context.Background(), time.Since(started).Seconds())
	}
	if changed {
		s.log.Info("session state changed", "status", final)
		s.notify(final)
	}
	return true
}

// ── Helpers ────────────────────────────────────────────────────────────────────

// writeJSON marshals v and writes it as a text WebSocket message.
func (s *Session) writeJSON(ctx context.Context, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("session: marshal: %w", err)
	}

	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return errors.New("session: not connected")
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return conn.Write(ctx, websocket.MessageText, data)
}

// openTaps opens the configured WAV recording files, if any.
func (s *Session) openTaps() (outTap, inTap *audio.WAVWriter, err error) {
	if s.cfg.OutboundWAV != "" {
		outTap, err = audio.NewWAVWriter(s.cfg.OutboundWAV, audio.WireSampleRate)
		if err != nil {
			return nil, nil, fmt.Errorf("session: open outbound recording: %w", err)
		}
	}
	if s.cfg.InboundWAV != "" {
		inTap, err = audio.NewWAVWriter(s.cfg.InboundWAV, audio.WireSampleRate)
		if err != nil {
			closeTaps(outTap, nil)
			return nil, nil, fmt.Errorf("session: open inbound recording: %w", err)
		}
	}
	return outTap, inTap, nil
}

func closeTaps(outTap, inTap *audio.WAVWriter) {
	if outTap != nil {
		_ = outTap.Close()
	}
	if inTap != nil {
		_ = inTap.Close()
	}
}

func (s *Session) notify(st Status) {
	if s.onStatus != nil {
		s.onStatus(st)
	}
}
