// Command voxping is an interactive test client for duplex voice agents.
// It streams microphone audio to an agent over a JSON-framed WebSocket and
// plays the agent's audio responses back through the speakers.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/voxping/voxping/internal/config"
	"github.com/voxping/voxping/internal/observe"
	"github.com/voxping/voxping/internal/session"
	"github.com/voxping/voxping/pkg/audio"
	"github.com/voxping/voxping/pkg/audio/device"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	endpoint := flag.String("endpoint", "", "agent WebSocket URL (overrides the config file)")
	toneHz := flag.Float64("tone", 0, "replace the microphone with a sine tone at this frequency in Hz")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := loadConfig(*configPath, *endpoint)
	if err != nil {
		fmt.Fprintf(os.Stderr, "voxping: %v\n", err)
		return 1
	}
	if *toneHz > 0 {
		cfg.Audio.ToneHz = *toneHz
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	slog.Info("voxping starting",
		"endpoint", cfg.Agent.Endpoint,
		"log_level", cfg.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	g, gctx := errgroup.WithContext(ctx)

	var metricsSrv *http.Server
	if cfg.Metrics.ListenAddr != "" {
		metricsSrv = observe.NewMetricsServer(cfg.Metrics.ListenAddr)
		g.Go(func() error {
			slog.Info("metrics endpoint listening", "addr", cfg.Metrics.ListenAddr)
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}

	// ── Session ───────────────────────────────────────────────────────────────
	sess, err := session.New(session.Config{
		Endpoint:    cfg.Agent.Endpoint,
		APIKey:      cfg.Agent.APIKey,
		AckTimeout:  cfg.Agent.AckTimeout,
		NewSource:   sourceFactory(cfg),
		NewSink:     func() (audio.Sink, error) { return device.OpenSpeaker() },
		OutboundWAV: cfg.Record.OutboundWAV,
		InboundWAV:  cfg.Record.InboundWAV,
	}, session.WithStatusFunc(func(st session.Status) {
		fmt.Printf("\r[%s]\n", st)
	}))
	if err != nil {
		slog.Error("failed to create session", "err", err)
		return 1
	}
	defer sess.Disconnect()

	printStartupSummary(cfg)

	if err := sess.Connect(ctx); err != nil {
		slog.Error("initial connect failed", "err", err)
	}

	// ── Interactive command loop ──────────────────────────────────────────────
	g.Go(func() error {
		err := commandLoop(gctx, sess)
		stop() // a quit command ends the whole program
		return err
	})

	g.Go(func() error {
		<-gctx.Done()
		if metricsSrv != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsSrv.Shutdown(shutdownCtx)
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	slog.Info("goodbye")
	return 0
}

// loadConfig reads the config file and applies the endpoint override. When no
// config file exists but an endpoint was given on the command line, a default
// config is synthesised so the client works without any file at all.
func loadConfig(path, endpointOverride string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if errors.Is(err, os.ErrNotExist) && endpointOverride != "" {
		cfg = &config.Config{}
		cfg.Agent.Endpoint = endpointOverride
		if err := config.Validate(cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}
	if endpointOverride != "" {
		cfg.Agent.Endpoint = endpointOverride
	}
	return cfg, nil
}

// sourceFactory returns the capture device constructor: a sine tone when
// configured, the real microphone otherwise.
func sourceFactory(cfg *config.Config) func() (audio.Source, error) {
	if cfg.Audio.ToneHz > 0 {
		return func() (audio.Source, error) {
			return audio.NewToneSource(cfg.Audio.ToneHz, cfg.Audio.FrameSamples)
		}
	}
	return func() (audio.Source, error) {
		return device.OpenCapture(device.CaptureConfig{
			SampleRate:   cfg.Audio.DeviceSampleRate,
			FrameSamples: captureFrameSamples(cfg),
		})
	}
}

// captureFrameSamples scales the wire-rate frame size to the device rate so
// that one captured frame resamples to one wire frame.
func captureFrameSamples(cfg *config.Config) int {
	n := cfg.Audio.FrameSamples * cfg.Audio.DeviceSampleRate / audio.WireSampleRate
	if n < 1 {
		n = 1
	}
	return n
}

// commandLoop reads single-letter commands from stdin until the context is
// cancelled or the user quits.
func commandLoop(ctx context.Context, sess *session.Session) error {
	fmt.Println("commands: m = toggle mute, s = stop/start session, q = quit")

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			switch line {
			case "m":
				if sess.ToggleMute() {
					fmt.Println("muted")
				} else {
					fmt.Println("unmuted")
				}
			case "s":
				if sess.Status() == session.StatusDisconnected {
					if err := sess.Connect(ctx); err != nil {
						slog.Error("connect failed", "err", err)
					}
				} else {
					sess.Disconnect()
				}
			case "q":
				sess.Disconnect()
				return nil
			case "":
			default:
				fmt.Printf("unknown command %q\n", line)
			}
		}
	}
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║          voxping — test session       ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printField("Endpoint", cfg.Agent.Endpoint)
	if cfg.Audio.ToneHz > 0 {
		printField("Source", fmt.Sprintf("tone %.0f Hz", cfg.Audio.ToneHz))
	} else {
		printField("Source", fmt.Sprintf("mic @ %d Hz", cfg.Audio.DeviceSampleRate))
	}
	printField("Frame", fmt.Sprintf("%d samples", cfg.Audio.FrameSamples))
	if cfg.Metrics.ListenAddr != "" {
		printField("Metrics", cfg.Metrics.ListenAddr)
	}
	if cfg.Record.OutboundWAV != "" {
		printField("Rec out", cfg.Record.OutboundWAV)
	}
	if cfg.Record.InboundWAV != "" {
		printField("Rec in", cfg.Record.InboundWAV)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printField(name, value string) {
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", name, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
