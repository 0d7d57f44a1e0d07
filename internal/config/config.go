// Package config provides the configuration schema and loader for the
// voxping voice client.
package config

import "time"

// LogLevel controls log verbosity for the client.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for voxping.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Agent AgentConfig `yaml:"agent"`

	// LogLevel controls verbosity. Defaults to info when empty.
	LogLevel LogLevel `yaml:"log_level"`

	Audio   AudioConfig   `yaml:"audio"`
	Metrics MetricsConfig `yaml:"metrics"`
	Record  RecordConfig  `yaml:"record"`
}

// AgentConfig describes the remote voice agent to connect to.
type AgentConfig struct {
	// Endpoint is the base WebSocket URL of the agent
	// (e.g., "wss://agent.example.com/voice"). A fresh session path segment
	// is appended per connection.
	Endpoint string `yaml:"endpoint"`

	// APIKey is sent as a Bearer token in the Authorization header of the
	// WebSocket handshake. Leave empty for unauthenticated agents.
	APIKey string `yaml:"api_key"`

	// AckTimeout bounds how long a session waits for the agent's connection
	// acknowledgement after the handshake. Zero means wait indefinitely.
	AckTimeout time.Duration `yaml:"ack_timeout"`
}

// AudioConfig holds capture-side audio settings. The wire format towards the
// agent is fixed at 16 kHz mono; captured audio is resampled as needed.
type AudioConfig struct {
	// DeviceSampleRate is the rate the microphone is opened at, in Hz.
	DeviceSampleRate int `yaml:"device_sample_rate"`

	// FrameSamples is the number of 16 kHz samples per outbound frame.
	// 320 samples is 20 ms of audio.
	FrameSamples int `yaml:"frame_samples"`

	// ToneHz, when positive, replaces the microphone with a synthetic sine
	// tone at the given frequency. Useful for testing without hardware.
	ToneHz float64 `yaml:"tone_hz"`
}

// MetricsConfig configures the optional Prometheus metrics endpoint.
type MetricsConfig struct {
	// ListenAddr is the TCP address the metrics server listens on
	// (e.g., ":9090"). When empty, no metrics server is started.
	ListenAddr string `yaml:"listen_addr"`
}

// RecordConfig holds optional WAV tap paths for debugging audio issues.
type RecordConfig struct {
	// OutboundWAV, when set, records every captured frame to a WAV file
	// before transmission.
	OutboundWAV string `yaml:"outbound_wav"`

	// InboundWAV, when set, records every decoded agent frame to a WAV file
	// before playback.
	InboundWAV string `yaml:"inbound_wav"`
}

// Default sample rates and frame sizes applied by [Validate] when unset.
const (
	DefaultDeviceSampleRate = 16000
	DefaultFrameSamples     = 320
)
