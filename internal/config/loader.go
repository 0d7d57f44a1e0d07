package config

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values and fills in
// defaults for unset audio fields. It returns a joined error listing all
// validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Agent.Endpoint == "" {
		errs = append(errs, errors.New("agent.endpoint is required"))
	} else if u, err := url.Parse(cfg.Agent.Endpoint); err != nil {
		errs = append(errs, fmt.Errorf("agent.endpoint %q is not a valid URL: %w", cfg.Agent.Endpoint, err))
	} else {
		switch u.Scheme {
		case "ws", "wss", "http", "https":
		default:
			errs = append(errs, fmt.Errorf("agent.endpoint scheme %q is invalid; valid values: ws, wss, http, https", u.Scheme))
		}
	}

	if cfg.Agent.AckTimeout < 0 {
		errs = append(errs, fmt.Errorf("agent.ack_timeout %s must not be negative", cfg.Agent.AckTimeout))
	}

	if cfg.LogLevel != "" && !cfg.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("log_level %q is invalid; valid values: debug, info, warn, error", cfg.LogLevel))
	}

	if cfg.Audio.DeviceSampleRate == 0 {
		cfg.Audio.DeviceSampleRate = DefaultDeviceSampleRate
	}
	if cfg.Audio.DeviceSampleRate < 0 {
		errs = append(errs, fmt.Errorf("audio.device_sample_rate %d must be positive", cfg.Audio.DeviceSampleRate))
	}

	if cfg.Audio.FrameSamples == 0 {
		cfg.Audio.FrameSamples = DefaultFrameSamples
	}
	if cfg.Audio.FrameSamples < 0 {
		errs = append(errs, fmt.Errorf("audio.frame_samples %d must be positive", cfg.Audio.FrameSamples))
	}

	if cfg.Audio.ToneHz < 0 {
		errs = append(errs, fmt.Errorf("audio.tone_hz %.1f must not be negative", cfg.Audio.ToneHz))
	}

	return errors.Join(errs...)
}
