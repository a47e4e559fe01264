// SPDX-License-Identifier: MIT
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Mattallmighty/audio-visualiser-sub001/pkg/bitint"
)

// LoadConfig loads configuration from a YAML file specified by path. If path is
// empty, it searches default locations ("config.yaml"). If no file is found it
// uses built-in defaults. After loading, it applies environment variable
// overrides and validates the final configuration.
func LoadConfig(path string) (*Config, error) {
	cfg := defaults()

	if path == "" {
		candidates := []string{
			"config.yaml",
		}
		found := false
		for _, candidate := range candidates {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				found = true
				break
			}
		}
		if !found {
			cfg.applyEnvOverrides()
			if err := cfg.Validate(); err != nil {
				return nil, fmt.Errorf("invalid default configuration: %w", err)
			}
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Apply environment variable overrides AFTER loading from file.
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Debug:    false,
		LogLevel: "info",
		Analysis: AnalysisConfig{
			SampleRate:   DefaultSampleRate,
			FFTSize:      DefaultFFTSize,
			OutputBins:   DefaultOutputBins,
			WaveformSize: DefaultWaveformSize,
			Smoothing:    DefaultSmoothing,
			MinDecibels:  DefaultMinDecibels,
			MaxDecibels:  DefaultMaxDecibels,
			MinFrequency: DefaultMinFrequency,
			MaxFrequency: DefaultMaxFrequency,
		},
		Beat: BeatConfig{
			MinBPM:          DefaultMinBPM,
			MaxBPM:          DefaultMaxBPM,
			OnsetThreshold:  DefaultOnsetThreshold,
			StabilityFrames: DefaultStabilityFrames,
		},
		Buildup: BuildupConfig{
			EnergyThreshold: DefaultEnergyThreshold,
			ConfidenceDecay: DefaultConfidenceDecay,
		},
		Transport: TransportConfig{
			WebSocketEnabled: false,
			WebSocketAddress: ":8080",
			UDPEnabled:       false,
			UDPTargetAddress: "127.0.0.1:9090",
			UDPSendInterval:  16 * time.Millisecond, // ~60Hz
		},
	}
}

// Validate enforces the configuration invariants that would otherwise produce
// nonsensical bin ranges or tempo bounds. These are the only hard errors in
// the system; everything downstream clamps or degrades instead.
func (c *Config) Validate() error {
	a := &c.Analysis
	if a.SampleRate < MinSampleRate || a.SampleRate > MaxSampleRate {
		return fmt.Errorf("analysis.sample_rate %.0f outside [%.0f, %.0f]", a.SampleRate, MinSampleRate, MaxSampleRate)
	}
	if !bitint.IsPowerOfTwo(a.FFTSize) || a.FFTSize > MaxFFTSize {
		return fmt.Errorf("analysis.fft_size %d must be a power of 2 up to %d", a.FFTSize, MaxFFTSize)
	}
	if a.Smoothing < 0 || a.Smoothing >= 1 {
		return fmt.Errorf("analysis.smoothing %.2f must be in [0, 1)", a.Smoothing)
	}
	if a.MinDecibels >= a.MaxDecibels {
		return fmt.Errorf("analysis.min_decibels %.1f must be below max_decibels %.1f", a.MinDecibels, a.MaxDecibels)
	}
	if a.MinFrequency >= a.MaxFrequency {
		return fmt.Errorf("analysis.min_frequency %.1f must be below max_frequency %.1f", a.MinFrequency, a.MaxFrequency)
	}
	if nyquist := a.SampleRate / 2; a.MaxFrequency > nyquist {
		return fmt.Errorf("analysis.max_frequency %.1f exceeds Nyquist %.1f", a.MaxFrequency, nyquist)
	}
	if a.OutputBins <= 0 || a.WaveformSize <= 0 {
		return fmt.Errorf("analysis.output_bins and waveform_size must be positive")
	}

	b := &c.Beat
	if b.MinBPM <= 0 || b.MinBPM >= b.MaxBPM {
		return fmt.Errorf("beat.min_bpm %.1f must be positive and below max_bpm %.1f", b.MinBPM, b.MaxBPM)
	}
	if b.StabilityFrames < 1 {
		return fmt.Errorf("beat.stability_frames must be at least 1")
	}

	u := &c.Buildup
	if u.ConfidenceDecay <= 0 || u.ConfidenceDecay >= 1 {
		return fmt.Errorf("buildup.confidence_decay %.2f must be in (0, 1)", u.ConfidenceDecay)
	}

	for i := range c.Reactors {
		r := &c.Reactors[i]
		if r.Name == "" {
			return fmt.Errorf("reactors[%d]: name is required", i)
		}
		if r.Preset != "" {
			continue // Preset fills in the rest.
		}
		if r.FreqStart < 0 || r.FreqEnd > 1 || r.FreqStart >= r.FreqEnd {
			return fmt.Errorf("reactor %q: freq range [%.2f, %.2f] must satisfy 0 <= start < end <= 1", r.Name, r.FreqStart, r.FreqEnd)
		}
	}

	return nil
}

// applyEnvOverrides applies ENV_* variable overrides on top of whatever the
// defaults and config file produced. Unparseable values are ignored.
func (cfg *Config) applyEnvOverrides() {
	if val, ok := os.LookupEnv("ENV_DEBUG"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			cfg.Debug = bVal
		}
	}
	if val, ok := os.LookupEnv("ENV_LOG_LEVEL"); ok {
		cfg.LogLevel = val
	}

	// ENV_WS_{...} and ENV_UDP_{...} override the transport layer.
	if val, ok := os.LookupEnv("ENV_WS_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			cfg.Transport.WebSocketEnabled = bVal
		}
	}
	if val, ok := os.LookupEnv("ENV_WS_ADDRESS"); ok {
		cfg.Transport.WebSocketAddress = val
	}
	if val, ok := os.LookupEnv("ENV_UDP_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			cfg.Transport.UDPEnabled = bVal
		}
	}
	if val, ok := os.LookupEnv("ENV_UDP_TARGET_ADDRESS"); ok {
		cfg.Transport.UDPTargetAddress = val
	}
	if val, ok := os.LookupEnv("ENV_UDP_SEND_INTERVAL"); ok {
		if dur, err := time.ParseDuration(val); err == nil {
			cfg.Transport.UDPSendInterval = dur
		}
	}
}
