package config

import "time"

// Default values and limits for the analysis engine configuration.
const (
	DefaultSampleRate   = 44100.0 // CD-quality audio
	DefaultFFTSize      = 2048    // Balanced frequency/time resolution
	DefaultOutputBins   = 64      // Spectrum bins handed to the renderer
	DefaultWaveformSize = 128     // Waveform points handed to the renderer
	DefaultSmoothing    = 0.7     // Temporal smoothing coefficient
	DefaultMinDecibels  = -100.0  // Analyser floor
	DefaultMaxDecibels  = -30.0   // Analyser ceiling
	DefaultMinFrequency = 20.0    // Hz, lower bound of interest
	DefaultMaxFrequency = 16000.0 // Hz, upper bound of interest

	DefaultMinBPM          = 60.0
	DefaultMaxBPM          = 180.0
	DefaultOnsetThreshold  = 0.02
	DefaultStabilityFrames = 3

	DefaultEnergyThreshold = 0.3  // Buildup absolute-energy heuristic
	DefaultConfidenceDecay = 0.95 // Buildup confidence decay per frame

	// Hard limits.
	MinSampleRate = 8000.0
	MaxSampleRate = 192000.0
	MaxFFTSize    = 32768
)

// Config holds all runtime configuration for the analysis engine.
// It is constructed from defaults, an optional YAML file, environment
// variable overrides, and command line flags, in that order.
type Config struct {
	Debug    bool   `yaml:"debug"`             // Enable debug mode (verbose logging).
	LogLevel string `yaml:"log_level"`         // Logging level ("debug", "info", "warn", "error").
	Command  string `yaml:"command,omitempty"` // One-off command instead of running the engine (e.g. "presets").

	Analysis  AnalysisConfig  `yaml:"analysis"`  // Spectrum/waveform normalization settings.
	Beat      BeatConfig      `yaml:"beat"`      // Beat and tempo detection settings.
	Buildup   BuildupConfig   `yaml:"buildup"`   // Buildup/drop classifier settings.
	Reactors  []ReactorSpec   `yaml:"reactors"`  // Named reactive mappings applied each frame.
	Transport TransportConfig `yaml:"transport"` // Control-frame publishing settings.
}

// AnalysisConfig holds settings for the spectrum and waveform normalizers.
type AnalysisConfig struct {
	SampleRate   float64 `yaml:"sample_rate"`   // Sample rate in Hz (e.g. 44100, 48000).
	FFTSize      int     `yaml:"fft_size"`      // Transform size, must be a power of 2.
	OutputBins   int     `yaml:"output_bins"`   // Target spectrum vector length.
	WaveformSize int     `yaml:"waveform_size"` // Target waveform vector length.
	Smoothing    float64 `yaml:"smoothing"`     // EMA coefficient, 0 = off, toward 1 = heavy.
	MinDecibels  float64 `yaml:"min_decibels"`  // Decibel floor for byte-encoded frames.
	MaxDecibels  float64 `yaml:"max_decibels"`  // Decibel ceiling for byte-encoded frames.
	MinFrequency float64 `yaml:"min_frequency"` // Low edge of the frequency range of interest (Hz).
	MaxFrequency float64 `yaml:"max_frequency"` // High edge of the frequency range of interest (Hz).
}

// BeatConfig holds settings for the beat/tempo detector.
type BeatConfig struct {
	MinBPM          float64 `yaml:"min_bpm"`          // Lower bound of committed tempo estimates.
	MaxBPM          float64 `yaml:"max_bpm"`          // Upper bound of committed tempo estimates.
	OnsetThreshold  float64 `yaml:"onset_threshold"`  // Base derivative threshold for onset firing.
	StabilityFrames int     `yaml:"stability_frames"` // Consecutive stable re-estimations before committing a tempo.
}

// BuildupConfig holds settings for the buildup/drop classifier.
type BuildupConfig struct {
	EnergyThreshold float64 `yaml:"energy_threshold"` // Absolute energy level counted toward the buildup score.
	ConfidenceDecay float64 `yaml:"confidence_decay"` // Multiplicative confidence decay per low-score frame.
}

// ReactorSpec describes one named reactive mapping in the config file.
// Fields mirror analysis.ReactorConfig; the engine converts on startup.
type ReactorSpec struct {
	Name        string  `yaml:"name"`
	FreqStart   float64 `yaml:"freq_start"`  // Normalized 0-1 start of the bin sub-range.
	FreqEnd     float64 `yaml:"freq_end"`    // Normalized 0-1 end of the bin sub-range.
	Mode        string  `yaml:"mode"`        // add, subtract, multiply, cycle, pulse.
	Sensitivity float64 `yaml:"sensitivity"` // Input gain before the mode transform.
	Smoothing   float64 `yaml:"smoothing"`   // EMA coefficient for the output.
	MinValue    float64 `yaml:"min_value"`   // Output range low edge.
	MaxValue    float64 `yaml:"max_value"`   // Output range high edge.
	Threshold   float64 `yaml:"threshold"`   // Pulse mode trigger level.
	DecayRate   float64 `yaml:"decay_rate"`  // Pulse mode decay factor per call.
	Preset      string  `yaml:"preset"`      // Optional named preset; overrides the fields above.
}

// TransportConfig holds settings for publishing control frames.
type TransportConfig struct {
	WebSocketEnabled bool          `yaml:"websocket_enabled"` // Broadcast control frames over WebSocket.
	WebSocketAddress string        `yaml:"websocket_address"` // Listen address, e.g. ":8080".
	UDPEnabled       bool          `yaml:"udp_enabled"`       // Send binary control packets over UDP.
	UDPTargetAddress string        `yaml:"udp_target_address"` // Target address, e.g. "127.0.0.1:9090".
	UDPSendInterval  time.Duration `yaml:"udp_send_interval"`  // Interval between UDP packets.
}
