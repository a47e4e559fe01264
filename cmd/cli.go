package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/Mattallmighty/audio-visualiser-sub001/internal/config"
	"github.com/Mattallmighty/audio-visualiser-sub001/pkg/build"
)

// flagValues carries the command line values until they can be merged over
// the file-based configuration. Only flags the user actually set are applied.
type flagValues struct {
	configPath string

	sampleRate float64
	fftSize    int
	bins       int
	smoothing  float64
	minFreq    float64
	maxFreq    float64

	minBPM          float64
	maxBPM          float64
	stabilityFrames int

	wsEnabled  bool
	wsAddr     string
	udpEnabled bool
	udpAddr    string

	verbose bool
}

// ParseArgs builds the runtime configuration from defaults, an optional YAML
// file, environment overrides, and command line flags, in that order.
func ParseArgs() (*config.Config, error) {
	info := build.GetInfo()
	flags := &flagValues{}
	var cfg *config.Config

	load := func(cmd *cobra.Command) (*config.Config, error) {
		loaded, err := config.LoadConfig(flags.configPath)
		if err != nil {
			return nil, err
		}
		applyFlags(cmd, loaded, flags)
		if err := loaded.Validate(); err != nil {
			return nil, err
		}
		return loaded, nil
	}

	rootCmd := &cobra.Command{
		Use:           info.Name,
		Short:         "Real-time audio feature extraction for reactive visuals",
		Version:       info.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := load(cmd)
			if err != nil {
				return err
			}
			cfg = loaded
			return nil
		},
	}

	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	// Presets command: list the built-in reactor presets and exit.
	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "List built-in reactor presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := load(cmd)
			if err != nil {
				return err
			}
			loaded.Command = "presets"
			cfg = loaded
			return nil
		},
	}
	rootCmd.AddCommand(presetsCmd)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "",
		"Path to a YAML configuration file")

	// Analysis configuration.
	pf.Float64VarP(&flags.sampleRate, "sample-rate", "s", config.DefaultSampleRate,
		"Sample rate of the incoming frames, in Hertz (Hz)")
	pf.IntVarP(&flags.fftSize, "fft-size", "f", config.DefaultFFTSize,
		"Transform size of the incoming frames (power of 2)")
	pf.IntVarP(&flags.bins, "bins", "b", config.DefaultOutputBins,
		"Number of normalized spectrum bins to emit")
	pf.Float64Var(&flags.smoothing, "smoothing", config.DefaultSmoothing,
		"Temporal smoothing coefficient (0 = off, toward 1 = heavy)")
	pf.Float64Var(&flags.minFreq, "min-freq", config.DefaultMinFrequency,
		"Low edge of the frequency range of interest (Hz)")
	pf.Float64Var(&flags.maxFreq, "max-freq", config.DefaultMaxFrequency,
		"High edge of the frequency range of interest (Hz)")

	// Tempo configuration.
	pf.Float64Var(&flags.minBPM, "min-bpm", config.DefaultMinBPM,
		"Lower bound of committed tempo estimates")
	pf.Float64Var(&flags.maxBPM, "max-bpm", config.DefaultMaxBPM,
		"Upper bound of committed tempo estimates")
	pf.IntVar(&flags.stabilityFrames, "stability-frames", config.DefaultStabilityFrames,
		"Consecutive stable re-estimations before a tempo commit")

	// Transport configuration.
	pf.BoolVar(&flags.wsEnabled, "ws", false,
		"Broadcast control frames over WebSocket")
	pf.StringVar(&flags.wsAddr, "ws-addr", ":8080",
		"WebSocket listen address")
	pf.BoolVar(&flags.udpEnabled, "udp", false,
		"Send binary control packets over UDP")
	pf.StringVar(&flags.udpAddr, "udp-addr", "127.0.0.1:9090",
		"UDP target address")

	pf.BoolVarP(&flags.verbose, "verbose", "v", false,
		"Show verbose output")

	rootCmd.SetArgs(os.Args[1:])
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyFlags copies explicitly-set flags over the loaded configuration.
func applyFlags(cmd *cobra.Command, cfg *config.Config, flags *flagValues) {
	set := cmd.Flags().Changed

	if set("sample-rate") {
		cfg.Analysis.SampleRate = flags.sampleRate
	}
	if set("fft-size") {
		cfg.Analysis.FFTSize = flags.fftSize
	}
	if set("bins") {
		cfg.Analysis.OutputBins = flags.bins
	}
	if set("smoothing") {
		cfg.Analysis.Smoothing = flags.smoothing
	}
	if set("min-freq") {
		cfg.Analysis.MinFrequency = flags.minFreq
	}
	if set("max-freq") {
		cfg.Analysis.MaxFrequency = flags.maxFreq
	}
	if set("min-bpm") {
		cfg.Beat.MinBPM = flags.minBPM
	}
	if set("max-bpm") {
		cfg.Beat.MaxBPM = flags.maxBPM
	}
	if set("stability-frames") {
		cfg.Beat.StabilityFrames = flags.stabilityFrames
	}
	if set("ws") {
		cfg.Transport.WebSocketEnabled = flags.wsEnabled
	}
	if set("ws-addr") {
		cfg.Transport.WebSocketAddress = flags.wsAddr
	}
	if set("udp") {
		cfg.Transport.UDPEnabled = flags.udpEnabled
	}
	if set("udp-addr") {
		cfg.Transport.UDPTargetAddress = flags.udpAddr
	}
	if set("verbose") && flags.verbose {
		cfg.Debug = true
		cfg.LogLevel = "debug"
	}
}
