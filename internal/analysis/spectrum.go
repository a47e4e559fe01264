// SPDX-License-Identifier: MIT

// Package analysis implements the real-time audio feature extraction core:
// spectrum/waveform normalization, beat and tempo detection, buildup
// classification, and configurable reactive mappings. Every component is a
// synchronous per-frame transform over state it owns exclusively; the caller
// drives the whole package once per animation frame.
package analysis

import (
	"fmt"
	"math"
)

// dbToLinear converts a decibel value to linear magnitude when used as
// exp(dbToLinear * db). It equals ln(10)/20, so the expression is 10^(db/20).
const dbToLinear = 0.1151292546497023

// SpectrumConfig holds the parameters of a SpectrumParser. The frequency
// range and decibel bounds are fixed until Reconfigure is called.
type SpectrumConfig struct {
	FFTSize      int     // Transform size the frames were produced with.
	SampleRate   float64 // Sample rate in Hz.
	Smoothing    float64 // EMA coefficient: 0 = off, toward 1 = heavy.
	MinDecibels  float64 // Decibel floor for byte-encoded bins.
	MaxDecibels  float64 // Decibel ceiling for byte-encoded bins.
	MinFrequency float64 // Low edge of the range of interest (Hz).
	MaxFrequency float64 // High edge of the range of interest (Hz).
}

// SpectrumParser maps raw magnitude frames into perceptually normalized,
// frequency-range-selected, resampled, temporally smoothed vectors.
//
// The output slice is owned by the parser and reused across frames; callers
// must copy it if they need to retain a frame.
type SpectrumParser struct {
	cfg SpectrumConfig

	// Derived once per configuration.
	startBin int
	endBin   int
	linMin   float64 // Linear magnitude of MinDecibels
	linMax   float64 // Linear magnitude of MaxDecibels

	out []float64 // Smoothing state, one slot per output bin
}

// NewSpectrumParser validates cfg and derives the bin range. Configuration
// invariant violations are the only errors this component ever returns; frame
// processing degrades gracefully instead.
func NewSpectrumParser(cfg SpectrumConfig) (*SpectrumParser, error) {
	p := &SpectrumParser{}
	if err := p.Reconfigure(cfg); err != nil {
		return nil, err
	}
	return p, nil
}

// Reconfigure replaces the parser configuration and re-derives the cached bin
// range. Smoothing state is kept; it is resized and zeroed on the next Parse
// call if the output size changes.
func (p *SpectrumParser) Reconfigure(cfg SpectrumConfig) error {
	if cfg.FFTSize <= 0 || cfg.SampleRate <= 0 {
		return fmt.Errorf("spectrum: fft size %d and sample rate %.0f must be positive", cfg.FFTSize, cfg.SampleRate)
	}
	if cfg.MinFrequency >= cfg.MaxFrequency {
		return fmt.Errorf("spectrum: min frequency %.1f must be below max frequency %.1f", cfg.MinFrequency, cfg.MaxFrequency)
	}
	if nyquist := cfg.SampleRate / 2; cfg.MaxFrequency > nyquist {
		return fmt.Errorf("spectrum: max frequency %.1f exceeds Nyquist %.1f", cfg.MaxFrequency, nyquist)
	}
	if cfg.MinDecibels >= cfg.MaxDecibels {
		return fmt.Errorf("spectrum: min decibels %.1f must be below max decibels %.1f", cfg.MinDecibels, cfg.MaxDecibels)
	}
	if cfg.Smoothing < 0 || cfg.Smoothing >= 1 {
		return fmt.Errorf("spectrum: smoothing %.2f must be in [0, 1)", cfg.Smoothing)
	}

	hzPerBin := cfg.SampleRate / float64(cfg.FFTSize)
	p.cfg = cfg
	p.startBin = int(math.Floor(cfg.MinFrequency / hzPerBin))
	p.endBin = int(math.Floor(cfg.MaxFrequency / hzPerBin))
	p.linMin = math.Exp(dbToLinear * cfg.MinDecibels)
	p.linMax = math.Exp(dbToLinear * cfg.MaxDecibels)
	return nil
}

// Config returns the current parser configuration.
func (p *SpectrumParser) Config() SpectrumConfig { return p.cfg }

// BinRange returns the derived [start, end) bin range of interest.
func (p *SpectrumParser) BinRange() (int, int) { return p.startBin, p.endBin }

// Parse converts a raw magnitude frame into a normalized vector of targetSize
// bins covering the configured frequency range. Byte-encoded frames (values
// above 1) go through the decibel conversion; already-normalized frames are
// used as-is. Degenerate inputs return the current output unchanged.
//
// Resampling preserves transients: when compressing, each output slot takes
// the maximum converted value of its source sub-range rather than the average.
// Expansion replicates each source bin across its proportional span.
func (p *SpectrumParser) Parse(frame []float64, targetSize int) []float64 {
	if targetSize <= 0 {
		return p.out
	}
	if len(p.out) != targetSize {
		p.out = make([]float64, targetSize)
	}

	start, end := p.startBin, p.endBin
	if end > len(frame) {
		end = len(frame)
	}
	totalBins := end - start
	if len(frame) == 0 || totalBins <= 0 {
		return p.out
	}

	byteEncoded := isByteEncoded(frame[start:end])
	k := p.cfg.Smoothing

	for i := 0; i < targetSize; i++ {
		lo := start + i*totalBins/targetSize
		hi := start + (i+1)*totalBins/targetSize
		if hi <= lo {
			hi = lo + 1 // Expansion: single source bin replicated
		}

		// Max-hold over the source sub-range. For 1:1 and expansion the
		// range is a single bin, so this degenerates to a copy.
		var v float64
		for j := lo; j < hi && j < end; j++ {
			c := p.convert(frame[j], byteEncoded)
			if c > v {
				v = c
			}
		}

		if k == 0 {
			p.out[i] = v
		} else {
			p.out[i] = p.out[i]*k + v*(1-k)
		}
	}

	return p.out
}

// Energy returns the unweighted mean of the converted values across the
// configured bin range. This is the scalar feed typically handed to the beat
// detector.
func (p *SpectrumParser) Energy(frame []float64) float64 {
	start, end := p.startBin, p.endBin
	if end > len(frame) {
		end = len(frame)
	}
	if end <= start {
		return 0
	}

	byteEncoded := isByteEncoded(frame[start:end])
	var sum float64
	for i := start; i < end; i++ {
		sum += p.convert(frame[i], byteEncoded)
	}
	return sum / float64(end-start)
}

// convert maps one raw bin value to a normalized 0-1 magnitude. Byte values
// pass through the analyser decibel scale: db = minDecibels*(1 - raw/256),
// then linear magnitude, then normalization against the linear magnitudes of
// the decibel floor and ceiling.
func (p *SpectrumParser) convert(raw float64, byteEncoded bool) float64 {
	if !byteEncoded {
		return clamp01(raw)
	}
	db := p.cfg.MinDecibels * (1 - raw/256)
	lin := math.Exp(dbToLinear * db)
	return clamp01((lin - p.linMin) / (p.linMax - p.linMin))
}

// isByteEncoded sniffs the frame encoding: any value above 1 means the frame
// carries raw analyser bytes (0-255). An all-quiet byte frame is
// indistinguishable from a normalized one, but converts to zero either way.
func isByteEncoded(frame []float64) bool {
	for _, v := range frame {
		if v > 1 {
			return true
		}
	}
	return false
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
