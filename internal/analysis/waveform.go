package analysis

import (
	"fmt"
	"math"
)

// WaveConfig holds the parameters of a WaveParser.
type WaveConfig struct {
	Smoothing float64 // EMA coefficient: 0 = off, toward 1 = heavy.
}

// WaveParser normalizes time-domain sample buffers to 0-1, resamples them to
// a target length, and applies the same exponential-moving-average smoothing
// as the spectrum parser. There is no frequency-range concept here.
//
// The output slice is owned by the parser and reused across frames.
type WaveParser struct {
	cfg WaveConfig
	out []float64
}

// NewWaveParser validates cfg and returns a parser with empty state.
func NewWaveParser(cfg WaveConfig) (*WaveParser, error) {
	if cfg.Smoothing < 0 || cfg.Smoothing >= 1 {
		return nil, fmt.Errorf("waveform: smoothing %.2f must be in [0, 1)", cfg.Smoothing)
	}
	return &WaveParser{cfg: cfg}, nil
}

// Parse normalizes and resamples a sample buffer to targetSize points.
// Encoding is detected from the first sample's magnitude: above 1 means
// unsigned bytes (0-255), otherwise signed floats (-1..1). Degenerate input
// returns the current output unchanged.
func (p *WaveParser) Parse(samples []float64, targetSize int) []float64 {
	if targetSize <= 0 {
		return p.out
	}
	if len(p.out) != targetSize {
		p.out = make([]float64, targetSize)
	}
	if len(samples) == 0 {
		return p.out
	}

	byteEncoded := math.Abs(samples[0]) > 1
	k := p.cfg.Smoothing

	for i := 0; i < targetSize; i++ {
		src := i * len(samples) / targetSize // Nearest-neighbor

		var v float64
		if byteEncoded {
			v = clamp01(samples[src] / 255)
		} else {
			v = clamp01((samples[src] + 1) / 2)
		}

		if k == 0 {
			p.out[i] = v
		} else {
			p.out[i] = p.out[i]*k + v*(1-k)
		}
	}

	return p.out
}
