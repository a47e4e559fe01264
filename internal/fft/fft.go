// SPDX-License-Identifier: MIT

// Package fft provides the magnitude analyser that feeds the spectrum
// normalizer when the caller has raw time-domain samples instead of an
// already-computed frequency frame. Output matches the byte scale (0-255) of
// a Web-Audio style analyser so the downstream decibel conversion applies
// unchanged.
package fft

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/Mattallmighty/audio-visualiser-sub001/pkg/bitint"
)

// workspace holds the pre-allocated buffers for one analyser instance. The
// hot path never allocates.
type workspace struct {
	input     []float64    // Windowed input samples
	coeffs    []complex128 // FFT complex output
	magnitude []float64    // Raw magnitude per bin
	frame     []float64    // Byte-scale (0-255) output frame
	window    []float64    // Hann window coefficients
}

// Analyser converts fixed-size sample buffers into byte-scale magnitude
// frames using a Hann window and a real FFT.
type Analyser struct {
	fftSize    int
	sampleRate float64
	minDb      float64
	maxDb      float64
	workspace  workspace
	fftObj     *fourier.FFT
}

// NewAnalyser pre-allocates all buffers and the window coefficients.
// fftSize must be a power of 2.
func NewAnalyser(fftSize int, sampleRate, minDb, maxDb float64) (*Analyser, error) {
	if !bitint.IsPowerOfTwo(fftSize) {
		return nil, fmt.Errorf("fft: size %d must be a power of 2", fftSize)
	}
	if minDb >= maxDb {
		return nil, fmt.Errorf("fft: min decibels %.1f must be below max decibels %.1f", minDb, maxDb)
	}

	window := make([]float64, fftSize)
	for i := range window {
		window[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(fftSize-1)))
	}

	outputSize := fftSize/2 + 1

	return &Analyser{
		fftSize:    fftSize,
		sampleRate: sampleRate,
		minDb:      minDb,
		maxDb:      maxDb,
		fftObj:     fourier.NewFFT(fftSize),
		workspace: workspace{
			input:     make([]float64, fftSize),
			coeffs:    make([]complex128, outputSize),
			magnitude: make([]float64, outputSize),
			frame:     make([]float64, outputSize),
			window:    window,
		},
	}, nil
}

// Bins returns the number of output bins (fftSize/2 + 1).
func (a *Analyser) Bins() int { return len(a.workspace.frame) }

// Process windows the samples (-1..1 floats), runs the FFT, and converts each
// bin magnitude to the 0-255 byte scale between the configured decibel floor
// and ceiling. The returned frame is owned by the analyser and reused.
// Short buffers are zero-padded.
func (a *Analyser) Process(samples []float64) []float64 {
	for i := range a.workspace.input {
		if i < len(samples) {
			a.workspace.input[i] = samples[i] * a.workspace.window[i]
		} else {
			a.workspace.input[i] = 0
		}
	}

	_ = a.fftObj.Coefficients(a.workspace.coeffs, a.workspace.input)

	// Normalize so a full-scale sine lands near 0 dB, then map the decibel
	// span onto bytes the way an analyser node does.
	scale := 2 / float64(a.fftSize)
	span := a.maxDb - a.minDb
	for i := range a.workspace.coeffs {
		mag := cmplx.Abs(a.workspace.coeffs[i]) * scale
		a.workspace.magnitude[i] = mag

		db := 20 * math.Log10(mag+1e-12)
		byteVal := 255 * (db - a.minDb) / span
		if byteVal < 0 {
			byteVal = 0
		}
		if byteVal > 255 {
			byteVal = 255
		}
		a.workspace.frame[i] = byteVal
	}

	return a.workspace.frame
}

// Magnitudes returns the raw linear magnitudes of the last processed frame.
func (a *Analyser) Magnitudes() []float64 { return a.workspace.magnitude }

// FrequencyForBin returns the center frequency in Hz for a bin index.
func (a *Analyser) FrequencyForBin(i int) float64 {
	if i < 0 || i >= len(a.workspace.coeffs) {
		return 0
	}
	return a.fftObj.Freq(i) * a.sampleRate
}
