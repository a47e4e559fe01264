// Package utils holds shared test helpers: a transport mock and synthetic
// frame generators used across the analysis and fft test suites.
package utils

import "math"

// MockTransport implements the transport.Transport interface for testing.
// It records every frame it is asked to send.
type MockTransport struct {
	Frames []any
}

// Send stores the data for later inspection instead of transmitting.
func (m *MockTransport) Send(data any) error {
	m.Frames = append(m.Frames, data)
	return nil
}

// Close is a no-op.
func (m *MockTransport) Close() error { return nil }

// SineSamples generates size samples of a sine wave at the given frequency,
// scaled to -1..1 floats.
func SineSamples(size int, sampleRate, frequency float64) []float64 {
	buffer := make([]float64, size)
	for i := range buffer {
		t := float64(i) / sampleRate
		buffer[i] = math.Sin(2 * math.Pi * frequency * t)
	}
	return buffer
}

// ByteSpectrum generates a byte-encoded (0-255) frequency frame with a flat
// base level and optional per-bin peaks.
func ByteSpectrum(bins int, level float64, peaks map[int]float64) []float64 {
	frame := make([]float64, bins)
	for i := range frame {
		frame[i] = level
	}
	for bin, v := range peaks {
		if bin >= 0 && bin < bins {
			frame[bin] = v
		}
	}
	return frame
}

// FindPeakBin returns the index of the largest value in magnitudes within
// [startBin, endBin].
func FindPeakBin(magnitudes []float64, startBin, endBin int) int {
	if len(magnitudes) == 0 {
		return 0
	}
	if startBin < 0 {
		startBin = 0
	}
	if endBin >= len(magnitudes) {
		endBin = len(magnitudes) - 1
	}

	peakBin := startBin
	peakValue := magnitudes[startBin]
	for bin := startBin + 1; bin <= endBin; bin++ {
		if magnitudes[bin] > peakValue {
			peakValue = magnitudes[bin]
			peakBin = bin
		}
	}
	return peakBin
}
