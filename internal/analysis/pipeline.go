// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"sync"
	"time"

	"github.com/Mattallmighty/audio-visualiser-sub001/internal/config"
	"github.com/Mattallmighty/audio-visualiser-sub001/internal/transport"
)

// ControlFrame is the complete per-frame output of the pipeline: everything
// a renderer needs to drive visuals for one animation frame.
type ControlFrame struct {
	Spectrum []float64          `json:"spectrum"`
	Waveform []float64          `json:"waveform,omitempty"`
	Bands    BandEnergies       `json:"bands"`
	Beat     BeatResult         `json:"beat"`
	Buildup  BuildupResult      `json:"buildup"`
	Reactors map[string]float64 `json:"reactors"`
}

// clone returns a deep copy safe to hand to a transport goroutine.
func (f ControlFrame) clone() ControlFrame {
	out := f
	out.Spectrum = append([]float64(nil), f.Spectrum...)
	out.Waveform = append([]float64(nil), f.Waveform...)
	out.Reactors = make(map[string]float64, len(f.Reactors))
	for k, v := range f.Reactors {
		out.Reactors[k] = v
	}
	return out
}

// Pipeline composes the analysis components into the one-way per-frame flow:
// raw samples -> normalized spectrum/waveform -> bands -> beat -> buildup ->
// reactors -> named scalar outputs.
//
// Process is single-threaded and call-driven; the only concurrency is the
// snapshot handed to transport publishers, which is always a copy.
type Pipeline struct {
	spectrum *SpectrumParser
	wave     *WaveParser
	beat     *BeatDetector
	buildup  *BuildupDetector
	reactors *ReactorManager

	outputBins   int
	waveformSize int

	sink  transport.Transport
	clock func() time.Time

	mu     sync.Mutex
	latest ControlFrame
}

// NewPipeline constructs every component from cfg, including the configured
// reactors (preset references resolved).
func NewPipeline(cfg *config.Config) (*Pipeline, error) {
	spectrum, err := NewSpectrumParser(SpectrumConfig{
		FFTSize:      cfg.Analysis.FFTSize,
		SampleRate:   cfg.Analysis.SampleRate,
		Smoothing:    cfg.Analysis.Smoothing,
		MinDecibels:  cfg.Analysis.MinDecibels,
		MaxDecibels:  cfg.Analysis.MaxDecibels,
		MinFrequency: cfg.Analysis.MinFrequency,
		MaxFrequency: cfg.Analysis.MaxFrequency,
	})
	if err != nil {
		return nil, err
	}

	wave, err := NewWaveParser(WaveConfig{Smoothing: cfg.Analysis.Smoothing})
	if err != nil {
		return nil, err
	}

	beat, err := NewBeatDetector(BeatConfig{
		MinBPM:          cfg.Beat.MinBPM,
		MaxBPM:          cfg.Beat.MaxBPM,
		OnsetThreshold:  cfg.Beat.OnsetThreshold,
		StabilityFrames: cfg.Beat.StabilityFrames,
	})
	if err != nil {
		return nil, err
	}

	buildup, err := NewBuildupDetector(BuildupConfig{
		EnergyThreshold: cfg.Buildup.EnergyThreshold,
		ConfidenceDecay: cfg.Buildup.ConfidenceDecay,
	})
	if err != nil {
		return nil, err
	}

	reactors := NewReactorManager()
	for _, spec := range cfg.Reactors {
		if spec.Preset != "" {
			if err := reactors.ApplyPreset(spec.Name, spec.Preset); err != nil {
				return nil, err
			}
			continue
		}
		rc := ReactorConfig{
			FreqStart:   spec.FreqStart,
			FreqEnd:     spec.FreqEnd,
			Mode:        ReactorMode(spec.Mode),
			Sensitivity: spec.Sensitivity,
			Smoothing:   spec.Smoothing,
			MinValue:    spec.MinValue,
			MaxValue:    spec.MaxValue,
			Threshold:   spec.Threshold,
			DecayRate:   spec.DecayRate,
		}
		if err := reactors.Set(spec.Name, rc); err != nil {
			return nil, fmt.Errorf("reactor %q: %w", spec.Name, err)
		}
	}

	return &Pipeline{
		spectrum:     spectrum,
		wave:         wave,
		beat:         beat,
		buildup:      buildup,
		reactors:     reactors,
		outputBins:   cfg.Analysis.OutputBins,
		waveformSize: cfg.Analysis.WaveformSize,
		clock:        time.Now,
	}, nil
}

// SetTransport attaches a sink for control frames. Pass nil to detach.
func (p *Pipeline) SetTransport(t transport.Transport) { p.sink = t }

// SetClock replaces the time source. All timing-dependent logic derives from
// it, which makes the pipeline deterministic under test.
func (p *Pipeline) SetClock(clock func() time.Time) { p.clock = clock }

// Spectrum returns the spectrum parser for direct access (energy feeds,
// reconfiguration).
func (p *Pipeline) Spectrum() *SpectrumParser { return p.spectrum }

// Beat returns the beat detector, e.g. for tap tempo input.
func (p *Pipeline) Beat() *BeatDetector { return p.beat }

// Reactors returns the reactor manager for live mapping changes.
func (p *Pipeline) Reactors() *ReactorManager { return p.reactors }

// Process runs one full analysis frame. freqFrame is the raw magnitude
// spectrum (byte or normalized encoding); waveFrame is the optional
// time-domain buffer and may be nil. The returned frame's slices and map are
// owned by the pipeline and valid until the next call.
func (p *Pipeline) Process(freqFrame, waveFrame []float64) ControlFrame {
	now := p.clock()

	spectrum := p.spectrum.Parse(freqFrame, p.outputBins)
	var waveform []float64
	if waveFrame != nil {
		waveform = p.wave.Parse(waveFrame, p.waveformSize)
	}

	bands := SplitBands(spectrum)
	beat := p.beat.Process(bands.Bass, bands.Overall, now)
	buildup := p.buildup.Update(bands, beat.IsBeat, now)
	outputs := p.reactors.ProcessAll(spectrum)

	frame := ControlFrame{
		Spectrum: spectrum,
		Waveform: waveform,
		Bands:    bands,
		Beat:     beat,
		Buildup:  buildup,
		Reactors: outputs,
	}

	// Publishers run on their own goroutines, so they only ever see copies.
	snapshot := frame.clone()
	p.mu.Lock()
	p.latest = snapshot
	p.mu.Unlock()

	if p.sink != nil {
		_ = p.sink.Send(snapshot)
	}

	return frame
}

// Latest returns a copy of the most recent control frame. Safe to call from
// publisher goroutines while Process runs.
func (p *Pipeline) Latest() ControlFrame {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.latest.clone()
}
