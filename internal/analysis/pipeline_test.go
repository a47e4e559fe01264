package analysis

import (
	"testing"
	"time"

	"github.com/Mattallmighty/audio-visualiser-sub001/internal/config"
	"github.com/Mattallmighty/audio-visualiser-sub001/pkg/utils"
)

func testPipelineConfig() *config.Config {
	return &config.Config{
		Analysis: config.AnalysisConfig{
			SampleRate:   config.DefaultSampleRate,
			FFTSize:      config.DefaultFFTSize,
			OutputBins:   config.DefaultOutputBins,
			WaveformSize: config.DefaultWaveformSize,
			Smoothing:    0,
			MinDecibels:  config.DefaultMinDecibels,
			MaxDecibels:  config.DefaultMaxDecibels,
			MinFrequency: config.DefaultMinFrequency,
			MaxFrequency: config.DefaultMaxFrequency,
		},
		Beat: config.BeatConfig{
			MinBPM:          config.DefaultMinBPM,
			MaxBPM:          config.DefaultMaxBPM,
			OnsetThreshold:  config.DefaultOnsetThreshold,
			StabilityFrames: config.DefaultStabilityFrames,
		},
		Buildup: config.BuildupConfig{
			EnergyThreshold: config.DefaultEnergyThreshold,
			ConfidenceDecay: config.DefaultConfidenceDecay,
		},
	}
}

func TestNewPipelineBuildsReactors(t *testing.T) {
	cfg := testPipelineConfig()
	cfg.Reactors = []config.ReactorSpec{
		{Name: "spin", Preset: "bass-rotation"},
		{
			Name: "glow", FreqStart: 0.1, FreqEnd: 0.5, Mode: "add",
			Sensitivity: 1, Smoothing: 0.5, MinValue: 0, MaxValue: 1,
			Threshold: 0.5, DecayRate: 0.9,
		},
	}

	p, err := NewPipeline(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if p.Reactors().Len() != 2 {
		t.Errorf("reactors = %d, want 2", p.Reactors().Len())
	}
}

func TestNewPipelineRejectsBadReactors(t *testing.T) {
	cfg := testPipelineConfig()
	cfg.Reactors = []config.ReactorSpec{{Name: "x", Preset: "no-such-preset"}}
	if _, err := NewPipeline(cfg); err == nil {
		t.Error("expected error for unknown preset")
	}

	cfg = testPipelineConfig()
	cfg.Reactors = []config.ReactorSpec{{
		Name: "y", FreqStart: 0, FreqEnd: 1, Mode: "wobble",
		Sensitivity: 1, MinValue: 0, MaxValue: 1,
	}}
	if _, err := NewPipeline(cfg); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func TestPipelineSilentFrame(t *testing.T) {
	cfg := testPipelineConfig()
	cfg.Reactors = []config.ReactorSpec{{
		Name: "lift", FreqStart: 0, FreqEnd: 1, Mode: "add",
		Sensitivity: 1, Smoothing: 0, MinValue: 0.25, MaxValue: 0.75,
		Threshold: 0.5, DecayRate: 0.9,
	}}
	p, err := NewPipeline(cfg)
	if err != nil {
		t.Fatal(err)
	}
	p.SetClock(fixedClock(time.Unix(100, 0)))

	frame := p.Process(make([]float64, cfg.Analysis.FFTSize/2), nil)

	if len(frame.Spectrum) != cfg.Analysis.OutputBins {
		t.Fatalf("spectrum length = %d, want %d", len(frame.Spectrum), cfg.Analysis.OutputBins)
	}
	for i, v := range frame.Spectrum {
		if v != 0 {
			t.Fatalf("silent frame produced spectrum[%d] = %.4f", i, v)
		}
	}
	if frame.Bands.Overall != 0 || frame.Beat.IsBeat || frame.Buildup.IsBuildup {
		t.Errorf("silent frame produced activity: %+v", frame)
	}
	if got := frame.Reactors["lift"]; got != 0.25 {
		t.Errorf("reactor at rest = %.4f, want min value 0.25", got)
	}
	if frame.Waveform != nil {
		t.Errorf("nil wave input produced waveform of %d points", len(frame.Waveform))
	}
}

func TestPipelineWaveform(t *testing.T) {
	p, err := NewPipeline(testPipelineConfig())
	if err != nil {
		t.Fatal(err)
	}
	p.SetClock(fixedClock(time.Unix(100, 0)))

	wave := make([]float64, 1024)
	frame := p.Process(make([]float64, 1024), wave)
	if len(frame.Waveform) != config.DefaultWaveformSize {
		t.Errorf("waveform length = %d, want %d", len(frame.Waveform), config.DefaultWaveformSize)
	}
}

func TestPipelineSendsSnapshotsToTransport(t *testing.T) {
	p, err := NewPipeline(testPipelineConfig())
	if err != nil {
		t.Fatal(err)
	}
	p.SetClock(fixedClock(time.Unix(100, 0)))

	sink := &utils.MockTransport{}
	p.SetTransport(sink)

	frame := p.Process(utils.ByteSpectrum(1024, 180, nil), nil)
	if len(sink.Frames) != 1 {
		t.Fatalf("transport received %d frames, want 1", len(sink.Frames))
	}

	sent, ok := sink.Frames[0].(ControlFrame)
	if !ok {
		t.Fatalf("transport received %T, want ControlFrame", sink.Frames[0])
	}

	// The sent frame is a snapshot; mutating the returned frame must not
	// reach it.
	frame.Spectrum[0] = -1
	if sent.Spectrum[0] == -1 {
		t.Error("transport snapshot shares memory with the live frame")
	}
}

func TestPipelineLatestIsIsolated(t *testing.T) {
	p, err := NewPipeline(testPipelineConfig())
	if err != nil {
		t.Fatal(err)
	}
	p.SetClock(fixedClock(time.Unix(100, 0)))

	p.Process(utils.ByteSpectrum(1024, 200, nil), nil)
	first := p.Latest()
	firstVal := first.Spectrum[0]

	// A quieter frame changes the pipeline state but not the earlier copy.
	p.Process(make([]float64, 1024), nil)
	if first.Spectrum[0] != firstVal {
		t.Error("Latest copy mutated by a later Process call")
	}

	second := p.Latest()
	second.Spectrum[0] = -1
	if p.Latest().Spectrum[0] == -1 {
		t.Error("mutating a Latest copy reached pipeline state")
	}
}

// The clock drives all tempo and trend logic, so injected time yields
// deterministic beat output.
func TestPipelineInjectedClock(t *testing.T) {
	p, err := NewPipeline(testPipelineConfig())
	if err != nil {
		t.Fatal(err)
	}

	now := time.Unix(100, 0)
	p.SetClock(func() time.Time { return now })

	quiet := utils.ByteSpectrum(1024, 40, nil)
	loud := utils.ByteSpectrum(1024, 230, nil)

	sawBeat := false
	end := now.Add(10 * time.Second)
	next := now
	for now.Before(end) {
		frame := quiet
		if !now.Before(next) {
			frame = loud
			next = next.Add(500 * time.Millisecond) // 120 BPM
		}
		res := p.Process(frame, nil)
		if res.Beat.IsBeat {
			sawBeat = true
		}
		now = now.Add(10 * time.Millisecond)
	}

	if !sawBeat {
		t.Error("no beats detected from a periodic loud/quiet pattern")
	}
	latest := p.Latest()
	if latest.Beat.BPM < 100 || latest.Beat.BPM > 140 {
		t.Errorf("BPM = %.1f, want near 120", latest.Beat.BPM)
	}
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
