package main

import (
	"fmt"
	"math"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Mattallmighty/audio-visualiser-sub001/cmd"
	"github.com/Mattallmighty/audio-visualiser-sub001/internal/analysis"
	"github.com/Mattallmighty/audio-visualiser-sub001/internal/fft"
	applog "github.com/Mattallmighty/audio-visualiser-sub001/internal/log"
	"github.com/Mattallmighty/audio-visualiser-sub001/internal/transport"
	"github.com/Mattallmighty/audio-visualiser-sub001/internal/transport/udp"
	"github.com/Mattallmighty/audio-visualiser-sub001/pkg/build"
)

// main is the entry point for the reactive analysis engine.
// The program flow is divided into three phases:
//
// 1. Startup (cold path): build info, argument parsing, one-off commands,
// pipeline and transport construction.
//
// 2. Frame loop (hot path): a 60Hz driver feeds frequency frames through the
// pipeline; attached transports publish the resulting control frames.
//
// 3. Shutdown (cold path): signal handling, transport teardown.
func main() {
	// ==================== STARTUP PHASE ====================

	build.Initialize()

	cfg, err := cmd.ParseArgs()
	if err != nil {
		applog.Fatalf("%v", err)
	}
	if cfg == nil {
		return // Help or version output already handled
	}

	if level, ok := applog.ParseLevel(cfg.LogLevel); ok {
		applog.SetLevel(level)
	}
	if cfg.Debug {
		applog.SetLevel(applog.LevelDebug)
	}

	if cfg.Command == "presets" {
		for _, name := range analysis.Presets() {
			preset, _ := analysis.PresetConfig(name)
			fmt.Printf("%-16s %s  range %.2f-%.2f\n", name, preset.Mode, preset.FreqStart, preset.FreqEnd)
		}
		return
	}

	pipeline, err := analysis.NewPipeline(cfg)
	if err != nil {
		applog.Fatalf("pipeline: %v", err)
	}

	// Without any configured reactors the engine would emit nothing useful;
	// wire a default set from the presets.
	if pipeline.Reactors().Len() == 0 {
		for name, preset := range map[string]string{
			"rotation":   "bass-rotation",
			"pulse":      "bass-pulse",
			"brightness": "mid-brightness",
		} {
			if err := pipeline.Reactors().ApplyPreset(name, preset); err != nil {
				applog.Fatalf("preset %q: %v", preset, err)
			}
		}
	}

	if cfg.Transport.WebSocketEnabled {
		ws := transport.NewWebSocketTransport(cfg.Transport.WebSocketAddress)
		defer ws.Close()
		pipeline.SetTransport(ws)
	} else if cfg.Debug {
		pipeline.SetTransport(transport.NewLoggingTransport())
	}

	var publisher *udp.Publisher
	if cfg.Transport.UDPEnabled {
		sender, err := udp.NewSender(cfg.Transport.UDPTargetAddress)
		if err != nil {
			applog.Fatalf("udp: %v", err)
		}
		defer sender.Close()

		publisher, err = udp.NewPublisher(cfg.Transport.UDPSendInterval, sender, pipeline)
		if err != nil {
			applog.Fatalf("udp: %v", err)
		}
		publisher.Start()
		defer publisher.Stop()
	}

	analyser, err := fft.NewAnalyser(
		cfg.Analysis.FFTSize,
		cfg.Analysis.SampleRate,
		cfg.Analysis.MinDecibels,
		cfg.Analysis.MaxDecibels,
	)
	if err != nil {
		applog.Fatalf("fft: %v", err)
	}

	applog.Infof("%s %s starting (fft %d, %d bins, %.0f-%.0f Hz)",
		build.GetInfo().Name, build.GetInfo().Version,
		cfg.Analysis.FFTSize, cfg.Analysis.OutputBins,
		cfg.Analysis.MinFrequency, cfg.Analysis.MaxFrequency)

	// ==================== FRAME LOOP ====================

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	// Audio capture is out of scope for this core, so the demo driver runs
	// the pipeline from a synthesized 126 BPM signal. Swap this loop for a
	// real frame feed to drive it from live audio.
	gen := &demoSignal{sampleRate: cfg.Analysis.SampleRate, bpm: 126}
	samples := make([]float64, cfg.Analysis.FFTSize)

	frameTicker := time.NewTicker(16 * time.Millisecond) // ~60Hz
	defer frameTicker.Stop()
	statusTicker := time.NewTicker(2 * time.Second)
	defer statusTicker.Stop()

	run(pipeline, analyser, gen, samples, frameTicker, statusTicker, done)

	// ==================== SHUTDOWN PHASE ====================

	applog.Infof("shutting down")
}

func run(pipeline *analysis.Pipeline, analyser *fft.Analyser,
	gen *demoSignal, samples []float64,
	frameTicker, statusTicker *time.Ticker, done chan os.Signal) {
	for {
		select {
		case <-frameTicker.C:
			gen.fill(samples)
			frame := analyser.Process(samples)
			pipeline.Process(frame, samples)
		case <-statusTicker.C:
			latest := pipeline.Latest()
			applog.Infof("bpm %.1f (conf %.2f) phase %.2f buildup %s (conf %.2f)",
				latest.Beat.BPM, latest.Beat.Confidence, latest.Beat.BeatPhase,
				latest.Buildup.Phase, latest.Buildup.Confidence)
		case <-done:
			return
		}
	}
}

// demoSignal synthesizes a four-on-the-floor style test signal: a decaying
// low kick on every beat over a quiet pad plus noise.
type demoSignal struct {
	sampleRate float64
	bpm        float64
	t          float64 // Running time in seconds, continuous across fills
}

func (g *demoSignal) fill(buf []float64) {
	beatPeriod := 60 / g.bpm
	for i := range buf {
		tm := g.t + float64(i)/g.sampleRate
		pos := math.Mod(tm, beatPeriod)

		kick := math.Exp(-pos*18) * math.Sin(2*math.Pi*55*tm)
		pad := 0.15*math.Sin(2*math.Pi*220*tm) + 0.1*math.Sin(2*math.Pi*330*tm)
		noise := 0.05 * (rand.Float64()*2 - 1)

		buf[i] = 0.8*kick + pad + noise
	}
	g.t += float64(len(buf)) / g.sampleRate
}
