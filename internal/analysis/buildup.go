package analysis

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/stat"
)

// BuildupPhase is the discrete lifecycle position of a detected buildup.
type BuildupPhase string

const (
	PhaseIdle    BuildupPhase = "idle"
	PhaseEarly   BuildupPhase = "early"
	PhaseMid     BuildupPhase = "mid"
	PhasePeak    BuildupPhase = "peak"
	PhaseRelease BuildupPhase = "release"
)

// Window and scoring constants. The weighted heuristics sum to at most 1;
// each contributes only when its own condition holds.
const (
	shortWindow = 500 * time.Millisecond
	longWindow  = 4 * time.Second
	beatHistory = 8 * time.Second

	trendMinSlope = 0.1 // Normalized trend counted as rising

	weightOverallTrend = 0.25
	weightBassTrend    = 0.20
	weightEnergy       = 0.20
	weightShortOverMid = 0.15
	weightBeatDensity  = 0.20

	scoreRiseGate      = 0.3  // Score above which confidence integrates upward
	confidenceRiseRate = 0.1  // Confidence gain per frame is score * this
	buildupThreshold   = 0.4  // Confidence crossing that drives phase changes
	earlyPhaseDuration = 2 * time.Second
	midPhaseDuration   = 6 * time.Second
	beatsToImpactScale = 16.0
	densityWindow      = 2 * time.Second
	densityExcessRatio = 1.2
	shortExcessRatio   = 1.1
)

// BuildupConfig holds the tunable parameters of a BuildupDetector.
type BuildupConfig struct {
	EnergyThreshold float64 // Absolute short-window energy counted toward the score.
	ConfidenceDecay float64 // Multiplicative confidence decay on low-score frames.
}

// BuildupResult is the per-frame output of the classifier.
type BuildupResult struct {
	IsBuildup     bool         `json:"isBuildup"`
	Confidence    float64      `json:"confidence"`
	BeatsToImpact float64      `json:"beatsToImpact"` // Rough linear heuristic, explicitly approximate
	Energy        float64      `json:"energy"`
	Trend         float64      `json:"trend"` // Normalized overall trend, -1..1
	Phase         BuildupPhase `json:"phase"`
}

// BuildupDetector classifies the current moment into a buildup lifecycle
// phase from banded energy trends and beat density. Confidence is asymmetric:
// it rises quickly while the score holds and decays multiplicatively when it
// drops, matching how perceptible buildups ramp faster than they fade.
type BuildupDetector struct {
	cfg BuildupConfig

	// Index order: overall, bass, mid, high.
	short [4]*sampleRing
	long  [4]*sampleRing
	beats *timeRing

	confidence   float64
	inBuildup    bool
	buildupStart time.Time

	// Regression scratch, reused every frame.
	xs []float64
	ys []float64
}

// NewBuildupDetector validates cfg and returns an idle detector.
func NewBuildupDetector(cfg BuildupConfig) (*BuildupDetector, error) {
	if cfg.ConfidenceDecay <= 0 || cfg.ConfidenceDecay >= 1 {
		return nil, fmt.Errorf("buildup: confidence decay %.2f must be in (0, 1)", cfg.ConfidenceDecay)
	}

	d := &BuildupDetector{
		cfg:   cfg,
		beats: newTimeRing(64),
		xs:    make([]float64, 0, 256),
		ys:    make([]float64, 0, 256),
	}
	for i := range d.short {
		d.short[i] = newSampleRing(32)  // 0.5s at 60Hz
		d.long[i] = newSampleRing(256)  // 4s at 60Hz
	}
	return d, nil
}

// Reset returns the detector to idle with all windows cleared.
func (d *BuildupDetector) Reset() {
	for i := range d.short {
		d.short[i].reset()
		d.long[i].reset()
	}
	d.beats.reset()
	d.confidence = 0
	d.inBuildup = false
}

// Update consumes one frame of band energies plus the beat flag and returns
// the current buildup state. now drives all window pruning and phase timing.
func (d *BuildupDetector) Update(bands BandEnergies, isBeat bool, now time.Time) BuildupResult {
	vals := [4]float64{bands.Overall, bands.Bass, bands.Mid, bands.High}
	for i := range vals {
		d.short[i].push(now, vals[i])
		d.short[i].dropBefore(now.Add(-shortWindow))
		d.long[i].push(now, vals[i])
		d.long[i].dropBefore(now.Add(-longWindow))
	}

	if isBeat {
		d.beats.push(now)
	}
	d.beats.dropBefore(now.Add(-beatHistory))

	trend := d.trend(d.long[0])
	bassTrend := d.trend(d.long[1])

	shortAvg := d.short[0].mean()
	longAvg := d.long[0].mean()

	recent := d.beats.countBetween(now.Add(-densityWindow), now.Add(time.Nanosecond))
	prior := d.beats.countBetween(now.Add(-2*densityWindow), now.Add(-densityWindow))

	var score float64
	if trend > trendMinSlope {
		score += weightOverallTrend
	}
	if bassTrend > trendMinSlope {
		score += weightBassTrend
	}
	if shortAvg > d.cfg.EnergyThreshold {
		score += weightEnergy
	}
	if shortAvg > longAvg*shortExcessRatio {
		score += weightShortOverMid
	}
	if prior > 0 && float64(recent) > float64(prior)*densityExcessRatio {
		score += weightBeatDensity
	}

	// Easy up, slow down.
	if score > scoreRiseGate {
		d.confidence += score * confidenceRiseRate
		if d.confidence > 1 {
			d.confidence = 1
		}
	} else {
		d.confidence *= d.cfg.ConfidenceDecay
	}

	phase := d.advancePhase(now)

	return BuildupResult{
		IsBuildup:     d.inBuildup,
		Confidence:    d.confidence,
		BeatsToImpact: (1 - d.confidence) * beatsToImpactScale,
		Energy:        shortAvg,
		Trend:         trend,
		Phase:         phase,
	}
}

// advancePhase derives the lifecycle phase from confidence and elapsed time.
// A confidence drop while in a buildup emits exactly one release phase before
// returning to idle.
func (d *BuildupDetector) advancePhase(now time.Time) BuildupPhase {
	if d.confidence >= buildupThreshold {
		if !d.inBuildup {
			d.inBuildup = true
			d.buildupStart = now
		}
		elapsed := now.Sub(d.buildupStart)
		switch {
		case elapsed < earlyPhaseDuration:
			return PhaseEarly
		case elapsed < midPhaseDuration:
			return PhaseMid
		default:
			return PhasePeak
		}
	}

	if d.inBuildup {
		d.inBuildup = false
		return PhaseRelease
	}
	return PhaseIdle
}

// trend fits a least-squares line to a window and normalizes the slope so
// that a full-scale energy change across the window maps to +/-1.
func (d *BuildupDetector) trend(r *sampleRing) float64 {
	if r.len() < 2 {
		return 0
	}

	t0, _ := r.at(0)
	d.xs = d.xs[:0]
	d.ys = d.ys[:0]
	for i := 0; i < r.len(); i++ {
		t, v := r.at(i)
		d.xs = append(d.xs, t.Sub(t0).Seconds())
		d.ys = append(d.ys, v)
	}

	span := d.xs[len(d.xs)-1]
	if span <= 0 {
		return 0
	}

	_, slope := stat.LinearRegression(d.xs, d.ys, nil, false)
	norm := slope * span // Total fitted change across the window
	if norm > 1 {
		return 1
	}
	if norm < -1 {
		return -1
	}
	return norm
}
