package analysis

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"
)

// Tuning constants for onset detection and tempo tracking. These interact:
// the refractory period caps detectable tempo at 300 BPM, and the history
// window bounds both memory use and how long a tempo change takes to flush.
const (
	defaultBPM = 120.0

	energyWindow    = 700 * time.Millisecond // Adaptive-baseline window
	onsetRefractory = 180 * time.Millisecond // Hard minimum between onsets
	onsetHistory    = 8 * time.Second        // Rolling onset retention

	bassWeight    = 0.7 // Composite energy weighting
	overallWeight = 0.3

	histogramDecay = 0.98 // Per-onset multiplicative bucket decay
	histogramFloor = 0.01 // Buckets below this weight are dropped

	minOnsetsForEstimate = 4   // Re-estimation gate
	doubleSupportRatio   = 0.3 // Octave correction: prefer 2x above this support
	halfSupportRatio     = 0.5 // Octave correction: prefer 1/2x above this support

	tempoStdDevMax   = 5.0 // BPM stddev below which candidates count as stable
	candidateWindow  = 5   // Recent winning candidates kept for stability checks
	tapMinCount      = 4   // Taps required before tap tempo engages
	tapIntervalCount = 8   // Inter-tap intervals averaged
	tapConfidence    = 0.9 // Fixed confidence for manually tapped tempo
)

// BeatConfig holds the tunable parameters of a BeatDetector.
type BeatConfig struct {
	MinBPM          float64 // Lower bound of committed estimates.
	MaxBPM          float64 // Upper bound of committed estimates.
	OnsetThreshold  float64 // Base derivative threshold for onset firing.
	StabilityFrames int     // Consecutive stable re-estimations before a commit.
}

// BeatResult is the per-frame output of the detector.
type BeatResult struct {
	BPM          float64   `json:"bpm"`
	Confidence   float64   `json:"confidence"`
	LastBeatTime time.Time `json:"lastBeatTime"`
	BeatPhase    float64   `json:"beatPhase"` // 0-1 position within the current beat cycle
	IsBeat       bool      `json:"isBeat"`    // True only on the frame an onset fired
}

// BeatDetector turns a per-frame scalar energy feed into onset events, a
// tempo estimate, a confidence score, and a beat phase.
//
// Onsets feed an exponentially decaying histogram of integer BPM candidates.
// Tempo re-estimation resolves octave ambiguity against harmonically related
// buckets and commits a new value only after the winning candidate has been
// stable (stddev below tempoStdDevMax) for StabilityFrames consecutive
// re-estimations. The two-stage hysteresis is what keeps momentary noise from
// flicking the committed tempo around.
type BeatDetector struct {
	cfg BeatConfig

	energies      *sampleRing // Composite energy window for the adaptive baseline
	prevComposite float64

	onsets *timeRing
	hist   map[int]float64 // Candidate BPM -> decaying weight

	candidates  []float64 // Ring of recent winning candidates, oldest-first rotation
	candHead    int
	candLen     int
	candScratch []float64 // Reused for gonum mean/stddev

	stableCount int

	taps *timeRing

	bpm        float64
	confidence float64
	lastOnset  time.Time
	hasOnset   bool
}

// NewBeatDetector validates cfg and returns a detector at the default tempo.
func NewBeatDetector(cfg BeatConfig) (*BeatDetector, error) {
	if cfg.MinBPM <= 0 || cfg.MinBPM >= cfg.MaxBPM {
		return nil, fmt.Errorf("beat: min BPM %.1f must be positive and below max BPM %.1f", cfg.MinBPM, cfg.MaxBPM)
	}
	if cfg.StabilityFrames < 1 {
		return nil, fmt.Errorf("beat: stability frames must be at least 1")
	}

	d := &BeatDetector{
		cfg:         cfg,
		energies:    newSampleRing(64), // 0.7s at 60Hz is ~42 samples
		onsets:      newTimeRing(64),   // 8s at the 300 BPM cap is 40 onsets
		taps:        newTimeRing(16),
		candidates:  make([]float64, candidateWindow),
		candScratch: make([]float64, 0, candidateWindow),
		hist:        make(map[int]float64),
	}
	d.Reset()
	return d, nil
}

// Reset clears all history back to the default tempo with zero confidence.
func (d *BeatDetector) Reset() {
	d.energies.reset()
	d.onsets.reset()
	d.taps.reset()
	d.candHead, d.candLen = 0, 0
	d.stableCount = 0
	d.prevComposite = 0
	d.hasOnset = false
	d.lastOnset = time.Time{}
	d.bpm = d.clampBPM(defaultBPM)
	d.confidence = 0
	for k := range d.hist {
		delete(d.hist, k)
	}
}

// BPM returns the committed tempo estimate.
func (d *BeatDetector) BPM() float64 { return d.bpm }

// Process consumes one frame of band energy and returns the current beat
// state. now must be monotonically non-decreasing across calls; all timing
// (refractory period, history pruning, phase) derives from it.
func (d *BeatDetector) Process(bass, overall float64, now time.Time) BeatResult {
	composite := bassWeight*bass + overallWeight*overall

	d.energies.push(now, composite)
	d.energies.dropBefore(now.Add(-energyWindow))
	baseline := d.energies.mean()

	derivative := composite - d.prevComposite
	d.prevComposite = composite

	rise := derivative > math.Max(d.cfg.OnsetThreshold*0.5, baseline*0.2)
	loud := composite > baseline*1.15
	clear := !d.hasOnset || now.Sub(d.lastOnset) >= onsetRefractory

	isBeat := rise && loud && clear
	if isBeat {
		d.onOnset(now)
	}

	return BeatResult{
		BPM:          d.bpm,
		Confidence:   d.confidence,
		LastBeatTime: d.lastOnset,
		BeatPhase:    d.phase(now),
		IsBeat:       isBeat,
	}
}

// Tap records a manual tap as an onset. Once tapMinCount taps are buffered,
// the tempo is computed directly from the mean of the most recent inter-tap
// intervals and committed immediately with fixed high confidence, bypassing
// the hysteresis. Manual input is trusted instantly.
func (d *BeatDetector) Tap(now time.Time) {
	d.taps.push(now)
	d.onsets.push(now)
	d.onsets.dropBefore(now.Add(-onsetHistory))
	d.lastOnset = now
	d.hasOnset = true

	if d.taps.len() < tapMinCount {
		return
	}

	// Mean of up to the last tapIntervalCount intervals.
	first := d.taps.len() - (tapIntervalCount + 1)
	if first < 0 {
		first = 0
	}
	var sum float64
	count := 0
	for i := first + 1; i < d.taps.len(); i++ {
		sum += d.taps.at(i).Sub(d.taps.at(i - 1)).Seconds()
		count++
	}
	if count == 0 || sum <= 0 {
		return
	}

	bpm := 60 / (sum / float64(count))
	if bpm < d.cfg.MinBPM || bpm > d.cfg.MaxBPM {
		return
	}
	d.bpm = bpm
	d.confidence = tapConfidence
	d.stableCount = 0
	d.candLen = 0
}

// onOnset folds a detected onset into the history and histogram, then
// re-estimates the tempo once enough onsets are buffered.
func (d *BeatDetector) onOnset(now time.Time) {
	if d.hasOnset {
		interval := now.Sub(d.lastOnset).Seconds()
		if interval > 0 {
			bpm := 60 / interval
			if bpm >= d.cfg.MinBPM && bpm <= d.cfg.MaxBPM {
				bucket := int(math.Round(bpm))
				d.hist[bucket]++
			}
		}
		// Online exponential decay: every bucket fades, negligible
		// buckets are dropped so the map stays bounded.
		for k, w := range d.hist {
			w *= histogramDecay
			if w < histogramFloor {
				delete(d.hist, k)
			} else {
				d.hist[k] = w
			}
		}
	}

	d.onsets.push(now)
	d.onsets.dropBefore(now.Add(-onsetHistory))
	d.lastOnset = now
	d.hasOnset = true

	if d.onsets.len() >= minOnsetsForEstimate {
		d.reestimate()
	}
}

// reestimate picks the winning histogram candidate, applies octave
// correction, and commits a new tempo only after the stability hysteresis has
// been satisfied.
func (d *BeatDetector) reestimate() {
	best := 0
	var bestWeight, totalWeight float64
	for bpm, w := range d.hist {
		totalWeight += w
		if w > bestWeight || (w == bestWeight && bpm < best) {
			best = bpm
			bestWeight = w
		}
	}
	if best == 0 || totalWeight <= 0 {
		return
	}

	// Octave correction: a congested half-tempo bucket often outweighs the
	// true tempo. Prefer the doubled tempo on modest support, the halved
	// tempo only on strong support.
	if w2 := d.hist[best*2]; w2 > doubleSupportRatio*bestWeight && float64(best*2) <= d.cfg.MaxBPM {
		best *= 2
		bestWeight = w2
	} else if wh := d.hist[best/2]; best%2 == 0 && wh > halfSupportRatio*bestWeight && float64(best/2) >= d.cfg.MinBPM {
		best /= 2
		bestWeight = wh
	}

	d.pushCandidate(float64(best))

	x := d.candScratch[:0]
	for i := 0; i < d.candLen; i++ {
		x = append(x, d.candidates[(d.candHead+i)%len(d.candidates)])
	}
	d.candScratch = x

	mean := stat.Mean(x, nil)
	std := 0.0
	if len(x) > 1 {
		std = stat.StdDev(x, nil)
	}

	if std < tempoStdDevMax {
		d.stableCount++
	} else {
		d.stableCount = 0
	}

	if d.stableCount >= d.cfg.StabilityFrames {
		d.bpm = d.clampBPM(mean)
	}
	d.confidence = bestWeight / totalWeight
}

func (d *BeatDetector) pushCandidate(bpm float64) {
	idx := (d.candHead + d.candLen) % len(d.candidates)
	d.candidates[idx] = bpm
	if d.candLen < len(d.candidates) {
		d.candLen++
	} else {
		d.candHead = (d.candHead + 1) % len(d.candidates)
	}
}

// phase returns the 0-1 position within the current beat cycle, for sub-beat
// animation timing.
func (d *BeatDetector) phase(now time.Time) float64 {
	if !d.hasOnset || d.bpm <= 0 {
		return 0
	}
	interval := 60 / d.bpm
	elapsed := now.Sub(d.lastOnset).Seconds()
	if elapsed < 0 {
		return 0
	}
	return math.Mod(elapsed, interval) / interval
}

func (d *BeatDetector) clampBPM(bpm float64) float64 {
	if bpm < d.cfg.MinBPM {
		return d.cfg.MinBPM
	}
	if bpm > d.cfg.MaxBPM {
		return d.cfg.MaxBPM
	}
	return bpm
}
