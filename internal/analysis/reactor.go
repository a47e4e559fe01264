package analysis

import (
	"fmt"
	"math"
	"sort"
)

// ReactorMode selects the transform applied between the extracted band value
// and the smoothed output.
type ReactorMode string

const (
	ModeAdd      ReactorMode = "add"      // Identity
	ModeSubtract ReactorMode = "subtract" // Inversion: 1 - value
	ModeMultiply ReactorMode = "multiply" // Feedback against own previous output
	ModeCycle    ReactorMode = "cycle"    // Wrapping phase accumulator
	ModePulse    ReactorMode = "pulse"    // Threshold latch with exponential decay
)

// cycleSpeed scales how much audio energy advances the cycle accumulator per
// call. Rotation is driven by energy, not wall clock.
const cycleSpeed = 0.05

// ReactorConfig describes one reactive mapping from a frequency sub-range to
// a bounded output scalar.
type ReactorConfig struct {
	FreqStart   float64     `json:"freqStart" yaml:"freq_start"` // Normalized 0-1 start of the bin sub-range
	FreqEnd     float64     `json:"freqEnd" yaml:"freq_end"`     // Normalized 0-1 end of the bin sub-range
	Mode        ReactorMode `json:"mode" yaml:"mode"`
	Sensitivity float64     `json:"sensitivity" yaml:"sensitivity"` // Input gain before the mode transform
	Smoothing   float64     `json:"smoothing" yaml:"smoothing"`     // EMA coefficient for the output
	MinValue    float64     `json:"minValue" yaml:"min_value"`      // Output range low edge
	MaxValue    float64     `json:"maxValue" yaml:"max_value"`      // Output range high edge
	Threshold   float64     `json:"threshold" yaml:"threshold"`     // Pulse trigger level
	DecayRate   float64     `json:"decayRate" yaml:"decay_rate"`    // Pulse decay factor per call
}

// DefaultReactorConfig returns a full-range add-mode mapping with unity output.
func DefaultReactorConfig() ReactorConfig {
	return ReactorConfig{
		FreqStart:   0,
		FreqEnd:     1,
		Mode:        ModeAdd,
		Sensitivity: 1,
		Smoothing:   0.5,
		MinValue:    0,
		MaxValue:    1,
		Threshold:   0.5,
		DecayRate:   0.9,
	}
}

// validate enforces the configuration invariants. Everything at frame time
// clamps instead.
func (c ReactorConfig) validate() error {
	switch c.Mode {
	case ModeAdd, ModeSubtract, ModeMultiply, ModeCycle, ModePulse:
	default:
		return fmt.Errorf("reactor: unknown mode %q", c.Mode)
	}
	if c.FreqStart < 0 || c.FreqEnd > 1 || c.FreqStart >= c.FreqEnd {
		return fmt.Errorf("reactor: freq range [%.2f, %.2f] must satisfy 0 <= start < end <= 1", c.FreqStart, c.FreqEnd)
	}
	if c.Smoothing < 0 || c.Smoothing >= 1 {
		return fmt.Errorf("reactor: smoothing %.2f must be in [0, 1)", c.Smoothing)
	}
	if c.MinValue >= c.MaxValue {
		return fmt.Errorf("reactor: min value %.2f must be below max value %.2f", c.MinValue, c.MaxValue)
	}
	if c.Mode == ModePulse && (c.DecayRate <= 0 || c.DecayRate >= 1) {
		return fmt.Errorf("reactor: pulse decay rate %.2f must be in (0, 1)", c.DecayRate)
	}
	return nil
}

// Reactor maps a configured sub-range of a normalized spectrum through its
// mode transform into a smoothed, range-mapped scalar. State is one smoothed
// value plus the cycle accumulator and pulse latch.
type Reactor struct {
	cfg      ReactorConfig
	smoothed float64 // Previous smoothed output, pre range mapping (0-1)
	accum    float64 // Cycle mode phase accumulator, always in [0, 1)
	pulse    float64 // Pulse mode decaying value
	elevated bool    // Pulse latch armed state
}

// NewReactor validates cfg and returns a reactor with zeroed state.
func NewReactor(cfg ReactorConfig) (*Reactor, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Reactor{cfg: cfg}, nil
}

// Config returns the reactor configuration.
func (r *Reactor) Config() ReactorConfig { return r.cfg }

// Reconfigure swaps the configuration while keeping the smoothed state, so a
// live parameter tweak does not make the output jump.
func (r *Reactor) Reconfigure(cfg ReactorConfig) error {
	if err := cfg.validate(); err != nil {
		return err
	}
	r.cfg = cfg
	return nil
}

// Process evaluates one frame and returns the output value within
// [MinValue, MaxValue]. An empty spectrum returns the current output.
func (r *Reactor) Process(spectrum []float64) float64 {
	if len(spectrum) == 0 {
		return r.output()
	}

	lo := int(r.cfg.FreqStart * float64(len(spectrum)))
	hi := int(r.cfg.FreqEnd * float64(len(spectrum)))
	if lo < 0 {
		lo = 0
	}
	if hi > len(spectrum) {
		hi = len(spectrum)
	}
	if hi <= lo {
		hi = lo + 1
		if hi > len(spectrum) {
			lo, hi = len(spectrum)-1, len(spectrum)
		}
	}

	var sum float64
	for _, v := range spectrum[lo:hi] {
		sum += v
	}
	value := clamp01(sum / float64(hi-lo) * r.cfg.Sensitivity)

	var transformed float64
	switch r.cfg.Mode {
	case ModeSubtract:
		transformed = 1 - value
	case ModeMultiply:
		// Feedback loop: the previous output reinforces the new value,
		// producing organic self-compounding motion.
		transformed = clamp01(value * (1 + r.smoothed))
	case ModeCycle:
		r.accum = math.Mod(r.accum+value*cycleSpeed, 1)
		transformed = r.accum
	case ModePulse:
		if value > r.cfg.Threshold {
			if !r.elevated {
				r.pulse = 1
				r.elevated = true
			}
		} else {
			r.elevated = false
		}
		transformed = r.pulse
		r.pulse *= r.cfg.DecayRate
	default: // ModeAdd
		transformed = value
	}

	if k := r.cfg.Smoothing; k > 0 {
		r.smoothed = r.smoothed*k + transformed*(1-k)
	} else {
		r.smoothed = transformed
	}

	return r.output()
}

func (r *Reactor) output() float64 {
	out := r.cfg.MinValue + r.smoothed*(r.cfg.MaxValue-r.cfg.MinValue)
	if out < r.cfg.MinValue {
		return r.cfg.MinValue
	}
	if out > r.cfg.MaxValue {
		return r.cfg.MaxValue
	}
	return out
}

// presets are ready-made mappings for common visual hookups.
var presets = map[string]ReactorConfig{
	"bass-rotation": {
		FreqStart: 0, FreqEnd: 0.1, Mode: ModeCycle,
		Sensitivity: 1.5, Smoothing: 0.2, MinValue: 0, MaxValue: 1,
		Threshold: 0.5, DecayRate: 0.9,
	},
	"bass-pulse": {
		FreqStart: 0, FreqEnd: 0.1, Mode: ModePulse,
		Sensitivity: 1, Smoothing: 0.3, MinValue: 0, MaxValue: 1,
		Threshold: 0.6, DecayRate: 0.92,
	},
	"bass-swell": {
		FreqStart: 0, FreqEnd: 0.15, Mode: ModeMultiply,
		Sensitivity: 1.2, Smoothing: 0.6, MinValue: 0, MaxValue: 1,
		Threshold: 0.5, DecayRate: 0.9,
	},
	"mid-brightness": {
		FreqStart: 0.1, FreqEnd: 0.5, Mode: ModeAdd,
		Sensitivity: 1.2, Smoothing: 0.5, MinValue: 0.2, MaxValue: 1,
		Threshold: 0.5, DecayRate: 0.9,
	},
	"high-sparkle": {
		FreqStart: 0.5, FreqEnd: 1, Mode: ModeAdd,
		Sensitivity: 1.8, Smoothing: 0.4, MinValue: 0, MaxValue: 1,
		Threshold: 0.5, DecayRate: 0.9,
	},
	"inverse-dim": {
		FreqStart: 0, FreqEnd: 1, Mode: ModeSubtract,
		Sensitivity: 1, Smoothing: 0.7, MinValue: 0, MaxValue: 1,
		Threshold: 0.5, DecayRate: 0.9,
	},
}

// Presets returns the available preset names in sorted order.
func Presets() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PresetConfig returns the configuration of a named preset.
func PresetConfig(name string) (ReactorConfig, bool) {
	cfg, ok := presets[name]
	return cfg, ok
}

// ReactorManager owns a named collection of reactors. Names are unique;
// insertion order is irrelevant.
type ReactorManager struct {
	reactors map[string]*Reactor
	outputs  map[string]float64 // Reused across ProcessAll calls
}

// NewReactorManager returns an empty manager.
func NewReactorManager() *ReactorManager {
	return &ReactorManager{
		reactors: make(map[string]*Reactor),
		outputs:  make(map[string]float64),
	}
}

// Set creates a reactor under name or reconfigures an existing one in place,
// preserving its smoothed state.
func (m *ReactorManager) Set(name string, cfg ReactorConfig) error {
	if name == "" {
		return fmt.Errorf("reactor: name is required")
	}
	if r, ok := m.reactors[name]; ok {
		return r.Reconfigure(cfg)
	}
	r, err := NewReactor(cfg)
	if err != nil {
		return err
	}
	m.reactors[name] = r
	return nil
}

// ApplyPreset creates or reconfigures a reactor from a named preset.
func (m *ReactorManager) ApplyPreset(name, preset string) error {
	cfg, ok := presets[preset]
	if !ok {
		return fmt.Errorf("reactor: unknown preset %q", preset)
	}
	return m.Set(name, cfg)
}

// Remove deletes a reactor. Removing an unknown name is a no-op.
func (m *ReactorManager) Remove(name string) {
	delete(m.reactors, name)
	delete(m.outputs, name)
}

// Len returns the number of reactors.
func (m *ReactorManager) Len() int { return len(m.reactors) }

// Process evaluates a single reactor against the spectrum. The bool reports
// whether the name exists.
func (m *ReactorManager) Process(name string, spectrum []float64) (float64, bool) {
	r, ok := m.reactors[name]
	if !ok {
		return 0, false
	}
	return r.Process(spectrum), true
}

// ProcessAll evaluates every reactor and returns the name-to-value mapping.
// The returned map is owned by the manager and reused across calls.
func (m *ReactorManager) ProcessAll(spectrum []float64) map[string]float64 {
	for name, r := range m.reactors {
		m.outputs[name] = r.Process(spectrum)
	}
	return m.outputs
}

// Export returns a copy of every reactor's configuration keyed by name.
func (m *ReactorManager) Export() map[string]ReactorConfig {
	out := make(map[string]ReactorConfig, len(m.reactors))
	for name, r := range m.reactors {
		out[name] = r.cfg
	}
	return out
}

// Import replaces the manager contents with the given configurations.
// On error the manager is left unchanged.
func (m *ReactorManager) Import(cfgs map[string]ReactorConfig) error {
	next := make(map[string]*Reactor, len(cfgs))
	for name, cfg := range cfgs {
		if name == "" {
			return fmt.Errorf("reactor: name is required")
		}
		r, err := NewReactor(cfg)
		if err != nil {
			return fmt.Errorf("reactor %q: %w", name, err)
		}
		next[name] = r
	}
	m.reactors = next
	m.outputs = make(map[string]float64, len(next))
	return nil
}
