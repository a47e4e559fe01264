package analysis

// Band edges as fractions of the normalized spectrum. The bottom tenth of the
// bins carries the bass content once the frequency range of interest has been
// applied upstream; the next four tenths are mids, the remainder highs.
const (
	bassEdge = 0.1
	midEdge  = 0.5
)

// BandEnergies holds the per-frame scalar energy of each coarse band plus the
// overall mean. Values are 0-1, derived from an already-normalized spectrum.
type BandEnergies struct {
	Overall float64 `json:"overall"`
	Bass    float64 `json:"bass"`
	Mid     float64 `json:"mid"`
	High    float64 `json:"high"`
}

// SplitBands averages a normalized spectrum into overall/bass/mid/high
// scalars. An empty spectrum yields zeroes.
func SplitBands(spectrum []float64) BandEnergies {
	n := len(spectrum)
	if n == 0 {
		return BandEnergies{}
	}

	bassEnd := int(float64(n) * bassEdge)
	if bassEnd < 1 {
		bassEnd = 1
	}
	midEnd := int(float64(n) * midEdge)
	if midEnd <= bassEnd {
		midEnd = bassEnd + 1
	}
	if midEnd > n {
		midEnd = n
	}

	var e BandEnergies
	for i, v := range spectrum {
		e.Overall += v
		switch {
		case i < bassEnd:
			e.Bass += v
		case i < midEnd:
			e.Mid += v
		default:
			e.High += v
		}
	}

	e.Overall /= float64(n)
	e.Bass /= float64(bassEnd)
	if midEnd > bassEnd {
		e.Mid /= float64(midEnd - bassEnd)
	}
	if n > midEnd {
		e.High /= float64(n - midEnd)
	}
	return e
}
