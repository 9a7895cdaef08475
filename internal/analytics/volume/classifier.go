package volume

// Significance buckets an impact ratio.
type Significance string

const (
	SignificanceExtreme     Significance = "Extreme"
	SignificanceSignificant Significance = "Significant"
	SignificanceMinor       Significance = "Minor"
	SignificanceNormal      Significance = "Normal"
)

var significanceRank = map[Significance]int{
	SignificanceNormal:      0,
	SignificanceMinor:       1,
	SignificanceSignificant: 2,
	SignificanceExtreme:     3,
}

// AtLeast reports whether s is at or above min in severity.
func (s Significance) AtLeast(min Significance) bool {
	return significanceRank[s] >= significanceRank[min]
}

// Thresholds are the ratio cut points for each bucket. Boundary values
// resolve to the higher category.
type Thresholds struct {
	Extreme     float64
	Significant float64
	Minor       float64
}

// DefaultThresholds reflect rough liquidity heuristics; tune per venue.
var DefaultThresholds = Thresholds{
	Extreme:     0.25,
	Significant: 0.15,
	Minor:       0.10,
}

// Classify buckets a ratio into its significance category.
func (t Thresholds) Classify(ratio float64) Significance {
	switch {
	case ratio >= t.Extreme:
		return SignificanceExtreme
	case ratio >= t.Significant:
		return SignificanceSignificant
	case ratio >= t.Minor:
		return SignificanceMinor
	default:
		return SignificanceNormal
	}
}
