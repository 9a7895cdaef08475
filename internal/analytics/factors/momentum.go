package factors

import (
	"errors"

	marketdata "github.com/Dmurillo722/moby/internal/domain/entity/marketdata"
)

// DefaultLookback is roughly four trading months of daily periods.
const DefaultLookback = 84

// ErrInsufficientData signals that an analyzer cannot produce a defined
// result for the supplied history. Callers must handle it explicitly; it
// is never coerced to zero.
var ErrInsufficientData = errors.New("insufficient data")

// MomentumAnalyzer measures an instrument's rate of change against its own
// past over a fixed lookback of bar periods.
type MomentumAnalyzer struct {
	lookback int
}

// NewMomentumAnalyzer builds an analyzer; a non-positive lookback falls
// back to DefaultLookback.
func NewMomentumAnalyzer(lookback int) *MomentumAnalyzer {
	if lookback <= 0 {
		lookback = DefaultLookback
	}
	return &MomentumAnalyzer{lookback: lookback}
}

// Lookback returns the configured number of bar periods.
func (m *MomentumAnalyzer) Lookback() int {
	return m.lookback
}

// Compute returns the percentage rate of change of the close price over
// the lookback. Requires lookback+1 bars.
func (m *MomentumAnalyzer) Compute(bars []marketdata.Bar) (float64, error) {
	closes := make([]float64, 0, len(bars))
	for _, bar := range bars {
		closes = append(closes, bar.Close)
	}
	return m.ComputeFromCloses(closes)
}

// ComputeFromCloses is Compute over a raw close-price sequence, ordered
// oldest to newest.
func (m *MomentumAnalyzer) ComputeFromCloses(closes []float64) (float64, error) {
	if len(closes) < m.lookback+1 {
		return 0, ErrInsufficientData
	}
	last := closes[len(closes)-1]
	base := closes[len(closes)-1-m.lookback]
	if base == 0 {
		return 0, ErrInsufficientData
	}
	return (last - base) / base * 100, nil
}

// IsPositive reports the sign of the momentum value. Undefined momentum
// stays undefined here, there is no separate divide-by-zero path.
func (m *MomentumAnalyzer) IsPositive(bars []marketdata.Bar) (bool, error) {
	roc, err := m.Compute(bars)
	if err != nil {
		return false, err
	}
	return roc > 0, nil
}
