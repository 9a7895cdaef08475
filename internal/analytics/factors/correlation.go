package factors

import (
	"errors"
	"math"
)

// ErrZeroVariance signals a Pearson correlation over a flat return series,
// where the coefficient is undefined.
var ErrZeroVariance = errors.New("zero variance")

// CorrelationAnalyzer scores instruments by their average pairwise Pearson
// correlation of log returns over a fixed lookback. A lower average
// correlation against the basket means better diversification.
type CorrelationAnalyzer struct {
	lookback int
}

// NewCorrelationAnalyzer builds an analyzer; a non-positive lookback falls
// back to DefaultLookback.
func NewCorrelationAnalyzer(lookback int) *CorrelationAnalyzer {
	if lookback <= 0 {
		lookback = DefaultLookback
	}
	return &CorrelationAnalyzer{lookback: lookback}
}

// Lookback returns the configured number of periods.
func (c *CorrelationAnalyzer) Lookback() int {
	return c.lookback
}

// Compute maps each basket member to the mean of its pairwise correlation
// with every other member, over the most recent lookback+1 closes. Every
// series must supply at least lookback+1 points; one short series
// invalidates the whole batch.
func (c *CorrelationAnalyzer) Compute(basket map[string][]float64) (map[string]float64, error) {
	for _, closes := range basket {
		if len(closes) < c.lookback+1 {
			return nil, ErrInsufficientData
		}
	}

	returns := make(map[string][]float64, len(basket))
	for symbol, closes := range basket {
		returns[symbol] = LogReturns(closes[len(closes)-(c.lookback+1):])
	}

	scores := make(map[string]float64, len(basket))
	for symbol := range basket {
		var sum float64
		var count int
		for other := range basket {
			if other == symbol {
				continue
			}
			corr, err := Pearson(returns[symbol], returns[other])
			if err != nil {
				continue
			}
			sum += corr
			count++
		}
		if count == 0 {
			scores[symbol] = 0
			continue
		}
		scores[symbol] = sum / float64(count)
	}
	return scores, nil
}

// ComputeSingle scores one target series against the basket: the average
// of the target's pairwise correlation with every member that has enough
// history. Returns ErrInsufficientData when the target lacks history or
// no member produces a defined correlation.
func (c *CorrelationAnalyzer) ComputeSingle(targetCloses []float64, basket map[string][]float64) (float64, error) {
	if len(targetCloses) < c.lookback+1 {
		return 0, ErrInsufficientData
	}
	targetReturns := LogReturns(targetCloses[len(targetCloses)-(c.lookback+1):])

	var sum float64
	var count int
	for _, closes := range basket {
		if len(closes) < c.lookback+1 {
			continue
		}
		memberReturns := LogReturns(closes[len(closes)-(c.lookback+1):])
		corr, err := Pearson(targetReturns, memberReturns)
		if err != nil {
			continue
		}
		sum += corr
		count++
	}
	if count == 0 {
		return 0, ErrInsufficientData
	}
	return sum / float64(count), nil
}

// LogReturns computes ln(close[i]/close[i-1]) over consecutive closes.
// Log returns compose additively over time, which keeps the correlation
// input closer to a stable distribution than simple returns. Non-positive
// prices are skipped.
func LogReturns(closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] > 0 && closes[i] > 0 {
			returns = append(returns, math.Log(closes[i]/closes[i-1]))
		}
	}
	return returns
}

// Pearson computes the sample correlation coefficient of two return
// series. Series of different lengths are aligned on their most recent
// overlapping points. The 1/n covariance and deviation terms cancel in
// the ratio, so no sample-size normalization is applied.
func Pearson(x, y []float64) (float64, error) {
	n := len(x)
	if len(y) < n {
		n = len(y)
	}
	if n < 2 {
		return 0, ErrInsufficientData
	}
	x = x[len(x)-n:]
	y = y[len(y)-n:]

	var meanX, meanY float64
	for i := 0; i < n; i++ {
		meanX += x[i]
		meanY += y[i]
	}
	meanX /= float64(n)
	meanY /= float64(n)

	var cov, varX, varY float64
	for i := 0; i < n; i++ {
		dx := x[i] - meanX
		dy := y[i] - meanY
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}
	if varX == 0 || varY == 0 {
		return 0, ErrZeroVariance
	}
	return cov / (math.Sqrt(varX) * math.Sqrt(varY)), nil
}
