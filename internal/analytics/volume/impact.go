package volume

// ImpactRatio is the share of the rolling window volume taken by a single
// trade. A zero rolling volume yields 0 rather than an error; callers rely
// on this convention.
func ImpactRatio(tradeSize, rollingVolume float64) float64 {
	if rollingVolume == 0 {
		return 0
	}
	return tradeSize / rollingVolume
}
