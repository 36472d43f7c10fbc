package rules

import (
	"gonum.org/v1/gonum/stat/distuv"
)

// FoldedNormalCDF is the CDF of |X| where X ~ N(mu, sigma). Zero for x <= 0.
func FoldedNormalCDF(mu float64, sigma float64, x float64) float64 {
	if x <= 0 {
		return 0
	}

	return distuv.UnitNormal.CDF((x-mu)/sigma) + distuv.UnitNormal.CDF((x+mu)/sigma) - 1
}

// NormalDensityRatio is the normal density at x relative to its peak, so 1
// when x is the mean and falling towards 0 away from it
func NormalDensityRatio(mean float64, sigma float64, x float64) float64 {
	normal := distuv.Normal{Mu: mean, Sigma: sigma}

	return normal.Prob(x) / normal.Prob(mean)
}
