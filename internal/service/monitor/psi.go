package monitor

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/internal/domain/models"
)

// psiEpsilon replaces empty-bin proportions so the log ratio stays finite.
const psiEpsilon = 1e-4

// PSI thresholds from the standard credit-scoring convention.
const (
	psiMinorThreshold       = 0.10
	psiSignificantThreshold = 0.20
)

// ComputePSI measures distributional shift of one feature between a baseline
// sample and a current sample using the Population Stability Index. The
// baseline is cut into equal-probability percentile bins (deduplicated);
// both samples are histogrammed into those bins and compared as proportions.
func ComputePSI(feature string, baseline, current []float64, bins int) models.DriftReport {
	report := models.DriftReport{
		Feature:      feature,
		BaselineSize: len(baseline),
		CurrentSize:  len(current),
	}
	if len(baseline) == 0 || len(current) == 0 {
		report.Classification = models.DriftInsufficientData
		return report
	}
	if bins <= 0 {
		bins = 10
	}

	edges := percentileEdges(baseline, bins)
	basePct := binProportions(baseline, edges)
	curPct := binProportions(current, edges)

	psi := 0.0
	for i := range basePct {
		b := math.Max(basePct[i], psiEpsilon)
		c := math.Max(curPct[i], psiEpsilon)
		psi += (c - b) * math.Log(c/b)
	}

	report.PSI = psi
	report.Classification = ClassifyPSI(psi)
	return report
}

// ClassifyPSI maps a PSI value onto the stable / minor / significant bands.
func ClassifyPSI(psi float64) string {
	switch {
	case psi > psiSignificantThreshold:
		return models.DriftSignificant
	case psi >= psiMinorThreshold:
		return models.DriftMinor
	default:
		return models.DriftStable
	}
}

// percentileEdges returns the deduplicated interior bin edges of the
// baseline's equal-probability bins.
func percentileEdges(sample []float64, bins int) []float64 {
	sorted := make([]float64, len(sample))
	copy(sorted, sample)
	sort.Float64s(sorted)

	edges := make([]float64, 0, bins-1)
	for i := 1; i < bins; i++ {
		q := stat.Quantile(float64(i)/float64(bins), stat.Empirical, sorted, nil)
		if len(edges) == 0 || q > edges[len(edges)-1] {
			edges = append(edges, q)
		}
	}
	return edges
}

// binProportions histograms the sample into the bins defined by edges
// (open-ended on both sides) and normalizes to proportions.
func binProportions(sample []float64, edges []float64) []float64 {
	counts := make([]float64, len(edges)+1)
	for _, v := range sample {
		// values equal to an edge land in the lower bin
		counts[sort.SearchFloat64s(edges, v)]++
	}
	n := float64(len(sample))
	for i := range counts {
		counts[i] /= n
	}
	return counts
}
