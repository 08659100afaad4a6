package analysis

import "math"

// benfordExpected is the expected share of leading digits 1-9.
var benfordExpected = [9]float64{0.30103, 0.17609, 0.12494, 0.09691, 0.07918, 0.06695, 0.05799, 0.05115, 0.04576}

// Benford conformity levels.
const (
	BenfordInsufficient  = "insufficient_data"
	BenfordClose         = "close"
	BenfordMarginal      = "marginal"
	BenfordNonconforming = "nonconforming"
)

// BenfordResult is a first-digit test over a set of amounts.
type BenfordResult struct {
	// DigitCounts[i] counts amounts whose leading digit is i+1.
	DigitCounts      [9]int     `json:"digit_counts"`
	DigitFrequencies [9]float64 `json:"digit_frequencies"`
	TotalCount       int        `json:"total_count"`
	MAD              float64    `json:"mad"` // mean absolute deviation
	Flagged          bool       `json:"flagged"`
	Level            string     `json:"level"`
}

// LeadingDigit returns the first significant digit of |v|, or 0 when |v| < 1.
func LeadingDigit(v float64) int {
	v = math.Abs(v)
	if v < 1 || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0
	}
	for v >= 10 {
		v /= 10
	}
	return int(v)
}

// Benford tests values against Benford's law. Amounts below 1 are skipped.
// MAD above 0.015 is flagged; above 0.010 is marginal. Those bounds are
// looser than audit practice because property ledgers are small samples.
func Benford(values []float64) BenfordResult {
	var res BenfordResult
	for _, v := range values {
		if d := LeadingDigit(v); d > 0 {
			res.DigitCounts[d-1]++
			res.TotalCount++
		}
	}
	if res.TotalCount == 0 {
		res.Level = BenfordInsufficient
		return res
	}

	sumDiff := 0.0
	for i := range res.DigitCounts {
		res.DigitFrequencies[i] = float64(res.DigitCounts[i]) / float64(res.TotalCount)
		sumDiff += math.Abs(res.DigitFrequencies[i] - benfordExpected[i])
	}
	res.MAD = sumDiff / 9

	switch {
	case res.MAD > 0.015:
		res.Level = BenfordNonconforming
		res.Flagged = true
	case res.MAD > 0.010:
		res.Level = BenfordMarginal
	default:
		res.Level = BenfordClose
	}
	return res
}
