// Package analysis holds the pure statistics run over statements and series:
// period-over-period variance, volatility, trend and occupancy labels.
package analysis

import "math"

// =============================================================================
// VARIANCE
// =============================================================================

// Status grades a variance against configured thresholds.
type Status string

const (
	StatusNormal  Status = "Normal"
	StatusWarning Status = "Warning"
	StatusAlert   Status = "Alert"
)

// Thresholds are the |variance%| bounds for Normal and Warning.
type Thresholds struct {
	Low    float64 `yaml:"low" json:"low"`
	Medium float64 `yaml:"medium" json:"medium"`
}

// DefaultThresholds are the dashboard's 5% / 10% bands.
func DefaultThresholds() Thresholds {
	return Thresholds{Low: 5, Medium: 10}
}

// VarianceResult compares one value across two periods.
type VarianceResult struct {
	Current         float64 `json:"current"`
	Previous        float64 `json:"previous"`
	VariancePercent float64 `json:"variance_percent"`
	Status          Status  `json:"status"`
}

// Variance is the percentage change from previous to current, 0 when previous is 0.
func Variance(current, previous float64) float64 {
	if previous == 0 {
		return 0
	}
	return (current - previous) / math.Abs(previous) * 100
}

// VarianceStatus grades a variance percentage.
func VarianceStatus(variance float64, th Thresholds) Status {
	abs := math.Abs(variance)
	switch {
	case abs <= th.Low:
		return StatusNormal
	case abs <= th.Medium:
		return StatusWarning
	default:
		return StatusAlert
	}
}

// Compare builds a VarianceResult for one pair of values.
func Compare(current, previous float64, th Thresholds) VarianceResult {
	v := Variance(current, previous)
	return VarianceResult{
		Current:         current,
		Previous:        previous,
		VariancePercent: v,
		Status:          VarianceStatus(v, th),
	}
}

// =============================================================================
// VOLATILITY
// =============================================================================

// Mean of the series, 0 for an empty series.
func Mean(series []float64) float64 {
	if len(series) == 0 {
		return 0
	}
	var sum float64
	for _, v := range series {
		sum += v
	}
	return sum / float64(len(series))
}

// StdDev is the population standard deviation.
func StdDev(series []float64) float64 {
	if len(series) == 0 {
		return 0
	}
	mean := Mean(series)
	var sq float64
	for _, v := range series {
		d := v - mean
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(series)))
}

// Volatility is the coefficient of variation in percent, 0 when the mean is 0.
func Volatility(series []float64) float64 {
	mean := Mean(series)
	if mean == 0 {
		return 0
	}
	return StdDev(series) / math.Abs(mean) * 100
}
