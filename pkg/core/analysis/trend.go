package analysis

// Trend is the 3-state direction of a series.
type Trend string

const (
	TrendImproving Trend = "improving"
	TrendStable    Trend = "stable"
	TrendDeclining Trend = "declining"
)

// trendDeadBand is the |%change| below which a series counts as stable.
const trendDeadBand = 2.0

// TrendOf compares the average of the first half with the second half. With an
// odd length the second half takes the extra element.
func TrendOf(series []float64) Trend {
	if len(series) < 2 {
		return TrendStable
	}
	mid := len(series) / 2
	first := Mean(series[:mid])
	second := Mean(series[mid:])

	var change float64
	switch {
	case first != 0:
		change = Variance(second, first)
	case second > 0:
		return TrendImproving
	case second < 0:
		return TrendDeclining
	default:
		return TrendStable
	}

	switch {
	case change > -trendDeadBand && change < trendDeadBand:
		return TrendStable
	case change > 0:
		return TrendImproving
	default:
		return TrendDeclining
	}
}

// =============================================================================
// OCCUPANCY
// =============================================================================

// OccupancyLabel grades an occupancy rate.
type OccupancyLabel string

const (
	OccupancyHealthy OccupancyLabel = "healthy"
	OccupancyWatch   OccupancyLabel = "watch"
	OccupancyConcern OccupancyLabel = "concern"
)

// OccupancyThresholds are the minimum rates (percent) for healthy and watch.
type OccupancyThresholds struct {
	Healthy float64 `yaml:"healthy" json:"healthy"`
	Watch   float64 `yaml:"watch" json:"watch"`
}

// DefaultOccupancyThresholds are 95% / 90%.
func DefaultOccupancyThresholds() OccupancyThresholds {
	return OccupancyThresholds{Healthy: 95, Watch: 90}
}

// Occupancy summarizes unit occupancy for one property.
type Occupancy struct {
	Occupied int            `json:"occupied"`
	Total    int            `json:"total"`
	Rate     float64        `json:"rate"`
	Label    OccupancyLabel `json:"label"`
}

// OccupancyRate is occupied/total in percent, 0 when there are no units.
func OccupancyRate(occupied, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(occupied) / float64(total) * 100
}

// ClassifyOccupancy labels a rate.
func ClassifyOccupancy(rate float64, th OccupancyThresholds) OccupancyLabel {
	switch {
	case rate >= th.Healthy:
		return OccupancyHealthy
	case rate >= th.Watch:
		return OccupancyWatch
	default:
		return OccupancyConcern
	}
}

// NewOccupancy computes rate and label together.
func NewOccupancy(occupied, total int, th OccupancyThresholds) Occupancy {
	rate := OccupancyRate(occupied, total)
	return Occupancy{Occupied: occupied, Total: total, Rate: rate, Label: ClassifyOccupancy(rate, th)}
}
