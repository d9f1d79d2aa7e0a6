package timeseries

import (
	"ChartPulse/internal/domain/models"
	"ChartPulse/pkg/util"
)

// chartDateFormat is the label rendered under each chart point.
const chartDateFormat = "Jan 2, 2006"

// ToChartPoints pairs timestamps with values into renderable points. A
// timestamp that fails to parse keeps its raw string as the label. When the
// slices differ in length the extra entries are dropped so the aligned-arrays
// invariant holds downstream.
func ToChartPoints(timestamps []string, values []float64) []models.ChartPoint {
	n := len(timestamps)
	if len(values) < n {
		n = len(values)
	}
	points := make([]models.ChartPoint, 0, n)
	for i := 0; i < n; i++ {
		label := timestamps[i]
		if t, ok := util.ParseTime(timestamps[i]); ok {
			label = t.Format(chartDateFormat)
		}
		points = append(points, models.ChartPoint{
			Date:          timestamps[i],
			FormattedDate: label,
			Value:         values[i],
		})
	}
	return points
}
