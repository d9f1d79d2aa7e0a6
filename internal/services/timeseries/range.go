package timeseries

import (
	"fmt"
	"math"

	"ChartPulse/internal/domain/models"
)

// DateRange is a selection over a chart series. Indexes are positions in the
// point slice, dates are the raw date keys at those positions.
type DateRange struct {
	StartIndex int    `json:"start_index"`
	StartDate  string `json:"start_date"`
	EndIndex   int    `json:"end_index"`
	EndDate    string `json:"end_date"`
}

// SelectRange normalizes a drag or brush gesture into a range. Backward
// drags are swapped, a single-point selection clears the range (nil, no
// error), and indices outside the series are an error.
func SelectRange(points []models.ChartPoint, start, end int) (*DateRange, error) {
	if start > end {
		start, end = end, start
	}
	if start == end {
		return nil, nil
	}
	if start < 0 || end >= len(points) {
		return nil, fmt.Errorf("range [%d, %d] out of bounds for %d points", start, end, len(points))
	}
	return &DateRange{
		StartIndex: start,
		StartDate:  points[start].Date,
		EndIndex:   end,
		EndDate:    points[end].Date,
	}, nil
}

// Stats computes the movement over a selected range. ChangePercent stays nil
// when the range starts at zero, where a percent change is undefined.
func Stats(points []models.ChartPoint, r *DateRange) *models.RangeStats {
	if r == nil {
		return nil
	}
	start := points[r.StartIndex]
	end := points[r.EndIndex]
	stats := &models.RangeStats{
		StartIndex: r.StartIndex,
		EndIndex:   r.EndIndex,
		StartDate:  r.StartDate,
		EndDate:    r.EndDate,
		StartValue: start.Value,
		EndValue:   end.Value,
		Change:     end.Value - start.Value,
	}
	if start.Value != 0 {
		pct := stats.Change / start.Value * 100
		stats.ChangePercent = &pct
	}
	return stats
}

// DescribeChange renders a range movement as a sentence, used as context for
// AI search over the selected region.
func DescribeChange(ticker string, points []models.ChartPoint, r *DateRange, stats *models.RangeStats) string {
	if r == nil || stats == nil {
		return ""
	}
	direction := "rose"
	if stats.Change < 0 {
		direction = "fell"
	} else if stats.Change == 0 {
		direction = "was flat"
	}
	startLabel := points[r.StartIndex].FormattedDate
	endLabel := points[r.EndIndex].FormattedDate
	if stats.ChangePercent == nil {
		return fmt.Sprintf("%s moved from %.2f to %.2f between %s and %s",
			ticker, stats.StartValue, stats.EndValue, startLabel, endLabel)
	}
	return fmt.Sprintf("%s %s %.2f%% from %.2f to %.2f between %s and %s",
		ticker, direction, math.Abs(*stats.ChangePercent), stats.StartValue, stats.EndValue, startLabel, endLabel)
}
