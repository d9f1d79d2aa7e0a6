package timeseries

import (
	"sort"
	"time"

	"ChartPulse/pkg/util"
)

// Frequency codes follow the forecast API convention.
const (
	FreqDaily     = "D"
	FreqWeekly    = "W"
	FreqMonthly   = "M"
	FreqQuarterly = "Q"
	FreqAnnual    = "A"
)

var freqNames = map[string]string{
	FreqDaily:     "day",
	FreqWeekly:    "week",
	FreqMonthly:   "month",
	FreqQuarterly: "quarter",
	FreqAnnual:    "year",
}

var windowStrings = map[string]string{
	FreqDaily:     "1D",
	FreqWeekly:    "1W",
	FreqMonthly:   "1M",
	FreqQuarterly: "1Q",
	FreqAnnual:    "1Y",
}

// DetectFrequency classifies a series by the median gap in days between
// consecutive timestamps. Fewer than two timestamps, or any unparseable
// timestamp, defaults to daily.
func DetectFrequency(timestamps []string) (code, name string) {
	if len(timestamps) < 2 {
		return FreqDaily, freqNames[FreqDaily]
	}
	parsed := make([]time.Time, 0, len(timestamps))
	for _, ts := range timestamps {
		t, ok := util.ParseTime(ts)
		if !ok {
			return FreqDaily, freqNames[FreqDaily]
		}
		parsed = append(parsed, t)
	}
	diffs := make([]time.Duration, 0, len(parsed)-1)
	for i := 1; i < len(parsed); i++ {
		diffs = append(diffs, parsed[i].Sub(parsed[i-1]))
	}
	days := int(medianDuration(diffs) / (24 * time.Hour))
	switch {
	case days <= 1:
		return FreqDaily, freqNames[FreqDaily]
	case days <= 7:
		return FreqWeekly, freqNames[FreqWeekly]
	case days <= 45:
		return FreqMonthly, freqNames[FreqMonthly]
	case days <= 100:
		return FreqQuarterly, freqNames[FreqQuarterly]
	default:
		return FreqAnnual, freqNames[FreqAnnual]
	}
}

// FrequencyName returns the human-readable name for a frequency code.
func FrequencyName(code string) string {
	if n, ok := freqNames[code]; ok {
		return n
	}
	return freqNames[FreqDaily]
}

// WindowString maps a frequency code to its display window, "1D" for daily
// through "1Y" for annual. Unknown codes fall back to "1D".
func WindowString(code string) string {
	if s, ok := windowStrings[code]; ok {
		return s
	}
	return windowStrings[FreqDaily]
}

func medianDuration(diffs []time.Duration) time.Duration {
	sorted := make([]time.Duration, len(diffs))
	copy(sorted, diffs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
