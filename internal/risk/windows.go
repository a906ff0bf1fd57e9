package risk

import (
	"time"

	"gonum.org/v1/gonum/stat"
)

// aggregateLoads computes the acute (7-day) and chronic (28-day) rolling
// means over zero-filled calendar windows ending on day. ACWR is nil when
// the chronic load is zero: there is no baseline to divide by.
func aggregateLoads(daily map[time.Time]float64, day time.Time) (acute, chronic float64, acwr *float64) {
	acuteSeries := dailySeries(daily, day, acuteWindowDays)
	chronicSeries := dailySeries(daily, day, chronicWindowDays)

	acute = stat.Mean(acuteSeries, nil)
	chronic = stat.Mean(chronicSeries, nil)

	if chronic > 0 {
		ratio := acute / chronic
		acwr = &ratio
	}
	return acute, chronic, acwr
}

// LoadWindows computes the acute and chronic loads and the ACWR for a set
// of raw load records as of date. Exported for dashboard trend views that
// need the window math for a range of days without a full assessment.
func LoadWindows(loads []LoadRecord, date time.Time) (acute, chronic float64, acwr *float64) {
	return aggregateLoads(dailyLoadSums(loads), truncateToDay(date))
}

// ACWRCategory buckets an ACWR value the same way the overall score does:
// both a sharp ramp-up and a sharp drop-off put the athlete at risk.
func ACWRCategory(acwr float64) string {
	switch {
	case acwr > acwrUpperHigh || acwr < acwrLowerHigh:
		return RiskLevelHigh
	case acwr > acwrUpperWarn || acwr < acwrLowerWarn:
		return RiskLevelMedium
	default:
		return RiskLevelLow
	}
}

// analyzeVariability computes training monotony (mean over stddev of the
// 7-day window) and strain (acute load times monotony). A zero stddev means
// perfectly repetitive loading; monotony is then the cap, not a computed
// value. An all-zero window has no loading to be monotonous about and
// yields 0.
func analyzeVariability(daily map[time.Time]float64, day time.Time, acute float64) (monotony, strain float64) {
	window := dailySeries(daily, day, acuteWindowDays)

	mean := stat.Mean(window, nil)
	stddev := stat.PopStdDev(window, nil)

	switch {
	case stddev == 0 && mean == 0:
		monotony = 0
	case stddev == 0:
		monotony = monotonyCap
	default:
		monotony = mean / stddev
		if monotony > monotonyCap {
			monotony = monotonyCap
		}
	}

	return monotony, acute * monotony
}

// detectSpikes computes the z-score of each of the last 7 days against a
// baseline of the 28 zero-filled calendar days strictly before that day.
// Recomputing the baseline per scored day keeps lookahead out of it.
func detectSpikes(daily map[time.Time]float64, day time.Time) (currentZ, maxZ7d float64) {
	first := true
	for i := acuteWindowDays - 1; i >= 0; i-- {
		scored := day.AddDate(0, 0, -i)
		z := zScoreAgainstBaseline(daily, scored)
		if i == 0 {
			currentZ = z
		}
		if first || z > maxZ7d {
			maxZ7d = z
			first = false
		}
	}
	return currentZ, maxZ7d
}

func zScoreAgainstBaseline(daily map[time.Time]float64, scored time.Time) float64 {
	baseline := dailySeries(daily, scored.AddDate(0, 0, -1), chronicWindowDays)

	mean := stat.Mean(baseline, nil)
	stddev := stat.PopStdDev(baseline, nil)
	if stddev == 0 {
		return 0
	}

	return (daily[scored] - mean) / stddev
}
