package risk

import (
	"time"

	"gonum.org/v1/gonum/stat"
)

const (
	recoveryLookbackDays      = 14
	lifestyleLookbackDays     = 7
	injuryHistoryLookbackDays = 180

	neutralSubScore = 50.0
	spikeZCeiling   = 3.0
)

// acwrRiskScore maps the ACWR into a banded 0-100 risk contribution. An
// undefined ACWR (no chronic baseline) gets the neutral midpoint.
func acwrRiskScore(acwr *float64) float64 {
	if acwr == nil {
		return neutralSubScore
	}
	switch a := *acwr; {
	case a > acwrUpperHigh || a < acwrLowerHigh:
		return 80
	case a > acwrUpperWarn || a < acwrLowerWarn:
		return 50
	default:
		return 20
	}
}

// loadSpikeScore scales the max 7-day z-score linearly into 0-100, with
// everything at or above z=3 saturating.
func loadSpikeScore(maxZ7d float64) float64 {
	z := clamp(maxZ7d, 0, spikeZCeiling)
	return z / spikeZCeiling * 100
}

// recoveryScore rewards an optimal treatment cadence of 2-4 sessions per
// week over the last 14 days and penalizes moderate/severe treatments,
// which usually mean something already hurts. Higher is better. A nil
// treatments feed (never collected for this athlete) gives the neutral
// midpoint instead of scoring an athlete down for data we never had.
func recoveryScore(treatments []TreatmentRecord, day time.Time) float64 {
	if treatments == nil {
		return neutralSubScore
	}

	from := day.AddDate(0, 0, -recoveryLookbackDays)
	var count, severeCount int
	for _, t := range treatments {
		d := truncateToDay(t.Date)
		if d.Before(from) || d.After(day) {
			continue
		}
		count++
		if t.Severity == "severe" || t.Severity == "moderate" {
			severeCount++
		}
	}

	perWeek := float64(count) / (recoveryLookbackDays / 7.0)

	var frequencyScore float64
	switch {
	case perWeek >= 2 && perWeek <= 4:
		frequencyScore = 100
	case perWeek < 2:
		frequencyScore = clamp(perWeek*50, 0, 100)
	default:
		frequencyScore = clamp(100-(perWeek-4)*10, 0, 100)
	}

	severityPenalty := clamp(float64(severeCount)*10, 0, 40)

	return clamp(frequencyScore-severityPenalty, 0, 100)
}

// lifestyleScore averages per-log wellness points over the last 7 days.
// Each factor contributes up to 25 points; higher is better. No logs in
// the window yields the neutral midpoint.
func lifestyleScore(lifestyle []LifestyleRecord, day time.Time) float64 {
	from := day.AddDate(0, 0, -lifestyleLookbackDays)

	var scores []float64
	for _, l := range lifestyle {
		d := truncateToDay(l.Date)
		if d.Before(from) || d.After(day) {
			continue
		}

		var logScore float64
		var factors int

		if l.SleepHours != nil {
			switch h := *l.SleepHours; {
			case h >= 7 && h <= 9:
				logScore += 25
			case h >= 6 && h <= 10:
				logScore += 15
			default:
				logScore += 5
			}
			factors++
		}
		if l.SleepQuality != nil {
			logScore += float64(*l.SleepQuality) * 2.5
			factors++
		}
		if l.NutritionScore != nil {
			logScore += float64(*l.NutritionScore) * 2.5
			factors++
		}
		if l.StressLevel != nil {
			logScore += float64(10-*l.StressLevel+1) * 2.5
			factors++
		}

		if factors > 0 {
			scores = append(scores, logScore)
		}
	}

	if len(scores) == 0 {
		return neutralSubScore
	}
	return stat.Mean(scores, nil)
}

// injuryHistoryScore weighs each injury in the last 180 days by recency and
// severity. Higher means more risk; no recent injuries means 0.
func injuryHistoryScore(injuries []InjuryRecord, day time.Time) float64 {
	from := day.AddDate(0, 0, -injuryHistoryLookbackDays)

	var score float64
	for _, injury := range injuries {
		d := truncateToDay(injury.Date)
		if d.Before(from) || d.After(day) {
			continue
		}

		daysAgo := day.Sub(d).Hours() / 24
		recencyFactor := 1 - daysAgo/injuryHistoryLookbackDays
		if recencyFactor < 0.3 {
			recencyFactor = 0.3
		}

		score += 20 * recencyFactor * severityMultiplier(injury.Severity)
	}

	return clamp(score, 0, 100)
}

func severityMultiplier(severity string) float64 {
	switch severity {
	case "moderate":
		return 2
	case "severe":
		return 3
	case "catastrophic":
		return 4
	default:
		return 1
	}
}
