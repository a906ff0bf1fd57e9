package risk

import "strings"

// recommendations maps the scored breakdown to coach-facing guidance. The
// ordering is fixed (risk banner, ACWR, load spike, recovery, lifestyle,
// injury history) so identical inputs produce identical text.
func recommendations(
	acwr *float64,
	loadSpikeScore float64,
	recoveryScore float64,
	lifestyleScore float64,
	injuryHistoryScore float64,
	riskLevel string,
) string {
	var recs []string

	if acwr != nil {
		switch a := *acwr; {
		case a > acwrUpperHigh:
			recs = append(recs,
				"ACWR is very high (>1.5). Reduce training volume by 20-30% this week.")
		case a < acwrLowerHigh:
			recs = append(recs,
				"ACWR is very low (<0.8). Athlete may be detraining. Gradually increase load.")
		case a > acwrUpperWarn:
			recs = append(recs,
				"ACWR elevated (>1.3). Monitor closely and consider 10-15% volume reduction.")
		}
	}

	if loadSpikeScore > 60 {
		recs = append(recs,
			"Large training load spike detected. Implement more gradual load progression.")
	}

	if recoveryScore < 40 {
		recs = append(recs,
			"Low recovery score. Increase recovery modalities: massage, ice baths, sleep optimization.")
	} else if recoveryScore < 60 {
		recs = append(recs,
			"Moderate recovery needed. Add 1-2 additional recovery sessions this week.")
	}

	if lifestyleScore < 50 {
		recs = append(recs,
			"Poor lifestyle metrics. Focus on: 8+ hours sleep, proper nutrition, stress management.")
	} else if lifestyleScore < 70 {
		recs = append(recs,
			"Lifestyle factors need attention. Review sleep quality and nutrition habits.")
	}

	if injuryHistoryScore > 40 {
		recs = append(recs,
			"Recent injury history concerning. Consider preventive strengthening and mobility work.")
	}

	switch riskLevel {
	case RiskLevelHigh:
		recs = append([]string{
			"HIGH RISK ALERT: Immediate intervention required. Consider rest day or active recovery only.",
		}, recs...)
	case RiskLevelMedium:
		recs = append([]string{
			"MODERATE RISK: Monitor closely. Modify training intensity/volume as needed.",
		}, recs...)
	}

	if len(recs) == 0 {
		recs = append(recs, "Athlete showing good balance. Continue current training plan.")
	}

	return strings.Join(recs, "\n")
}
