package risk

import "time"

const (
	sleepModifierCap  = 1.5
	stressModifierCap = 1.4
	ageModifierCap    = 1.3

	injuryRecencyHorizonDays = 180

	primeAgeLower = 18
	primeAgeUpper = 28
)

// sleepModifier is driven by the mean sleep hours over the last 7 days of
// lifestyle records. Short sleep compounds every other risk factor.
func sleepModifier(lifestyle []LifestyleRecord, day time.Time) float64 {
	var sum float64
	var n int
	from := day.AddDate(0, 0, -(acuteWindowDays - 1))
	for _, l := range lifestyle {
		d := truncateToDay(l.Date)
		if d.Before(from) || d.After(day) || l.SleepHours == nil {
			continue
		}
		sum += *l.SleepHours
		n++
	}
	if n == 0 {
		return 1.0
	}

	switch mean := sum / float64(n); {
	case mean < 6:
		return sleepModifierCap
	case mean < 7:
		return 1.2
	default:
		return 1.0
	}
}

// stressModifier is driven by the mean stress level (1-10) over the last
// 7 days of lifestyle records.
func stressModifier(lifestyle []LifestyleRecord, day time.Time) float64 {
	var sum float64
	var n int
	from := day.AddDate(0, 0, -(acuteWindowDays - 1))
	for _, l := range lifestyle {
		d := truncateToDay(l.Date)
		if d.Before(from) || d.After(day) || l.StressLevel == nil {
			continue
		}
		sum += float64(*l.StressLevel)
		n++
	}
	if n == 0 {
		return 1.0
	}

	switch mean := sum / float64(n); {
	case mean >= 8:
		return stressModifierCap
	case mean >= 6:
		return 1.2
	default:
		return 1.0
	}
}

// injuryRecencyModifier decays linearly from 1.5 on the day of the most
// recent injury down to 1.0 at the 180-day horizon.
func injuryRecencyModifier(injuries []InjuryRecord, day time.Time) float64 {
	var mostRecent *time.Time
	for i := range injuries {
		d := truncateToDay(injuries[i].Date)
		if d.After(day) {
			continue
		}
		if mostRecent == nil || d.After(*mostRecent) {
			mostRecent = &d
		}
	}
	if mostRecent == nil {
		return 1.0
	}

	daysSince := int(day.Sub(*mostRecent).Hours() / 24)
	if daysSince >= injuryRecencyHorizonDays {
		return 1.0
	}

	return 1.5 - 0.5*(float64(daysSince)/injuryRecencyHorizonDays)
}

// ageModifier is neutral inside the prime band and escalates by 0.02 per
// year outside it.
func ageModifier(age int) float64 {
	if age == 0 {
		// age unknown
		return 1.0
	}

	var yearsOutside int
	switch {
	case age < primeAgeLower:
		yearsOutside = primeAgeLower - age
	case age > primeAgeUpper:
		yearsOutside = age - primeAgeUpper
	default:
		return 1.0
	}

	modifier := 1.0 + 0.02*float64(yearsOutside)
	if modifier > ageModifierCap {
		modifier = ageModifierCap
	}
	return modifier
}

// compoundMultiplier multiplies the four modifiers together; multiplicative
// composition is the point, but the product stays inside [1, 3].
func compoundMultiplier(sleep, stress, injury, age float64) float64 {
	return clamp(sleep*stress*injury*age, 1.0, compoundMultiplierCap)
}
