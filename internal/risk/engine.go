package risk

import (
	"errors"
	"math"
	"time"
)

// ErrInsufficientData is returned when the athlete has no load records at
// all inside the chronic lookback window; no assessment is produced then.
var ErrInsufficientData = errors.New("insufficient training data for risk assessment")

const (
	acuteWindowDays   = 7
	chronicWindowDays = 28

	monotonyCap           = 10.0
	compoundMultiplierCap = 3.0

	acwrUpperHigh = 1.5
	acwrLowerHigh = 0.8
	acwrUpperWarn = 1.3
	acwrLowerWarn = 0.9
)

// LoadRecord is one day of training load. Multiple records sharing a
// calendar day are summed before any window computation.
type LoadRecord struct {
	Date time.Time
	Load float64
}

type LifestyleRecord struct {
	Date           time.Time
	SleepHours     *float64
	SleepQuality   *int
	NutritionScore *int
	StressLevel    *int
}

type TreatmentRecord struct {
	Date     time.Time
	Severity string
}

type InjuryRecord struct {
	Date     time.Time
	Severity string
}

// History is a read-only snapshot of one athlete's records as of the
// evaluation date. A nil Treatments or Lifestyle slice means that feed is
// absent entirely (distinct from present-but-empty); missing optional feeds
// degrade to neutral defaults, never to an error.
type History struct {
	Age        int
	Loads      []LoadRecord
	Lifestyle  []LifestyleRecord
	Treatments []TreatmentRecord
	Injuries   []InjuryRecord
}

// Engine turns an athlete history into a risk assessment. It is pure and
// stateless: same history + same date always yields the same assessment.
type Engine struct{}

func NewEngine() *Engine {
	return &Engine{}
}

// Calculate runs the full pipeline for the given evaluation date.
func (e *Engine) Calculate(history History, date time.Time) (*Assessment, error) {
	day := truncateToDay(date)
	daily := dailyLoadSums(history.Loads)

	dataDays := countRecordedDays(daily, day, chronicWindowDays)
	if dataDays == 0 {
		return nil, ErrInsufficientData
	}

	acute, chronic, acwr := aggregateLoads(daily, day)
	monotony, strain := analyzeVariability(daily, day, acute)
	currentZ, maxZ7d := detectSpikes(daily, day)

	sleepMod := sleepModifier(history.Lifestyle, day)
	stressMod := stressModifier(history.Lifestyle, day)
	injuryMod := injuryRecencyModifier(history.Injuries, day)
	ageMod := ageModifier(history.Age)
	compound := compoundMultiplier(sleepMod, stressMod, injuryMod, ageMod)

	acwrRisk := acwrRiskScore(acwr)
	spikeRisk := loadSpikeScore(maxZ7d)
	recovery := recoveryScore(history.Treatments, day)
	lifestyle := lifestyleScore(history.Lifestyle, day)
	injuryHist := injuryHistoryScore(history.Injuries, day)

	base := acwrRisk*0.30 +
		spikeRisk*0.25 +
		(100-recovery)*0.20 +
		(100-lifestyle)*0.15 +
		injuryHist*0.10

	overall := clamp(base*compound, 0, 100)
	level := RiskLevelForScore(overall)

	assessment := &Assessment{
		Date: day,

		OverallRiskScore: round2(overall),
		RiskLevel:        level,

		ACWR:        acwr,
		AcuteLoad:   round2(acute),
		ChronicLoad: round2(chronic),

		LoadSpikeScore:     round2(spikeRisk),
		RecoveryScore:      round2(recovery),
		LifestyleScore:     round2(lifestyle),
		InjuryHistoryScore: round2(injuryHist),

		TrainingMonotony: round2(monotony),
		TrainingStrain:   round2(strain),
		CurrentZScore:    round2(currentZ),
		MaxZScore7d:      round2(maxZ7d),

		SleepModifier:         sleepMod,
		StressModifier:        stressMod,
		InjuryRecencyModifier: round2(injuryMod),
		AgeModifier:           round2(ageMod),
		CompoundMultiplier:    round2(compound),

		DataDays:      dataDays,
		LowConfidence: dataDays < acuteWindowDays,

		Recommendations: recommendations(acwr, spikeRisk, recovery, lifestyle, injuryHist, level),
	}

	if assessment.ACWR != nil {
		rounded := round2(*assessment.ACWR)
		assessment.ACWR = &rounded
	}

	return assessment, nil
}

// dailyLoadSums collapses the raw records into one summed load per calendar
// day, keyed by UTC midnight.
func dailyLoadSums(loads []LoadRecord) map[time.Time]float64 {
	daily := make(map[time.Time]float64, len(loads))
	for _, l := range loads {
		if l.Load < 0 {
			continue
		}
		daily[truncateToDay(l.Date)] += l.Load
	}
	return daily
}

// dailySeries returns the zero-filled load vector for the n calendar days
// ending on (and including) day, oldest first.
func dailySeries(daily map[time.Time]float64, day time.Time, n int) []float64 {
	series := make([]float64, 0, n)
	for i := n - 1; i >= 0; i-- {
		series = append(series, daily[day.AddDate(0, 0, -i)])
	}
	return series
}

func countRecordedDays(daily map[time.Time]float64, day time.Time, window int) int {
	count := 0
	for i := 0; i < window; i++ {
		if _, ok := daily[day.AddDate(0, 0, -i)]; ok {
			count++
		}
	}
	return count
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
