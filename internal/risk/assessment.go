package risk

import "time"

const (
	RiskLevelLow    = "low"
	RiskLevelMedium = "medium"
	RiskLevelHigh   = "high"
)

// RiskLevelForScore maps an overall risk score to its level band.
func RiskLevelForScore(score float64) string {
	switch {
	case score >= 70:
		return RiskLevelHigh
	case score >= 40:
		return RiskLevelMedium
	default:
		return RiskLevelLow
	}
}

// Assessment is an immutable snapshot of an athlete's injury risk on a given
// date. ACWR is nil when the chronic load is zero (no baseline to divide by).
type Assessment struct {
	ID        int       `json:"id"`
	AthleteID int       `json:"athleteId"`
	Date      time.Time `json:"date"`

	OverallRiskScore float64 `json:"overallRiskScore"`
	RiskLevel        string  `json:"riskLevel"`

	ACWR        *float64 `json:"acwr"`
	AcuteLoad   float64  `json:"acuteLoad"`
	ChronicLoad float64  `json:"chronicLoad"`

	LoadSpikeScore     float64 `json:"loadSpikeScore"`
	RecoveryScore      float64 `json:"recoveryScore"`
	LifestyleScore     float64 `json:"lifestyleScore"`
	InjuryHistoryScore float64 `json:"injuryHistoryScore"`

	TrainingMonotony float64 `json:"trainingMonotony"`
	TrainingStrain   float64 `json:"trainingStrain"`
	CurrentZScore    float64 `json:"currentZScore"`
	MaxZScore7d      float64 `json:"maxZScore7d"`

	SleepModifier         float64 `json:"sleepModifier"`
	StressModifier        float64 `json:"stressModifier"`
	InjuryRecencyModifier float64 `json:"injuryRecencyModifier"`
	AgeModifier           float64 `json:"ageModifier"`
	CompoundMultiplier    float64 `json:"compoundMultiplier"`

	// DataDays is the number of days with recorded load in the lookback
	// window; assessments built on under a week of data are low-confidence.
	DataDays      int  `json:"dataDays"`
	LowConfidence bool `json:"lowConfidence"`

	Recommendations string `json:"recommendations"`

	CreatedAt time.Time `json:"createdAt"`
}
