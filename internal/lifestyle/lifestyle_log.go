package lifestyle

import "time"

// LifestyleLog is a daily wellness self-report. All 1-10 scales.
type LifestyleLog struct {
	ID        int       `json:"id"`
	AthleteID int       `json:"athleteId"`
	Date      time.Time `json:"date"`

	SleepHours      *float64 `json:"sleepHours"`
	SleepQuality    *int     `json:"sleepQuality"`
	NutritionScore  *int     `json:"nutritionScore"`
	HydrationLiters *float64 `json:"hydrationLiters"`
	StressLevel     *int     `json:"stressLevel"`
	SorenessLevel   *int     `json:"sorenessLevel"`
	FatigueLevel    *int     `json:"fatigueLevel"`

	Notes     string    `json:"notes"`
	CreatedAt time.Time `json:"createdAt"`
}
