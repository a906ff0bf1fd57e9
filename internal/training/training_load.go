package training

import "time"

// TrainingLoad is one day of tracked work for an athlete, combining the
// wearable (GPS) channel with the session-RPE channel. TrainingLoad (the
// field) is the canonical load value the risk engine consumes.
type TrainingLoad struct {
	ID        int       `json:"id"`
	AthleteID int       `json:"athleteId"`
	Date      time.Time `json:"date"`

	// GPS / wearable channel
	TotalDistance     *float64 `json:"totalDistance"`     // meters
	HighSpeedDistance *float64 `json:"highSpeedDistance"` // meters
	SprintDistance    *float64 `json:"sprintDistance"`    // meters
	Accelerations     *int     `json:"accelerations"`
	Decelerations     *int     `json:"decelerations"`
	MaxSpeed          *float64 `json:"maxSpeed"` // km/h

	// session-RPE channel
	TrainingLoad float64 `json:"trainingLoad"`
	Duration     *int    `json:"duration"` // minutes
	SessionType  string  `json:"sessionType"`

	PlayerLoad     *float64 `json:"playerLoad"`
	MetabolicPower *float64 `json:"metabolicPower"`

	CreatedAt time.Time `json:"createdAt"`
}
