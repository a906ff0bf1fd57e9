package injuries

import "time"

const (
	SeverityMinor        = "minor"
	SeverityModerate     = "moderate"
	SeveritySevere       = "severe"
	SeverityCatastrophic = "catastrophic"
)

// Injury is a single entry in an athlete's injury history.
type Injury struct {
	ID        int `json:"id"`
	AthleteID int `json:"athleteId"`

	InjuryDate time.Time `json:"injuryDate"`
	InjuryType string    `json:"injuryType"`
	BodyPart   string    `json:"bodyPart"`
	Severity   string    `json:"severity"`

	RecoveryDate *time.Time `json:"recoveryDate"`
	DaysMissed   *int       `json:"daysMissed"`

	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
}
