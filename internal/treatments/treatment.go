package treatments

import "time"

const (
	SeverityMinor    = "minor"
	SeverityModerate = "moderate"
	SeveritySevere   = "severe"
)

// Treatment is one recovery or physio session (ice bath, massage, PT, ...).
type Treatment struct {
	ID        int       `json:"id"`
	AthleteID int       `json:"athleteId"`
	Date      time.Time `json:"date"`

	Modality string `json:"modality"`
	Duration *int   `json:"duration"` // minutes
	BodyPart string `json:"bodyPart"`
	Severity string `json:"severity"`
	Notes    string `json:"notes"`

	CreatedAt time.Time `json:"createdAt"`
}
