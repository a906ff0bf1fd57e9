package athletes

import "time"

type Athlete struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	Position  string    `json:"position"`
	Age       int       `json:"age"`
	Email     string    `json:"email"`
	Team      string    `json:"team"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
