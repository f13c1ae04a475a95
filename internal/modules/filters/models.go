package filters

import "time"

// Filter is a named, per-strategy set of saved scan criteria.
// Criteria values are numeric; booleans are stored as 0/1.
type Filter struct {
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	Strategy  string             `json:"strategy"`
	Criteria  map[string]float64 `json:"criteria"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}
