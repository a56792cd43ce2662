package domain

import (
	"time"
)

// Toilet is an existing public toilet known to the service, either from the
// GeoJSON dataset or from a previously accepted suggestion
type Toilet struct {
	ID     string  `json:"id"`
	Name   string  `json:"name,omitempty"`
	Lat    float64 `json:"lat"`
	Lng    float64 `json:"lng"`
	Source string  `json:"source"`
}

// Suggestion is an accepted, sanitized submission ready for persistence
type Suggestion struct {
	ID         string                 `json:"id" db:"id"`
	Lat        float64                `json:"lat" db:"lat"`
	Lng        float64                `json:"lng" db:"lng"`
	Properties map[string]interface{} `json:"properties" db:"properties"`
	Version    APIVersion             `json:"version" db:"api_version"`
	IPHash     string                 `json:"-" db:"ip_hash"`
	CreatedAt  time.Time              `json:"createdAt" db:"created_at"`
}

// AsToilet projects a suggestion into the shape the duplicate detector compares against.
func (s *Suggestion) AsToilet() Toilet {
	name, _ := s.Properties["name"].(string)
	return Toilet{
		ID:     s.ID,
		Name:   name,
		Lat:    s.Lat,
		Lng:    s.Lng,
		Source: "suggestion",
	}
}

// DuplicateCheck is the outcome of comparing a candidate point with known toilets
type DuplicateCheck struct {
	IsDuplicate     bool     `json:"isDuplicate"`
	NearestDistance *float64 `json:"nearestDistance,omitempty"`
	NearestToiletID string   `json:"nearestToiletId,omitempty"`
	Checked         int      `json:"checked"`
	Err             error    `json:"-"`
}
