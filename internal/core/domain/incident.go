package domain

import (
	"time"

	"github.com/google/uuid"
)

// ConsistencyIncident flags a record for manual review after a contradictory
// or unreconstructable state was detected. Incidents are never auto-corrected.
type ConsistencyIncident struct {
	ID           uuid.UUID `json:"id"`
	Operation    string    `json:"operation"`
	ResourceType string    `json:"resource_type"`
	ResourceID   string    `json:"resource_id"`
	Code         string    `json:"code"`
	Detail       string    `json:"detail"`
	Resolved     bool      `json:"resolved"`
	CreatedAt    time.Time `json:"created_at"`
}
