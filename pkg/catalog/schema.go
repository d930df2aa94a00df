package catalog

import "lead-intake-workers/internal/models"

// Catalog is the on-disk follow-up template set.
type Catalog struct {
	Version     string                    `json:"version"`
	LastUpdated string                    `json:"lastUpdated"`
	Templates   []models.FollowUpTemplate `json:"templates"`
}
