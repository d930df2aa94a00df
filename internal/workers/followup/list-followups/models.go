package listfollowups

import "lead-intake-workers/internal/common/validation"

// Input filters the queue. Empty fields match every job.
type Input struct {
	Status string `json:"status"`
	LeadID string `json:"leadId"`
	Limit  int    `json:"limit"`
}

type JobView struct {
	ID           string `json:"id"`
	LeadID       string `json:"leadId"`
	TemplateID   string `json:"templateId"`
	ScheduledFor string `json:"scheduledFor"`
	Status       string `json:"status"`
	SentAt       string `json:"sentAt,omitempty"`
	LastError    string `json:"lastError,omitempty"`
}

type Output struct {
	Jobs  []JobView `json:"jobs"`
	Count int       `json:"count"`
}

var inputSchema = validation.MustCompile(`{
	"type": "object",
	"properties": {
		"status": {"enum": ["", "pending", "sent", "failed", "cancelled"]},
		"leadId": {"type": "string"},
		"limit":  {"type": "integer", "minimum": 0, "maximum": 500}
	}
}`)
