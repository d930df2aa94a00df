package schedulemanual

import "lead-intake-workers/internal/common/validation"

type Input struct {
	LeadID       string `json:"leadId"`
	TemplateID   string `json:"templateId"`
	DelayMinutes int    `json:"delayMinutes"`
}

type Output struct {
	JobID        string `json:"jobId"`
	Status       string `json:"followUpStatus"`
	ScheduledFor string `json:"scheduledFor"`
}

var inputSchema = validation.MustCompile(`{
	"type": "object",
	"required": ["leadId", "templateId"],
	"properties": {
		"leadId":       {"type": "string", "minLength": 1},
		"templateId":   {"type": "string", "minLength": 1},
		"delayMinutes": {"type": "integer"}
	}
}`)
