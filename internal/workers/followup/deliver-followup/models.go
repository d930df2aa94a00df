package deliverfollowup

import "lead-intake-workers/internal/common/validation"

type Input struct {
	JobID string `json:"jobId"`
	Force bool   `json:"force"`
}

type Output struct {
	JobID     string `json:"jobId"`
	Status    string `json:"followUpStatus"`
	Channel   string `json:"channel,omitempty"`
	SentAt    string `json:"sentAt,omitempty"`
	LastError string `json:"lastError,omitempty"`
	Delivered bool   `json:"delivered"`
	Skipped   bool   `json:"skipped"`
	// SkipReason is not_pending, locked or claimed when Skipped is set.
	SkipReason string `json:"skipReason,omitempty"`
	Simulated  bool   `json:"simulated"`
}

var inputSchema = validation.MustCompile(`{
	"type": "object",
	"required": ["jobId"],
	"properties": {
		"jobId": {"type": "string", "minLength": 1},
		"force": {"type": "boolean"}
	}
}`)
