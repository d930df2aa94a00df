package cancelfollowup

import "lead-intake-workers/internal/common/validation"

type Input struct {
	JobID string `json:"jobId"`
}

type Output struct {
	JobID  string `json:"jobId"`
	Status string `json:"followUpStatus"`
}

var inputSchema = validation.MustCompile(`{
	"type": "object",
	"required": ["jobId"],
	"properties": {
		"jobId": {"type": "string", "minLength": 1}
	}
}`)
