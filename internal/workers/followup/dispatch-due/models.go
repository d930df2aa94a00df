package dispatchdue

import "lead-intake-workers/internal/common/validation"

type Input struct {
	Limit int `json:"limit"`
}

type Output struct {
	Attempted int `json:"attempted"`
	Sent      int `json:"sent"`
	Simulated int `json:"simulated"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
	Errored   int `json:"errored"`
	Deferred  int `json:"deferred"`
}

var inputSchema = validation.MustCompile(`{
	"type": "object",
	"properties": {
		"limit": {"type": "integer", "minimum": 0, "maximum": 10000}
	}
}`)
