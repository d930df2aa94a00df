package updatelead

import (
	"time"

	"lead-intake-workers/internal/common/validation"
	"lead-intake-workers/internal/intake"
	"lead-intake-workers/internal/models"
)

// Input is a partial edit. Absent fields keep their stored value.
type Input struct {
	LeadID              string  `json:"leadId"`
	Status              *string `json:"status,omitempty"`
	LastContact         *string `json:"lastContact,omitempty"`
	QualificationStatus *string `json:"qualificationStatus,omitempty"`
	QualificationScore  *int    `json:"qualificationScore,omitempty"`
}

func (in *Input) toUpdate() (intake.LeadUpdate, error) {
	var u intake.LeadUpdate
	if in.Status != nil {
		s := models.LeadStatus(*in.Status)
		u.Status = &s
	}
	if in.LastContact != nil {
		at, err := time.Parse(time.RFC3339, *in.LastContact)
		if err != nil {
			return u, err
		}
		u.LastContact = &at
	}
	if in.QualificationStatus != nil {
		q := models.QualificationStatus(*in.QualificationStatus)
		u.QualificationStatus = &q
	}
	u.QualificationScore = in.QualificationScore
	return u, nil
}

type Output struct {
	LeadID              string `json:"leadId"`
	Status              string `json:"leadStatus"`
	LastContact         string `json:"lastContact,omitempty"`
	QualificationStatus string `json:"qualificationStatus"`
	QualificationScore  int    `json:"qualificationScore"`
	StatusChanged       bool   `json:"statusChanged"`
	JobsCreated         int    `json:"jobsCreated"`
}

var inputSchema = validation.MustCompile(`{
	"type": "object",
	"required": ["leadId"],
	"properties": {
		"leadId":              {"type": "string", "minLength": 1},
		"status":              {"enum": ["new", "contacted", "follow-up", "booked"]},
		"lastContact":         {"type": "string", "format": "date-time"},
		"qualificationStatus": {"enum": ["qualified", "nurture", "disqualified"]},
		"qualificationScore":  {"type": "integer"}
	}
}`)
