package qualifylead

import (
	"lead-intake-workers/internal/common/validation"
	"lead-intake-workers/internal/models"
)

// Input carries either the id of a stored lead to requalify or a new lead to submit.
type Input struct {
	LeadID string     `json:"leadId,omitempty"`
	Lead   *LeadInput `json:"lead,omitempty"`
}

type LeadInput struct {
	ID        string   `json:"id,omitempty"`
	FirstName string   `json:"firstName"`
	LastName  string   `json:"lastName"`
	Email     string   `json:"email"`
	Phone     string   `json:"phone"`
	ZipCode   string   `json:"zipCode"`
	Insurance string   `json:"insurance"`
	Financing string   `json:"financing"`
	Situation string   `json:"situation"`
	Urgency   string   `json:"urgency"`
	Notes     string   `json:"notes"`
	Symptoms  []string `json:"symptoms"`
	Solutions []string `json:"solutions"`
	Tags      []string `json:"tags"`
	HIPAA     bool     `json:"hipaa"`
	Source    string   `json:"source"`
	Service   string   `json:"service"`
	Status    string   `json:"status"`
}

func (in *LeadInput) toLead() *models.Lead {
	l := models.NewLead()
	l.ID = in.ID
	l.FirstName = in.FirstName
	l.LastName = in.LastName
	l.Email = in.Email
	l.Phone = in.Phone
	l.ZipCode = in.ZipCode
	l.Insurance = in.Insurance
	l.Financing = in.Financing
	l.Situation = in.Situation
	l.Urgency = in.Urgency
	l.Notes = in.Notes
	l.Symptoms = in.Symptoms
	l.Solutions = in.Solutions
	l.Tags = in.Tags
	l.HIPAA = in.HIPAA
	l.Source = in.Source
	l.Service = in.Service
	if in.Status != "" {
		l.Status = models.LeadStatus(in.Status)
	}
	return l
}

type Output struct {
	LeadID               string   `json:"leadId"`
	QualificationStatus  string   `json:"qualificationStatus"`
	QualificationScore   int      `json:"qualificationScore"`
	QualificationReasons []string `json:"qualificationReasons"`
	Tags                 []string `json:"tags"`
	StatusChanged        bool     `json:"statusChanged"`
	JobsCreated          int      `json:"jobsCreated"`
}

var inputSchema = validation.MustCompile(`{
	"type": "object",
	"anyOf": [
		{"required": ["leadId"]},
		{"required": ["lead"]}
	],
	"properties": {
		"leadId": {"type": "string", "minLength": 1},
		"lead": {
			"type": "object",
			"properties": {
				"id":        {"type": "string"},
				"firstName": {"type": "string", "maxLength": 100},
				"lastName":  {"type": "string", "maxLength": 100},
				"email":     {"type": "string", "maxLength": 255},
				"phone":     {"type": "string", "maxLength": 50},
				"zipCode":   {"type": "string", "maxLength": 20},
				"insurance": {"type": "string"},
				"financing": {"type": "string"},
				"situation": {"type": "string"},
				"urgency":   {"type": "string"},
				"notes":     {"type": "string"},
				"symptoms":  {"type": "array", "items": {"type": "string"}},
				"solutions": {"type": "array", "items": {"type": "string"}},
				"tags":      {"type": "array", "items": {"type": "string"}},
				"hipaa":     {"type": "boolean"},
				"source":    {"type": "string"},
				"service":   {"type": "string"},
				"status":    {"enum": ["new", "contacted", "follow-up", "booked"]}
			}
		}
	}
}`)
