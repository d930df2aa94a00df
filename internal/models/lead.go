// internal/models/lead.go
package models

import (
	"strings"
	"time"
)

// LeadStatus is the sales workflow state of a lead.
type LeadStatus string

const (
	LeadStatusNew       LeadStatus = "new"
	LeadStatusContacted LeadStatus = "contacted"
	LeadStatusFollowUp  LeadStatus = "follow-up"
	LeadStatusBooked    LeadStatus = "booked"
)

func (s LeadStatus) Valid() bool {
	switch s {
	case LeadStatusNew, LeadStatusContacted, LeadStatusFollowUp, LeadStatusBooked:
		return true
	}
	return false
}

// QualificationStatus is the priority bucket assigned by the qualification engine.
type QualificationStatus string

const (
	QualificationQualified    QualificationStatus = "qualified"
	QualificationNurture      QualificationStatus = "nurture"
	QualificationDisqualified QualificationStatus = "disqualified"
)

func (s QualificationStatus) Valid() bool {
	switch s {
	case QualificationQualified, QualificationNurture, QualificationDisqualified:
		return true
	}
	return false
}

// Lead is a submitted consumer inquiry.
type Lead struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`

	ZipCode   string   `json:"zipCode,omitempty"`
	Insurance string   `json:"insurance,omitempty"`
	Financing string   `json:"financing,omitempty"`
	Situation string   `json:"situation,omitempty"`
	Urgency   string   `json:"urgency,omitempty"`
	Notes     string   `json:"notes,omitempty"`
	Symptoms  []string `json:"symptoms,omitempty"`
	Solutions []string `json:"solutions,omitempty"`
	Tags      []string `json:"tags,omitempty"`
	HIPAA     bool     `json:"hipaa"`

	Source  string     `json:"source,omitempty"`
	Service string     `json:"service,omitempty"`
	Status  LeadStatus `json:"status"`

	QualificationStatus  QualificationStatus `json:"qualificationStatus"`
	QualificationScore   int                 `json:"qualificationScore"`
	QualificationReasons []string            `json:"qualificationReasons"`

	SubmittedAt time.Time  `json:"submittedAt"`
	LastContact *time.Time `json:"lastContact,omitempty"`
}

// NewLead returns a lead carrying the defaults of a fresh submission.
func NewLead() *Lead {
	return &Lead{
		Status:              LeadStatusNew,
		QualificationStatus: QualificationNurture,
	}
}

// FullName joins first and last name, trimmed.
func (l *Lead) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(l.FirstName) + " " + strings.TrimSpace(l.LastName))
}

// AddressFor returns the lead's contact address on the given channel.
func (l *Lead) AddressFor(ch Channel) string {
	switch ch {
	case ChannelEmail:
		return l.Email
	case ChannelSMS:
		return l.Phone
	}
	return ""
}

// Reachable reports whether the lead has any contact address at all.
func (l *Lead) Reachable() bool {
	return l.Email != "" || l.Phone != ""
}
