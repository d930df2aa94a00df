// internal/models/followup.go
package models

import (
	"errors"
	"fmt"
	"time"
)

// Channel is the outbound medium of a follow-up template.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

func (c Channel) Valid() bool {
	switch c {
	case ChannelEmail, ChannelSMS:
		return true
	}
	return false
}

// FollowUpTemplate is an operator-managed message definition.
type FollowUpTemplate struct {
	ID           string              `json:"id"`
	Name         string              `json:"name"`
	Channel      Channel             `json:"channel"`
	Subject      string              `json:"subject,omitempty"`
	Content      string              `json:"content"`
	DelayMinutes int                 `json:"delayMinutes"`
	TriggerOn    QualificationStatus `json:"triggerOn"`
	Active       bool                `json:"active"`
	CreatedAt    time.Time           `json:"createdAt"`
}

// Validate checks the template invariants.
func (t *FollowUpTemplate) Validate() error {
	var errs []error
	if t.Name == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if !t.Channel.Valid() {
		errs = append(errs, fmt.Errorf("unknown channel %q", t.Channel))
	}
	if !t.TriggerOn.Valid() {
		errs = append(errs, fmt.Errorf("unknown trigger %q", t.TriggerOn))
	}
	if t.DelayMinutes < 0 {
		errs = append(errs, errors.New("delay_minutes must be >= 0"))
	}
	if t.Content == "" {
		errs = append(errs, errors.New("content is required"))
	}
	if t.Channel == ChannelEmail && t.Subject == "" {
		errs = append(errs, errors.New("subject is required for email templates"))
	}
	return errors.Join(errs...)
}

// Delay is the non-negative offset from the trigger event.
func (t *FollowUpTemplate) Delay() time.Duration {
	return time.Duration(max(0, t.DelayMinutes)) * time.Minute
}

// JobStatus is the delivery state of a follow-up job.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobSent      JobStatus = "sent"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

func (s JobStatus) Valid() bool {
	switch s {
	case JobPending, JobSent, JobFailed, JobCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition happens without a forced re-delivery.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobSent, JobFailed, JobCancelled:
		return true
	case JobPending:
		return false
	}
	panic(fmt.Sprintf("unknown job status %q", string(s)))
}

// CanTransition reports whether s -> to is allowed. A forced re-delivery may leave
// any state for sent or failed.
func (s JobStatus) CanTransition(to JobStatus, forced bool) bool {
	switch s {
	case JobPending:
		return to == JobSent || to == JobFailed || to == JobCancelled
	case JobSent, JobFailed, JobCancelled:
		return forced && (to == JobSent || to == JobFailed)
	}
	return false
}

// FollowUpJob is one scheduled communication to a lead.
type FollowUpJob struct {
	ID           string     `json:"id"`
	LeadID       string     `json:"leadId"`
	TemplateID   string     `json:"templateId"`
	ScheduledFor time.Time  `json:"scheduledFor"`
	Status       JobStatus  `json:"status"`
	LastError    string     `json:"lastError,omitempty"`
	SentAt       *time.Time `json:"sentAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// Due reports whether a pending job may go out at now.
func (j *FollowUpJob) Due(now time.Time) bool {
	return j.Status == JobPending && !j.ScheduledFor.After(now)
}
