// Package intake runs qualification when a lead is submitted or edited and
// queues follow-ups when the qualification status changes.
package intake

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"lead-intake-workers/internal/common/logger"
	"lead-intake-workers/internal/common/metrics"
	"lead-intake-workers/internal/models"
	"lead-intake-workers/internal/qualification"

	"github.com/google/uuid"
)

var (
	// ErrInvalidLead is returned for a submission that cannot be stored.
	ErrInvalidLead = errors.New("invalid lead")
	// ErrSchedulingIncomplete is returned when the qualification was saved but
	// queueing its follow-ups failed. Retrying would not queue them again.
	ErrSchedulingIncomplete = errors.New("follow-up scheduling incomplete")
	// ErrInvalidUpdate is returned for a dashboard edit naming an unknown status.
	ErrInvalidUpdate = errors.New("invalid lead update")
)

type LeadStore interface {
	CreateLead(ctx context.Context, l *models.Lead) error
	GetLead(ctx context.Context, id string) (*models.Lead, error)
	SaveQualification(ctx context.Context, l *models.Lead) error
	UpdateLead(ctx context.Context, l *models.Lead) error
}

type FollowUpScheduler interface {
	ScheduleFollowUps(ctx context.Context, lead *models.Lead) (int, error)
}

// Outcome is the result of qualifying one lead.
type Outcome struct {
	Lead          *models.Lead
	Result        qualification.Result
	StatusChanged bool
	JobsCreated   int
}

// LeadUpdate is a partial edit from the sales dashboard. Nil fields keep
// their stored value.
type LeadUpdate struct {
	Status              *models.LeadStatus
	LastContact         *time.Time
	QualificationStatus *models.QualificationStatus
	QualificationScore  *int
}

type Service struct {
	leads     LeadStore
	scheduler FollowUpScheduler
	now       func() time.Time
	logger    logger.Logger
}

func NewService(leads LeadStore, scheduler FollowUpScheduler, log logger.Logger) *Service {
	return &Service{
		leads:     leads,
		scheduler: scheduler,
		now:       time.Now,
		logger:    log.WithFields(map[string]interface{}{"component": "lead-intake"}),
	}
}

// WithClock overrides the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Submit stores a new lead with its qualification and queues the follow-ups
// for its first status.
func (s *Service) Submit(ctx context.Context, lead *models.Lead) (*Outcome, error) {
	if err := s.prepare(lead); err != nil {
		return nil, err
	}

	res := qualification.Qualify(qualification.InputFromLead(lead))
	res.Apply(lead)

	if err := s.leads.CreateLead(ctx, lead); err != nil {
		return nil, fmt.Errorf("store lead: %w", err)
	}
	metrics.LeadsQualified.WithLabelValues(string(res.Status)).Inc()

	out := &Outcome{Lead: lead, Result: res, StatusChanged: true}
	n, err := s.scheduler.ScheduleFollowUps(ctx, lead)
	if err != nil {
		return out, fmt.Errorf("lead %s stored, %w: %w", lead.ID, ErrSchedulingIncomplete, err)
	}
	out.JobsCreated = n

	s.logger.Info("lead submitted", map[string]interface{}{
		"leadId":              lead.ID,
		"qualificationStatus": string(res.Status),
		"qualificationScore":  res.Score,
		"jobsCreated":         n,
	})
	return out, nil
}

// Requalify re-runs qualification on a stored lead. Follow-ups are queued
// only when the status differs from the stored one.
func (s *Service) Requalify(ctx context.Context, leadID string) (*Outcome, error) {
	lead, err := s.leads.GetLead(ctx, leadID)
	if err != nil {
		return nil, err
	}

	res := qualification.Qualify(qualification.InputFromLead(lead))
	previous := lead.QualificationStatus
	changed := res.Apply(lead)

	if err := s.leads.SaveQualification(ctx, lead); err != nil {
		return nil, fmt.Errorf("save qualification: %w", err)
	}
	metrics.LeadsQualified.WithLabelValues(string(res.Status)).Inc()

	out := &Outcome{Lead: lead, Result: res, StatusChanged: changed}
	if changed {
		n, err := s.scheduler.ScheduleFollowUps(ctx, lead)
		if err != nil {
			return out, fmt.Errorf("lead %s requalified, %w: %w", lead.ID, ErrSchedulingIncomplete, err)
		}
		out.JobsCreated = n
	}

	s.logger.Info("lead requalified", map[string]interface{}{
		"leadId":         lead.ID,
		"previousStatus": string(previous),
		"status":         string(res.Status),
		"score":          res.Score,
		"jobsCreated":    out.JobsCreated,
	})
	return out, nil
}

// UpdateLead applies a dashboard edit. A qualification status set here
// overrides the engine's, and follow-ups for it are queued when it differs
// from the stored one. The rules are not re-run.
func (s *Service) UpdateLead(ctx context.Context, leadID string, u LeadUpdate) (*Outcome, error) {
	if u.Status != nil && !u.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidUpdate, *u.Status)
	}
	if u.QualificationStatus != nil && !u.QualificationStatus.Valid() {
		return nil, fmt.Errorf("%w: unknown qualification status %q", ErrInvalidUpdate, *u.QualificationStatus)
	}

	lead, err := s.leads.GetLead(ctx, leadID)
	if err != nil {
		return nil, err
	}

	previous := lead.QualificationStatus
	if u.Status != nil {
		lead.Status = *u.Status
	}
	if u.LastContact != nil {
		at := u.LastContact.UTC()
		lead.LastContact = &at
	}
	if u.QualificationStatus != nil {
		lead.QualificationStatus = *u.QualificationStatus
	}
	if u.QualificationScore != nil {
		lead.QualificationScore = *u.QualificationScore
	}
	changed := lead.QualificationStatus != previous

	if err := s.leads.UpdateLead(ctx, lead); err != nil {
		return nil, fmt.Errorf("update lead: %w", err)
	}

	out := &Outcome{
		Lead: lead,
		Result: qualification.Result{
			Status:  lead.QualificationStatus,
			Score:   lead.QualificationScore,
			Reasons: lead.QualificationReasons,
			Tags:    lead.Tags,
		},
		StatusChanged: changed,
	}
	if changed {
		n, err := s.scheduler.ScheduleFollowUps(ctx, lead)
		if err != nil {
			return out, fmt.Errorf("lead %s updated, %w: %w", lead.ID, ErrSchedulingIncomplete, err)
		}
		out.JobsCreated = n
	}

	s.logger.Info("lead updated", map[string]interface{}{
		"leadId":         lead.ID,
		"status":         string(lead.Status),
		"previousStatus": string(previous),
		"qualification":  string(lead.QualificationStatus),
		"jobsCreated":    out.JobsCreated,
	})
	return out, nil
}

func (s *Service) prepare(l *models.Lead) error {
	l.FirstName = strings.TrimSpace(l.FirstName)
	l.LastName = strings.TrimSpace(l.LastName)
	l.Email = strings.TrimSpace(l.Email)
	l.Phone = strings.TrimSpace(l.Phone)

	if l.FirstName == "" && l.LastName == "" && l.Email == "" {
		return fmt.Errorf("%w: a name or email is required", ErrInvalidLead)
	}
	if l.Email != "" && !strings.Contains(l.Email, "@") {
		return fmt.Errorf("%w: malformed email %q", ErrInvalidLead, l.Email)
	}
	if l.Status == "" {
		l.Status = models.LeadStatusNew
	}
	if !l.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidLead, l.Status)
	}
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.SubmittedAt.IsZero() {
		l.SubmittedAt = s.now().UTC()
	}
	return nil
}
