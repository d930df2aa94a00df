// Package memory is an in-process implementation of the lead, template and
// job repositories.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"lead-intake-workers/internal/followup"
	"lead-intake-workers/internal/models"
)

type Store struct {
	mu        sync.Mutex
	leads     map[string]models.Lead
	templates map[string]models.FollowUpTemplate
	jobs      map[string]models.FollowUpJob
	claims    map[string]time.Time

	// FailCreate makes the next CreateJobs call fail without writing anything.
	FailCreate error
}

func New() *Store {
	return &Store{
		leads:     make(map[string]models.Lead),
		templates: make(map[string]models.FollowUpTemplate),
		jobs:      make(map[string]models.FollowUpJob),
		claims:    make(map[string]time.Time),
	}
}

func (s *Store) CreateLead(_ context.Context, l *models.Lead) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.leads[l.ID]; ok {
		return fmt.Errorf("lead %s already exists", l.ID)
	}
	s.leads[l.ID] = cloneLead(*l)
	return nil
}

func (s *Store) GetLead(_ context.Context, id string) (*models.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.leads[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", followup.ErrLeadNotFound, id)
	}
	out := cloneLead(l)
	return &out, nil
}

func (s *Store) SaveQualification(_ context.Context, l *models.Lead) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.leads[l.ID]
	if !ok {
		return fmt.Errorf("%w: %s", followup.ErrLeadNotFound, l.ID)
	}
	stored.QualificationStatus = l.QualificationStatus
	stored.QualificationScore = l.QualificationScore
	stored.QualificationReasons = append([]string(nil), l.QualificationReasons...)
	stored.Tags = append([]string(nil), l.Tags...)
	s.leads[l.ID] = stored
	return nil
}

// UpdateLead writes the workflow status, last contact and qualification of l.
func (s *Store) UpdateLead(_ context.Context, l *models.Lead) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.leads[l.ID]
	if !ok {
		return fmt.Errorf("%w: %s", followup.ErrLeadNotFound, l.ID)
	}
	stored.Status = l.Status
	stored.LastContact = l.LastContact
	stored.QualificationStatus = l.QualificationStatus
	stored.QualificationScore = l.QualificationScore
	stored.QualificationReasons = append([]string(nil), l.QualificationReasons...)
	s.leads[l.ID] = stored
	return nil
}

func (s *Store) PutTemplate(t models.FollowUpTemplate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates[t.ID] = t
}

func (s *Store) UpsertTemplate(_ context.Context, t *models.FollowUpTemplate) error {
	s.PutTemplate(*t)
	return nil
}

func (s *Store) ActiveTemplates(_ context.Context, trigger models.QualificationStatus) ([]models.FollowUpTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.FollowUpTemplate
	for _, t := range s.templates {
		if t.Active && t.TriggerOn == trigger {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) GetTemplate(_ context.Context, id string) (*models.FollowUpTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.templates[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", followup.ErrTemplateNotFound, id)
	}
	return &t, nil
}

func (s *Store) CreateJobs(_ context.Context, jobs []models.FollowUpJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.FailCreate; err != nil {
		s.FailCreate = nil
		return err
	}
	for _, j := range jobs {
		if _, ok := s.jobs[j.ID]; ok {
			return fmt.Errorf("job %s already exists", j.ID)
		}
	}
	for _, j := range jobs {
		s.jobs[j.ID] = j
	}
	return nil
}

func (s *Store) GetJob(_ context.Context, id string) (*models.FollowUpJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", followup.ErrJobNotFound, id)
	}
	return &j, nil
}

func (s *Store) DueJobs(_ context.Context, now time.Time, limit int) ([]models.FollowUpJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.FollowUpJob
	for _, j := range s.jobs {
		if j.Due(now) {
			out = append(out, j)
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ScheduledFor.Before(out[k].ScheduledFor) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) TransitionJob(_ context.Context, t followup.JobTransition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[t.JobID]
	if !ok {
		return fmt.Errorf("%w: %s", followup.ErrJobNotFound, t.JobID)
	}
	if j.Status != t.From {
		return fmt.Errorf("%w: job %s is %s, expected %s", followup.ErrStatusConflict, j.ID, j.Status, t.From)
	}
	j.Status = t.To
	j.SentAt = t.SentAt
	j.LastError = t.LastError
	s.jobs[j.ID] = j
	delete(s.claims, j.ID)
	return nil
}

func (s *Store) ListJobs(_ context.Context, f followup.JobFilter) ([]models.FollowUpJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.FollowUpJob
	for _, j := range s.jobs {
		if f.Status != "" && j.Status != f.Status {
			continue
		}
		if f.LeadID != "" && j.LeadID != f.LeadID {
			continue
		}
		out = append(out, j)
	}
	sort.Slice(out, func(i, k int) bool {
		if out[i].ScheduledFor.Equal(out[k].ScheduledFor) {
			return out[i].ID < out[k].ID
		}
		return out[i].ScheduledFor.After(out[k].ScheduledFor)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *Store) ClaimJob(_ context.Context, id string, now, until time.Time) (*models.FollowUpJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", followup.ErrJobNotFound, id)
	}
	if held, ok := s.claims[id]; ok && held.After(now) {
		return nil, fmt.Errorf("%w: %s", followup.ErrJobClaimed, id)
	}
	s.claims[id] = until
	return &j, nil
}

func (s *Store) ReleaseJob(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.claims, id)
	return nil
}

// Claimed reports whether the job carries a dispatch claim.
func (s *Store) Claimed(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.claims[id]
	return ok
}

// Jobs returns every stored job ordered by schedule time.
func (s *Store) Jobs() []models.FollowUpJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.FollowUpJob, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j)
	}
	sort.Slice(out, func(i, k int) bool {
		if out[i].ScheduledFor.Equal(out[k].ScheduledFor) {
			return out[i].ID < out[k].ID
		}
		return out[i].ScheduledFor.Before(out[k].ScheduledFor)
	})
	return out
}

func cloneLead(l models.Lead) models.Lead {
	l.Symptoms = append([]string(nil), l.Symptoms...)
	l.Solutions = append([]string(nil), l.Solutions...)
	l.Tags = append([]string(nil), l.Tags...)
	l.QualificationReasons = append([]string(nil), l.QualificationReasons...)
	return l
}
