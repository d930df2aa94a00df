package followup

import (
	"context"
	"fmt"
	"time"

	"lead-intake-workers/internal/common/logger"
	"lead-intake-workers/internal/common/metrics"
	"lead-intake-workers/internal/models"

	"github.com/google/uuid"
)

// Scheduler fans a lead's qualification status out into pending jobs.
type Scheduler struct {
	templates TemplateReader
	jobs      JobStore
	now       func() time.Time
	logger    logger.Logger
}

func NewScheduler(templates TemplateReader, jobs JobStore, log logger.Logger) *Scheduler {
	return &Scheduler{
		templates: templates,
		jobs:      jobs,
		now:       time.Now,
		logger:    log.WithFields(map[string]interface{}{"component": "followup-scheduler"}),
	}
}

// WithClock overrides the time source.
func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	s.now = now
	return s
}

// ScheduleFollowUps creates one pending job per active template triggered by
// the lead's current qualification status. Callers invoke it once per status
// transition; it performs no duplicate check of its own.
func (s *Scheduler) ScheduleFollowUps(ctx context.Context, lead *models.Lead) (int, error) {
	if !lead.Reachable() {
		s.logger.Debug("lead has no contact address, nothing scheduled", map[string]interface{}{
			"leadId": lead.ID,
		})
		return 0, nil
	}

	templates, err := s.templates.ActiveTemplates(ctx, lead.QualificationStatus)
	if err != nil {
		return 0, fmt.Errorf("load templates for %s: %w", lead.QualificationStatus, err)
	}

	now := s.now().UTC()
	jobs := make([]models.FollowUpJob, 0, len(templates))
	for _, tpl := range templates {
		if !tpl.Active || tpl.TriggerOn != lead.QualificationStatus {
			continue
		}
		if lead.AddressFor(tpl.Channel) == "" {
			s.logger.Debug("skipping template, lead not addressable on channel", map[string]interface{}{
				"leadId":     lead.ID,
				"templateId": tpl.ID,
				"channel":    string(tpl.Channel),
			})
			continue
		}
		jobs = append(jobs, newPendingJob(lead.ID, tpl.ID, now, tpl.Delay()))
	}

	if len(jobs) == 0 {
		return 0, nil
	}
	if err := s.jobs.CreateJobs(ctx, jobs); err != nil {
		return 0, fmt.Errorf("create follow-up jobs: %w", err)
	}

	metrics.FollowUpsScheduled.WithLabelValues(string(lead.QualificationStatus)).Add(float64(len(jobs)))
	s.logger.Info("follow-ups scheduled", map[string]interface{}{
		"leadId":  lead.ID,
		"trigger": string(lead.QualificationStatus),
		"count":   len(jobs),
	})
	return len(jobs), nil
}

func newPendingJob(leadID, templateID string, now time.Time, delay time.Duration) models.FollowUpJob {
	return models.FollowUpJob{
		ID:           uuid.NewString(),
		LeadID:       leadID,
		TemplateID:   templateID,
		ScheduledFor: now.Add(delay),
		Status:       models.JobPending,
		CreatedAt:    now,
	}
}
