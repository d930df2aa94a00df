package followup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lead-intake-workers/internal/models"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrLeadNotFound     = fmt.Errorf("lead %w", ErrNotFound)
	ErrTemplateNotFound = fmt.Errorf("template %w", ErrNotFound)
	ErrJobNotFound      = fmt.Errorf("follow-up job %w", ErrNotFound)

	// ErrInvalidTransition is returned for a status change the job state machine forbids.
	ErrInvalidTransition = errors.New("invalid follow-up job transition")
	// ErrStatusConflict is returned by a JobStore when the job's stored status no
	// longer matches the expected one.
	ErrStatusConflict = errors.New("follow-up job status changed concurrently")
	// ErrJobClaimed is returned by ClaimJob while another dispatcher's claim
	// on the job has not expired.
	ErrJobClaimed = errors.New("follow-up job claimed by another dispatcher")
	// ErrInvalidFilter is returned by ListJobs for a filter naming an unknown status.
	ErrInvalidFilter = errors.New("invalid follow-up job filter")
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// LeadReader loads leads by id.
type LeadReader interface {
	GetLead(ctx context.Context, id string) (*models.Lead, error)
}

// TemplateReader reads the operator-managed template catalog.
type TemplateReader interface {
	ActiveTemplates(ctx context.Context, trigger models.QualificationStatus) ([]models.FollowUpTemplate, error)
	GetTemplate(ctx context.Context, id string) (*models.FollowUpTemplate, error)
}

// JobTransition is a compare-and-set status write. It applies only when the
// stored status equals From.
type JobTransition struct {
	JobID     string
	From      models.JobStatus
	To        models.JobStatus
	SentAt    *time.Time
	LastError string
}

// JobFilter narrows ListJobs. Zero fields match everything.
type JobFilter struct {
	Status models.JobStatus
	LeadID string
	Limit  int
}

// JobStore persists follow-up jobs.
type JobStore interface {
	// CreateJobs inserts every job or none of them.
	CreateJobs(ctx context.Context, jobs []models.FollowUpJob) error
	GetJob(ctx context.Context, id string) (*models.FollowUpJob, error)
	// DueJobs returns pending jobs scheduled at or before now, oldest first.
	DueJobs(ctx context.Context, now time.Time, limit int) ([]models.FollowUpJob, error)
	// ListJobs returns jobs matching f, latest scheduled first.
	ListJobs(ctx context.Context, f JobFilter) ([]models.FollowUpJob, error)
	// TransitionJob applies t and drops any dispatch claim on the job.
	TransitionJob(ctx context.Context, t JobTransition) error

	// ClaimJob marks the job as owned by the caller until the given time and
	// returns its current state. A claim that has not expired by now fails
	// with ErrJobClaimed.
	ClaimJob(ctx context.Context, id string, now, until time.Time) (*models.FollowUpJob, error)
	// ReleaseJob drops a claim without touching the status.
	ReleaseJob(ctx context.Context, id string) error
}
