package memory

import (
	"context"
	"testing"
	"time"

	"lead-intake-workers/internal/followup"
	"lead-intake-workers/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 3, 4, 15, 0, 0, 0, time.UTC)

func seedJobs(t *testing.T, s *Store, jobs ...models.FollowUpJob) {
	t.Helper()
	require.NoError(t, s.CreateJobs(context.Background(), jobs))
}

func job(id, leadID string, status models.JobStatus, at time.Time) models.FollowUpJob {
	return models.FollowUpJob{ID: id, LeadID: leadID, TemplateID: "tpl-1", ScheduledFor: at, Status: status, CreatedAt: at}
}

func TestClaimJob(t *testing.T) {
	s := New()
	seedJobs(t, s, job("job-1", "lead-1", models.JobPending, testNow))
	ctx := context.Background()

	got, err := s.ClaimJob(ctx, "job-1", testNow, testNow.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, models.JobPending, got.Status)
	assert.True(t, s.Claimed("job-1"))

	_, err = s.ClaimJob(ctx, "job-1", testNow.Add(30*time.Second), testNow.Add(2*time.Minute))
	assert.ErrorIs(t, err, followup.ErrJobClaimed)

	// An expired claim can be taken over.
	_, err = s.ClaimJob(ctx, "job-1", testNow.Add(time.Minute), testNow.Add(2*time.Minute))
	require.NoError(t, err)

	require.NoError(t, s.ReleaseJob(ctx, "job-1"))
	assert.False(t, s.Claimed("job-1"))

	_, err = s.ClaimJob(ctx, "missing", testNow, testNow.Add(time.Minute))
	assert.ErrorIs(t, err, followup.ErrJobNotFound)
}

func TestTransitionJob_ClearsClaim(t *testing.T) {
	s := New()
	seedJobs(t, s, job("job-1", "lead-1", models.JobPending, testNow))
	ctx := context.Background()

	_, err := s.ClaimJob(ctx, "job-1", testNow, testNow.Add(time.Minute))
	require.NoError(t, err)

	require.NoError(t, s.TransitionJob(ctx, followup.JobTransition{JobID: "job-1", From: models.JobPending, To: models.JobFailed, LastError: "boom"}))
	assert.False(t, s.Claimed("job-1"))
}

func TestListJobs(t *testing.T) {
	s := New()
	seedJobs(t, s,
		job("a", "lead-1", models.JobPending, testNow),
		job("b", "lead-1", models.JobSent, testNow.Add(time.Hour)),
		job("c", "lead-2", models.JobPending, testNow.Add(2*time.Hour)),
	)

	ids := func(jobs []models.FollowUpJob) []string {
		var out []string
		for _, j := range jobs {
			out = append(out, j.ID)
		}
		return out
	}

	all, err := s.ListJobs(context.Background(), followup.JobFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b", "a"}, ids(all))

	pending, err := s.ListJobs(context.Background(), followup.JobFilter{Status: models.JobPending, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, ids(pending))

	lead1, err := s.ListJobs(context.Background(), followup.JobFilter{LeadID: "lead-1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, ids(lead1))
}

func TestUpdateLead(t *testing.T) {
	s := New()
	ctx := context.Background()
	l := models.NewLead()
	l.ID = "lead-1"
	l.Notes = "call after 5"
	require.NoError(t, s.CreateLead(ctx, l))

	contact := testNow
	edit := *l
	edit.Status = models.LeadStatusBooked
	edit.LastContact = &contact
	edit.QualificationStatus = models.QualificationQualified
	edit.Notes = "ignored"
	require.NoError(t, s.UpdateLead(ctx, &edit))

	stored, err := s.GetLead(ctx, "lead-1")
	require.NoError(t, err)
	assert.Equal(t, models.LeadStatusBooked, stored.Status)
	assert.Equal(t, &contact, stored.LastContact)
	assert.Equal(t, models.QualificationQualified, stored.QualificationStatus)
	assert.Equal(t, "call after 5", stored.Notes)

	edit.ID = "missing"
	assert.ErrorIs(t, s.UpdateLead(ctx, &edit), followup.ErrLeadNotFound)
}
