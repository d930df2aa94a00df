package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"lead-intake-workers/internal/followup"
	"lead-intake-workers/internal/models"
)

const jobColumns = `id, lead_id, template_id, scheduled_for, status, last_error, sent_at, created_at`

// CreateJobs inserts all jobs in one transaction.
func (s *Store) CreateJobs(ctx context.Context, jobs []models.FollowUpJob) error {
	if len(jobs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin job insert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO follow_up_jobs (`+jobColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`)
	if err != nil {
		return fmt.Errorf("prepare job insert: %w", err)
	}
	defer stmt.Close()

	for _, j := range jobs {
		if _, err := stmt.ExecContext(ctx,
			j.ID, j.LeadID, j.TemplateID, j.ScheduledFor.UTC(), string(j.Status),
			j.LastError, nullableTime(j.SentAt), j.CreatedAt.UTC(),
		); err != nil {
			return fmt.Errorf("insert follow-up job %s: %w", j.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit job insert: %w", err)
	}
	return nil
}

func (s *Store) GetJob(ctx context.Context, id string) (*models.FollowUpJob, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM follow_up_jobs WHERE id = $1`, id)
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", followup.ErrJobNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load follow-up job %s: %w", id, err)
	}
	return j, nil
}

// DueJobs uses the (status, scheduled_for) index. A non-positive limit means no limit.
func (s *Store) DueJobs(ctx context.Context, now time.Time, limit int) ([]models.FollowUpJob, error) {
	var lim sql.NullInt64
	if limit > 0 {
		lim = sql.NullInt64{Int64: int64(limit), Valid: true}
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+jobColumns+`
		FROM follow_up_jobs
		WHERE status = 'pending' AND scheduled_for <= $1
		ORDER BY scheduled_for
		LIMIT $2`, now.UTC(), lim)
	if err != nil {
		return nil, fmt.Errorf("query due jobs: %w", err)
	}
	defer rows.Close()

	var out []models.FollowUpJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan follow-up job: %w", err)
		}
		out = append(out, *j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate due jobs: %w", err)
	}
	return out, nil
}

// TransitionJob applies a compare-and-set on status. Zero affected rows means
// either the job is gone or another writer moved it first.
func (s *Store) TransitionJob(ctx context.Context, t followup.JobTransition) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE follow_up_jobs
		SET status = $3, sent_at = $4, last_error = $5, claimed_until = NULL
		WHERE id = $1 AND status = $2`,
		t.JobID, string(t.From), string(t.To), nullableTime(t.SentAt), t.LastError,
	)
	if err != nil {
		return fmt.Errorf("update follow-up job %s: %w", t.JobID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update follow-up job %s: %w", t.JobID, err)
	}
	if n > 0 {
		return nil
	}

	var exists bool
	if err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM follow_up_jobs WHERE id = $1)`, t.JobID,
	).Scan(&exists); err != nil {
		return fmt.Errorf("check follow-up job %s: %w", t.JobID, err)
	}
	if !exists {
		return fmt.Errorf("%w: %s", followup.ErrJobNotFound, t.JobID)
	}
	return fmt.Errorf("%w: job %s is no longer %s", followup.ErrStatusConflict, t.JobID, t.From)
}

// ListJobs filters on status and lead when set. A non-positive limit means no limit.
func (s *Store) ListJobs(ctx context.Context, f followup.JobFilter) ([]models.FollowUpJob, error) {
	var lim sql.NullInt64
	if f.Limit > 0 {
		lim = sql.NullInt64{Int64: int64(f.Limit), Valid: true}
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+jobColumns+`
		FROM follow_up_jobs
		WHERE ($1 = '' OR status = $1) AND ($2 = '' OR lead_id = $2)
		ORDER BY scheduled_for DESC, id
		LIMIT $3`, string(f.Status), f.LeadID, lim)
	if err != nil {
		return nil, fmt.Errorf("query follow-up jobs: %w", err)
	}
	defer rows.Close()

	var out []models.FollowUpJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan follow-up job: %w", err)
		}
		out = append(out, *j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate follow-up jobs: %w", err)
	}
	return out, nil
}

// ClaimJob takes the job's dispatch claim in a single conditional update, so
// concurrent dispatchers on any host see at most one winner until the claim
// expires or a transition clears it.
func (s *Store) ClaimJob(ctx context.Context, id string, now, until time.Time) (*models.FollowUpJob, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE follow_up_jobs
		SET claimed_until = $3
		WHERE id = $1 AND (claimed_until IS NULL OR claimed_until <= $2)
		RETURNING `+jobColumns,
		id, now.UTC(), until.UTC(),
	)
	j, err := scanJob(row)
	if err == nil {
		return j, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("claim follow-up job %s: %w", id, err)
	}

	if _, err := s.GetJob(ctx, id); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%w: %s", followup.ErrJobClaimed, id)
}

func (s *Store) ReleaseJob(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE follow_up_jobs SET claimed_until = NULL WHERE id = $1`, id,
	); err != nil {
		return fmt.Errorf("release follow-up job %s: %w", id, err)
	}
	return nil
}

func scanJob(row scanner) (*models.FollowUpJob, error) {
	var (
		j      models.FollowUpJob
		status string
		sentAt sql.NullTime
	)
	if err := row.Scan(&j.ID, &j.LeadID, &j.TemplateID, &j.ScheduledFor, &status,
		&j.LastError, &sentAt, &j.CreatedAt); err != nil {
		return nil, err
	}
	j.Status = models.JobStatus(status)
	j.ScheduledFor = j.ScheduledFor.UTC()
	j.CreatedAt = j.CreatedAt.UTC()
	j.SentAt = timePtr(sentAt)
	return &j, nil
}
