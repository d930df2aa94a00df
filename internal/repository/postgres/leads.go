package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"lead-intake-workers/internal/followup"
	"lead-intake-workers/internal/models"

	"github.com/lib/pq"
)

const leadColumns = `id, first_name, last_name, email, phone, zip_code, insurance, financing,
	situation, urgency, notes, symptoms, solutions, tags, hipaa, source, service, status,
	qualification_status, qualification_score, qualification_reasons, submitted_at, last_contact`

func (s *Store) CreateLead(ctx context.Context, l *models.Lead) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO leads (`+leadColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18,
			$19, $20, $21, $22, $23)`,
		l.ID, l.FirstName, l.LastName, l.Email, l.Phone, l.ZipCode, l.Insurance, l.Financing,
		l.Situation, l.Urgency, l.Notes,
		pq.Array(nonNil(l.Symptoms)), pq.Array(nonNil(l.Solutions)), pq.Array(nonNil(l.Tags)),
		l.HIPAA, l.Source, l.Service, string(l.Status),
		string(l.QualificationStatus), l.QualificationScore, pq.Array(nonNil(l.QualificationReasons)),
		l.SubmittedAt.UTC(), nullableTime(l.LastContact),
	)
	if err != nil {
		return fmt.Errorf("insert lead %s: %w", l.ID, err)
	}
	return nil
}

func (s *Store) GetLead(ctx context.Context, id string) (*models.Lead, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id)
	l, err := scanLead(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", followup.ErrLeadNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load lead %s: %w", id, err)
	}
	return l, nil
}

// SaveQualification writes the qualification outcome and tags of an existing lead.
func (s *Store) SaveQualification(ctx context.Context, l *models.Lead) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE leads
		SET qualification_status = $2, qualification_score = $3, qualification_reasons = $4, tags = $5
		WHERE id = $1`,
		l.ID, string(l.QualificationStatus), l.QualificationScore,
		pq.Array(nonNil(l.QualificationReasons)), pq.Array(nonNil(l.Tags)),
	)
	if err != nil {
		return fmt.Errorf("update qualification of lead %s: %w", l.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", followup.ErrLeadNotFound, l.ID)
	}
	return nil
}

// UpdateLead writes the workflow status, last contact and qualification of an
// existing lead.
func (s *Store) UpdateLead(ctx context.Context, l *models.Lead) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE leads
		SET status = $2, last_contact = $3,
			qualification_status = $4, qualification_score = $5, qualification_reasons = $6
		WHERE id = $1`,
		l.ID, string(l.Status), nullableTime(l.LastContact),
		string(l.QualificationStatus), l.QualificationScore, pq.Array(nonNil(l.QualificationReasons)),
	)
	if err != nil {
		return fmt.Errorf("update lead %s: %w", l.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", followup.ErrLeadNotFound, l.ID)
	}
	return nil
}

func scanLead(row scanner) (*models.Lead, error) {
	var (
		l           models.Lead
		status      string
		qualStatus  string
		lastContact sql.NullTime
	)
	err := row.Scan(
		&l.ID, &l.FirstName, &l.LastName, &l.Email, &l.Phone, &l.ZipCode, &l.Insurance, &l.Financing,
		&l.Situation, &l.Urgency, &l.Notes,
		pq.Array(&l.Symptoms), pq.Array(&l.Solutions), pq.Array(&l.Tags),
		&l.HIPAA, &l.Source, &l.Service, &status,
		&qualStatus, &l.QualificationScore, pq.Array(&l.QualificationReasons),
		&l.SubmittedAt, &lastContact,
	)
	if err != nil {
		return nil, err
	}
	l.Status = models.LeadStatus(status)
	l.QualificationStatus = models.QualificationStatus(qualStatus)
	l.SubmittedAt = l.SubmittedAt.UTC()
	l.LastContact = timePtr(lastContact)
	return &l, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
