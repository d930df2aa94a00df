package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"lead-intake-workers/internal/followup"
	"lead-intake-workers/internal/models"
)

const templateColumns = `id, name, channel, subject, content, delay_minutes, trigger_on, active, created_at`

func (s *Store) ActiveTemplates(ctx context.Context, trigger models.QualificationStatus) ([]models.FollowUpTemplate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+templateColumns+`
		FROM follow_up_templates
		WHERE active AND trigger_on = $1
		ORDER BY id`, string(trigger))
	if err != nil {
		return nil, fmt.Errorf("query active templates: %w", err)
	}
	defer rows.Close()

	var out []models.FollowUpTemplate
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate templates: %w", err)
	}
	return out, nil
}

func (s *Store) GetTemplate(ctx context.Context, id string) (*models.FollowUpTemplate, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+templateColumns+` FROM follow_up_templates WHERE id = $1`, id)
	t, err := scanTemplate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", followup.ErrTemplateNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load template %s: %w", id, err)
	}
	return t, nil
}

// UpsertTemplate inserts a template or replaces the editable fields of an existing one.
func (s *Store) UpsertTemplate(ctx context.Context, t *models.FollowUpTemplate) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO follow_up_templates (`+templateColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			channel = EXCLUDED.channel,
			subject = EXCLUDED.subject,
			content = EXCLUDED.content,
			delay_minutes = EXCLUDED.delay_minutes,
			trigger_on = EXCLUDED.trigger_on,
			active = EXCLUDED.active`,
		t.ID, t.Name, string(t.Channel), t.Subject, t.Content, t.DelayMinutes,
		string(t.TriggerOn), t.Active, t.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert template %s: %w", t.ID, err)
	}
	return nil
}

func scanTemplate(row scanner) (*models.FollowUpTemplate, error) {
	var (
		t       models.FollowUpTemplate
		channel string
		trigger string
	)
	if err := row.Scan(&t.ID, &t.Name, &channel, &t.Subject, &t.Content, &t.DelayMinutes,
		&trigger, &t.Active, &t.CreatedAt); err != nil {
		return nil, err
	}
	t.Channel = models.Channel(channel)
	t.TriggerOn = models.QualificationStatus(trigger)
	t.CreatedAt = t.CreatedAt.UTC()
	return &t, nil
}
