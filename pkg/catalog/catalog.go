// Package catalog loads, checks and seeds the follow-up template catalog file.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"lead-intake-workers/internal/followup"
	"lead-intake-workers/internal/models"
)

type TemplateWriter interface {
	UpsertTemplate(ctx context.Context, t *models.FollowUpTemplate) error
}

// Invalidator drops cached copies of the given templates.
type Invalidator interface {
	Invalidate(ctx context.Context, ids ...string) error
}

func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Catalog
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	return &c, nil
}

func Save(c *Catalog, path string) error {
	c.LastUpdated = time.Now().UTC().Format(time.RFC3339)
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal catalog: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate checks every template and the uniqueness of ids. Placeholders no
// lead can fill are reported as warnings.
func (c *Catalog) Validate() (warnings []string, err error) {
	if len(c.Templates) == 0 {
		return nil, errors.New("catalog contains no templates")
	}

	var errs []error
	seen := make(map[string]bool, len(c.Templates))
	for i := range c.Templates {
		t := &c.Templates[i]
		if t.ID == "" {
			errs = append(errs, fmt.Errorf("template #%d: id is required", i))
			continue
		}
		if seen[t.ID] {
			errs = append(errs, fmt.Errorf("duplicate template id %s", t.ID))
		}
		seen[t.ID] = true

		if err := t.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("template %s: %w", t.ID, err))
		}
		unknown := append(followup.UnknownPlaceholders(t.Subject), followup.UnknownPlaceholders(t.Content)...)
		if len(unknown) > 0 {
			warnings = append(warnings, fmt.Sprintf("template %s: unknown placeholders %s", t.ID, strings.Join(unknown, ", ")))
		}
	}
	return warnings, errors.Join(errs...)
}

// Find returns the template with id, or nil.
func (c *Catalog) Find(id string) *models.FollowUpTemplate {
	for i := range c.Templates {
		if c.Templates[i].ID == id {
			return &c.Templates[i]
		}
	}
	return nil
}

// Seed validates the catalog and upserts every template. When inv is non-nil
// the cached copies are dropped afterwards.
func Seed(ctx context.Context, c *Catalog, store TemplateWriter, inv Invalidator) (int, error) {
	if _, err := c.Validate(); err != nil {
		return 0, fmt.Errorf("invalid catalog: %w", err)
	}

	now := time.Now().UTC()
	ids := make([]string, 0, len(c.Templates))
	for i := range c.Templates {
		t := c.Templates[i]
		if t.CreatedAt.IsZero() {
			t.CreatedAt = now
		}
		if err := store.UpsertTemplate(ctx, &t); err != nil {
			return len(ids), fmt.Errorf("upsert template %s: %w", t.ID, err)
		}
		ids = append(ids, t.ID)
	}

	if inv != nil {
		if err := inv.Invalidate(ctx, ids...); err != nil {
			return len(ids), fmt.Errorf("invalidate template cache: %w", err)
		}
	}
	return len(ids), nil
}
