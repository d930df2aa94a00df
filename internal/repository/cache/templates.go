// Package cache puts a Redis read-through cache in front of the template catalog.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"lead-intake-workers/internal/common/logger"
	"lead-intake-workers/internal/followup"
	"lead-intake-workers/internal/models"

	"github.com/redis/go-redis/v9"
)

const (
	activeKeyPrefix   = "followup:templates:active:"
	templateKeyPrefix = "followup:template:"
)

// Templates caches ActiveTemplates and GetTemplate results. Redis failures
// fall through to the backing reader.
type Templates struct {
	next   followup.TemplateReader
	client redis.Cmdable
	ttl    time.Duration
	logger logger.Logger
}

func NewTemplates(next followup.TemplateReader, client redis.Cmdable, ttl time.Duration, log logger.Logger) *Templates {
	return &Templates{
		next:   next,
		client: client,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"component": "template-cache"}),
	}
}

func (c *Templates) ActiveTemplates(ctx context.Context, trigger models.QualificationStatus) ([]models.FollowUpTemplate, error) {
	key := activeKeyPrefix + string(trigger)

	var cached []models.FollowUpTemplate
	if c.get(ctx, key, &cached) {
		return cached, nil
	}

	tpls, err := c.next.ActiveTemplates(ctx, trigger)
	if err != nil {
		return nil, err
	}
	c.set(ctx, key, tpls)
	return tpls, nil
}

func (c *Templates) GetTemplate(ctx context.Context, id string) (*models.FollowUpTemplate, error) {
	key := templateKeyPrefix + id

	var cached models.FollowUpTemplate
	if c.get(ctx, key, &cached) {
		return &cached, nil
	}

	tpl, err := c.next.GetTemplate(ctx, id)
	if err != nil {
		return nil, err
	}
	c.set(ctx, key, tpl)
	return tpl, nil
}

// Invalidate drops the cached entries of the given templates and every
// active-by-trigger list.
func (c *Templates) Invalidate(ctx context.Context, ids ...string) error {
	keys := []string{
		activeKeyPrefix + string(models.QualificationQualified),
		activeKeyPrefix + string(models.QualificationNurture),
		activeKeyPrefix + string(models.QualificationDisqualified),
	}
	for _, id := range ids {
		keys = append(keys, templateKeyPrefix+id)
	}
	return c.client.Del(ctx, keys...).Err()
}

func (c *Templates) get(ctx context.Context, key string, dst interface{}) bool {
	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false
	}
	if err != nil {
		c.logger.Warn("template cache read failed", map[string]interface{}{"key": key, "error": err.Error()})
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		c.logger.Warn("discarding corrupt template cache entry", map[string]interface{}{"key": key, "error": err.Error()})
		return false
	}
	return true
}

func (c *Templates) set(ctx context.Context, key string, v interface{}) {
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.logger.Warn("template cache write failed", map[string]interface{}{"key": key, "error": err.Error()})
	}
}
