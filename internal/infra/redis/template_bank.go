package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"trivia-session-service/internal/domain"
	"trivia-session-service/internal/infra/memory"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// TemplateBank caches the question bank in Redis (one hash, template ID to
// JSON) and falls back to a loader on cache miss.
// Templates are stored as: HSET trivia:bank:templates {templateID} {json}
type TemplateBank struct {
	client *redis.Client
	loader memory.TemplateLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewTemplateBank(client *redis.Client, loader memory.TemplateLoader, ttl time.Duration) *TemplateBank {
	return &TemplateBank{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

const templatesKey = "trivia:bank:templates"

func (b *TemplateBank) ListCategories(ctx context.Context) ([]string, error) {
	templates, err := b.load(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	var categories []string
	for _, tpl := range templates {
		if _, ok := seen[tpl.Category]; !ok {
			seen[tpl.Category] = struct{}{}
			categories = append(categories, tpl.Category)
		}
	}
	return categories, nil
}

func (b *TemplateBank) ListTemplates(ctx context.Context, category string) ([]domain.Template, error) {
	templates, err := b.load(ctx)
	if err != nil {
		return nil, err
	}
	if category == "" {
		return templates, nil
	}
	var matched []domain.Template
	for _, tpl := range templates {
		if tpl.Category == category {
			matched = append(matched, tpl)
		}
	}
	return matched, nil
}

func (b *TemplateBank) GetTemplate(ctx context.Context, id string) (domain.Template, error) {
	raw, err := b.client.HGet(ctx, templatesKey, id).Result()
	if err == nil {
		var tpl domain.Template
		if err := json.Unmarshal([]byte(raw), &tpl); err == nil {
			return tpl, nil
		}
	}
	templates, err := b.load(ctx)
	if err != nil {
		return domain.Template{}, err
	}
	for _, tpl := range templates {
		if tpl.ID == id {
			return tpl, nil
		}
	}
	return domain.Template{}, domain.ErrTemplateNotFound
}

func (b *TemplateBank) load(ctx context.Context) ([]domain.Template, error) {
	cached, err := b.client.HGetAll(ctx, templatesKey).Result()
	if err == nil && len(cached) > 0 {
		return decodeTemplates(cached), nil
	}

	result, err, _ := b.sf.Do(templatesKey, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		cached, err := b.client.HGetAll(ctx, templatesKey).Result()
		if err == nil && len(cached) > 0 {
			return decodeTemplates(cached), nil
		}

		templates, err := b.loader.LoadTemplates(ctx)
		if err != nil {
			return nil, err
		}

		ttl := b.ttlWithJitter()
		pipe := b.client.Pipeline()
		for _, tpl := range templates {
			data, err := json.Marshal(tpl)
			if err != nil {
				continue
			}
			pipe.HSet(ctx, templatesKey, tpl.ID, string(data))
		}
		if ttl > 0 {
			pipe.Expire(ctx, templatesKey, ttl)
		}
		_, _ = pipe.Exec(ctx)

		return templates, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Template), nil
}

func decodeTemplates(raw map[string]string) []domain.Template {
	templates := make([]domain.Template, 0, len(raw))
	for _, data := range raw {
		var tpl domain.Template
		if err := json.Unmarshal([]byte(data), &tpl); err != nil {
			continue
		}
		templates = append(templates, tpl)
	}
	return templates
}

func (b *TemplateBank) ttlWithJitter() time.Duration {
	if b.ttl <= 0 {
		return 0
	}
	jitterMax := int64(b.ttl) / 10
	return b.ttl + time.Duration(b.rnd.Int63n(jitterMax+1))
}
