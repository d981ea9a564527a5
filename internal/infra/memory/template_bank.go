package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"trivia-session-service/internal/domain"
	"golang.org/x/sync/singleflight"
)

// TemplateLoader fetches the question bank from a backing store (e.g., Postgres).
type TemplateLoader interface {
	LoadTemplates(ctx context.Context) ([]domain.Template, error)
}

// TemplateBank caches the full bank with TTL to avoid repeated store hits.
// It implements app.TemplateRepository.
type TemplateBank struct {
	loader TemplateLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu        sync.RWMutex
	templates []domain.Template
	expiresAt time.Time
}

func NewTemplateBank(loader TemplateLoader, ttl time.Duration) *TemplateBank {
	return &TemplateBank{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

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

// ListTemplates returns the templates for a category; an empty category
// returns the whole bank.
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
	now := b.clock()

	b.mu.RLock()
	if b.templates != nil && b.expiresAt.After(now) {
		templates := b.templates
		b.mu.RUnlock()
		return templates, nil
	}
	b.mu.RUnlock()

	result, err, _ := b.sf.Do("bank", func() (interface{}, error) {
		now := b.clock()
		b.mu.RLock()
		if b.templates != nil && b.expiresAt.After(now) {
			templates := b.templates
			b.mu.RUnlock()
			return templates, nil
		}
		b.mu.RUnlock()

		templates, err := b.loader.LoadTemplates(ctx)
		if err != nil {
			return nil, err
		}

		b.mu.Lock()
		b.templates = templates
		b.expiresAt = now.Add(b.ttlWithJitter())
		b.mu.Unlock()
		return templates, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Template), nil
}

func (b *TemplateBank) ttlWithJitter() time.Duration {
	if b.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(b.ttl) / 10
	return b.ttl + time.Duration(b.rnd.Int63n(jitterMax+1))
}
