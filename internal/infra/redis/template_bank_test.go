package redis

import (
	"context"
	"sync"
	"testing"
	"time"

	"trivia-session-service/internal/domain"
)

type countingLoader struct {
	mu    sync.Mutex
	calls int
	bank  []domain.Template
}

func (l *countingLoader) LoadTemplates(ctx context.Context) ([]domain.Template, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	return l.bank, nil
}

func (l *countingLoader) callCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

func sampleBank() []domain.Template {
	return []domain.Template{
		{ID: "a1", Category: "History", Prompt: "p1", CorrectAnswer: "c1", Distractors: []string{"x", "y", "z"}},
		{ID: "b1", Category: "Science", Prompt: "p2", CorrectAnswer: "c2", Distractors: []string{"x", "y", "z"}},
	}
}

func TestTemplateBankPopulatesRedisOnce(t *testing.T) {
	client, mr := newTestClient(t)
	loader := &countingLoader{bank: sampleBank()}
	bank := NewTemplateBank(client, loader, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		templates, err := bank.ListTemplates(ctx, "")
		if err != nil {
			t.Fatalf("list templates: %v", err)
		}
		if len(templates) != 2 {
			t.Fatalf("expected 2 templates, got %d", len(templates))
		}
	}
	if got := loader.callCount(); got != 1 {
		t.Fatalf("expected a single loader call, got %d", got)
	}
	if !mr.Exists("trivia:bank:templates") {
		t.Fatalf("expected bank hash in redis")
	}
}

func TestTemplateBankGetTemplateFromCache(t *testing.T) {
	client, _ := newTestClient(t)
	bank := NewTemplateBank(client, &countingLoader{bank: sampleBank()}, time.Minute)
	ctx := context.Background()

	// Warm the cache, then fetch straight from the hash.
	if _, err := bank.ListTemplates(ctx, ""); err != nil {
		t.Fatalf("warm cache: %v", err)
	}
	tpl, err := bank.GetTemplate(ctx, "b1")
	if err != nil {
		t.Fatalf("get template: %v", err)
	}
	if tpl.Category != "Science" {
		t.Fatalf("wrong template back: %+v", tpl)
	}
}

func TestTemplateBankReloadsAfterExpiry(t *testing.T) {
	client, mr := newTestClient(t)
	loader := &countingLoader{bank: sampleBank()}
	bank := NewTemplateBank(client, loader, time.Minute)
	ctx := context.Background()

	if _, err := bank.ListTemplates(ctx, ""); err != nil {
		t.Fatalf("first load: %v", err)
	}
	mr.FastForward(2 * time.Minute)
	if _, err := bank.ListTemplates(ctx, ""); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got := loader.callCount(); got != 2 {
		t.Fatalf("expected reload after expiry, got %d loader calls", got)
	}
}

func TestTemplateBankListCategories(t *testing.T) {
	client, _ := newTestClient(t)
	bank := NewTemplateBank(client, &countingLoader{bank: sampleBank()}, time.Minute)

	categories, err := bank.ListCategories(context.Background())
	if err != nil {
		t.Fatalf("list categories: %v", err)
	}
	if len(categories) != 2 {
		t.Fatalf("expected 2 categories, got %v", categories)
	}
}
