package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"trivia-session-service/internal/domain"
	"github.com/jackc/pgx/v4/pgxpool"
)

// TemplateLoader loads the question-template bank from Postgres. Rows hold
// one template as JSONB; the bank is read-only from the core's perspective.
type TemplateLoader struct {
	pool *pgxpool.Pool
}

func NewTemplateLoader(pool *pgxpool.Pool) *TemplateLoader {
	return &TemplateLoader{pool: pool}
}

func (l *TemplateLoader) LoadTemplates(ctx context.Context) ([]domain.Template, error) {
	rows, err := l.pool.Query(ctx, `SELECT data FROM question_templates ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}
	defer rows.Close()

	var templates []domain.Template
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		var tpl domain.Template
		if err := json.Unmarshal(raw, &tpl); err != nil {
			return nil, fmt.Errorf("unmarshal template: %w", err)
		}
		templates = append(templates, tpl)
	}
	return templates, rows.Err()
}
