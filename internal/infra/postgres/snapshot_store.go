package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"trivia-session-service/internal/domain"
	"github.com/jackc/pgx/v4/pgxpool"
)

// SnapshotStore persists serialized lobby state as one JSONB row per lobby
// code. It implements app.SnapshotStore; the core treats it as best-effort.
type SnapshotStore struct {
	pool *pgxpool.Pool
}

func NewSnapshotStore(pool *pgxpool.Pool) *SnapshotStore {
	return &SnapshotStore{pool: pool}
}

func (s *SnapshotStore) Save(ctx context.Context, state domain.LobbyState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal lobby state: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO lobby_snapshots (code, data, saved_at) VALUES ($1, $2, now())
		 ON CONFLICT (code) DO UPDATE SET data = EXCLUDED.data, saved_at = now()`,
		state.Code, data)
	if err != nil {
		return fmt.Errorf("save lobby snapshot: %w", err)
	}
	return nil
}

func (s *SnapshotStore) LoadAll(ctx context.Context) ([]domain.LobbyState, error) {
	rows, err := s.pool.Query(ctx, `SELECT data FROM lobby_snapshots`)
	if err != nil {
		return nil, fmt.Errorf("load lobby snapshots: %w", err)
	}
	defer rows.Close()

	var states []domain.LobbyState
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan lobby snapshot: %w", err)
		}
		var st domain.LobbyState
		if err := json.Unmarshal(raw, &st); err != nil {
			return nil, fmt.Errorf("unmarshal lobby snapshot: %w", err)
		}
		states = append(states, st)
	}
	return states, rows.Err()
}
