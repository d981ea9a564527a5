package redis

import (
	"context"
	"sync"
	"time"

	"trivia-session-service/internal/app"
	"github.com/redis/go-redis/v9"
)

// LobbyStore is a Redis-aware implementation of app.LobbyRepository.
// Notes:
//   - It still keeps a local in-memory map of lobbies to reuse the existing
//     in-process broadcast logic.
//   - Redis marks lobby-code liveness, so collision checks hold across
//     instances even when the lobby actor lives in another process.
//   - For true distribution you'd pair this with a pub/sub projector that
//     fans out snapshots.
type LobbyStore struct {
	client  *redis.Client
	ttl     time.Duration
	mu      sync.RWMutex
	lobbies map[string]*app.Lobby
}

func NewLobbyStore(client *redis.Client, ttl time.Duration) *LobbyStore {
	return &LobbyStore{
		client:  client,
		ttl:     ttl,
		lobbies: make(map[string]*app.Lobby),
	}
}

func (s *LobbyStore) Put(code string, lobby *app.Lobby) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lobbies[code]; ok {
		return false
	}
	// SetNX claims the code cluster-wide; a clash with another instance
	// rejects the code just like a local collision.
	claimed, err := s.client.SetNX(context.Background(), s.key(code), "1", s.ttl).Result()
	if err == nil && !claimed {
		return false
	}
	s.lobbies[code] = lobby
	return true
}

// Adopt registers a restored lobby, refreshing the code claim even if a
// previous incarnation of this process still holds it in Redis.
func (s *LobbyStore) Adopt(code string, lobby *app.Lobby) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.client.Set(context.Background(), s.key(code), "1", s.ttl).Err()
	s.lobbies[code] = lobby
}

func (s *LobbyStore) Get(code string) (*app.Lobby, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lobby, ok := s.lobbies[code]
	return lobby, ok
}

func (s *LobbyStore) Delete(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lobbies[code]; !ok {
		return
	}
	delete(s.lobbies, code)
	_ = s.client.Del(context.Background(), s.key(code)).Err()
}

func (s *LobbyStore) Range(fn func(lobby *app.Lobby) bool) {
	s.mu.RLock()
	lobbies := make([]*app.Lobby, 0, len(s.lobbies))
	for _, l := range s.lobbies {
		lobbies = append(lobbies, l)
	}
	s.mu.RUnlock()

	for _, l := range lobbies {
		if !fn(l) {
			return
		}
	}
}

func (s *LobbyStore) key(code string) string {
	return "trivia:lobby:" + code
}
