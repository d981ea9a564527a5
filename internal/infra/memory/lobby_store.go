package memory

import (
	"sync"

	"trivia-session-service/internal/app"
)

// LobbyStore is an in-memory implementation of app.LobbyRepository.
type LobbyStore struct {
	mu      sync.RWMutex
	lobbies map[string]*app.Lobby
}

func NewLobbyStore() *LobbyStore {
	return &LobbyStore{
		lobbies: make(map[string]*app.Lobby),
	}
}

// Put registers the lobby unless its code is already taken. This is the
// collision check behind lobby code generation.
func (s *LobbyStore) Put(code string, lobby *app.Lobby) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lobbies[code]; ok {
		return false
	}
	s.lobbies[code] = lobby
	return true
}

// Adopt registers a restored lobby unconditionally.
func (s *LobbyStore) Adopt(code string, lobby *app.Lobby) {
	s.mu.Lock()
	defer s.mu.Unlock()
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
	delete(s.lobbies, code)
}

// Range visits every lobby until fn returns false. The snapshot of codes is
// taken up front so fn may call back into the store.
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
