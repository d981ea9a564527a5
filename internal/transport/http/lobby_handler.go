package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"trivia-session-service/internal/app"
	"trivia-session-service/internal/domain"
)

// LobbyHandler exposes lobby creation over plain HTTP; gameplay itself
// happens on the websocket.
type LobbyHandler struct {
	service *app.LobbyService
}

func NewLobbyHandler(service *app.LobbyService) *LobbyHandler {
	return &LobbyHandler{service: service}
}

type createLobbyRequest struct {
	Name     string `json:"name"`
	Nickname string `json:"nickname"`
}

type createLobbyResponse struct {
	Code     string `json:"code"`
	PlayerID string `json:"playerId"`
}

func (h *LobbyHandler) CreateLobby(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req createLobbyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Nickname = strings.TrimSpace(req.Nickname)
	if req.Name == "" || req.Nickname == "" {
		http.Error(w, "lobby name and nickname are required", http.StatusBadRequest)
		return
	}

	code, playerID, err := h.service.CreateLobby(r.Context(), req.Name, req.Nickname)
	if err != nil {
		if errors.Is(err, domain.ErrCodeSpaceExhausted) {
			log.Printf("FATAL condition creating lobby: %v", err)
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(createLobbyResponse{Code: code, PlayerID: playerID})
}
