package http

import (
	"encoding/json"
	"log"
	"net/http"

	"trivia-session-service/internal/app"
	"trivia-session-service/internal/domain"
	"github.com/gorilla/websocket"
)

type WSHandler struct {
	service  *app.LobbyService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.LobbyService) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	Choice string `json:"choice"`
}

type startRoundPayload struct {
	Force bool `json:"force"`
}

type templatesPayload struct {
	Category string `json:"category"`
}

type joinedPayload struct {
	PlayerID string          `json:"playerId"`
	State    domain.Snapshot `json:"state"`
}

type templatesResult struct {
	Categories []string          `json:"categories"`
	Templates  []domain.Template `json:"templates"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades HTTP requests to websockets and wires them into the
// lobby use cases. A connection without a playerId joins as a new
// participant; one carrying a playerId reconnects the existing player.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	name := r.URL.Query().Get("name")
	playerID := r.URL.Query().Get("playerId")
	if code == "" || (name == "" && playerID == "") {
		http.Error(w, "missing code and one of name or playerId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	if playerID == "" {
		playerID, err = h.service.Join(r.Context(), code, name)
	} else {
		err = h.service.Reconnect(r.Context(), code, playerID)
	}
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}

	updates, cancel, err := h.service.Subscribe(code)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	defer cancel()
	defer h.service.Disconnect(code, playerID)

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "state", Payload: update}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	snap, _ := h.service.Snapshot(code)
	send <- outboundMessage[any]{Type: "joined", Payload: joinedPayload{PlayerID: playerID, State: snap}}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		action, handled, err := h.decodeAction(inbound)
		switch {
		case err != nil:
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
			continue
		case !handled:
			if inbound.Type == "listTemplates" {
				h.sendTemplates(r, code, inbound.Payload, send)
				continue
			}
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}
			continue
		}

		snap, err := h.service.Dispatch(r.Context(), code, playerID, action)
		if err != nil {
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
			continue
		}
		// The subscription also carries this snapshot; sending it directly
		// gives the actor an immediate result and duplicates are harmless
		// because snapshots are complete.
		send <- outboundMessage[any]{Type: "state", Payload: snap}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

func (h *WSHandler) decodeAction(inbound inboundMessage) (app.Action, bool, error) {
	switch inbound.Type {
	case "submitQuestion":
		var q app.QuestionPayload
		if err := json.Unmarshal(inbound.Payload, &q); err != nil {
			return app.Action{}, true, domain.ErrInvalidQuestion
		}
		return app.Action{Type: app.ActionSubmitQuestion, Question: &q}, true, nil
	case "submitAnswer":
		var p answerPayload
		if err := json.Unmarshal(inbound.Payload, &p); err != nil {
			return app.Action{}, true, domain.ErrIllegalAction
		}
		return app.Action{Type: app.ActionSubmitAnswer, Choice: p.Choice}, true, nil
	case "startRound":
		var p startRoundPayload
		if len(inbound.Payload) > 0 {
			if err := json.Unmarshal(inbound.Payload, &p); err != nil {
				return app.Action{}, true, domain.ErrIllegalAction
			}
		}
		return app.Action{Type: app.ActionStartRound, Force: p.Force}, true, nil
	case "startGame", "forceReveal", "nextQuestion", "nextRound", "endGame":
		return app.Action{Type: app.ActionType(inbound.Type)}, true, nil
	}
	return app.Action{}, false, nil
}

func (h *WSHandler) sendTemplates(r *http.Request, code string, raw json.RawMessage, send chan<- outboundMessage[any]) {
	var p templatesPayload
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &p); err != nil {
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid templates payload"}}
			return
		}
	}
	categories, err := h.service.Categories(r.Context())
	if err != nil {
		send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
		return
	}
	templates, err := h.service.Templates(r.Context(), code, p.Category)
	if err != nil {
		send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
		return
	}
	send <- outboundMessage[any]{Type: "templates", Payload: templatesResult{Categories: categories, Templates: templates}}
}
