package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log"
	mathrand "math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"trivia-session-service/internal/domain"
)

// LobbyRepository abstracts how live lobbies are stored (in-memory, Redis-backed, etc).
type LobbyRepository interface {
	// Put registers a lobby under its code; false means the code is taken.
	Put(code string, lobby *Lobby) bool
	// Adopt registers a restored lobby, reclaiming its code even when a
	// previous incarnation of this process still holds the claim.
	Adopt(code string, lobby *Lobby)
	Get(code string) (*Lobby, bool)
	Delete(code string)
	Range(fn func(lobby *Lobby) bool)
}

// TemplateRepository supplies the read-only question bank.
type TemplateRepository interface {
	ListCategories(ctx context.Context) ([]string, error)
	ListTemplates(ctx context.Context, category string) ([]domain.Template, error)
	GetTemplate(ctx context.Context, id string) (domain.Template, error)
}

// SnapshotStore is the external persistence collaborator behind the
// serialize/deserialize boundary. The core never blocks on it.
type SnapshotStore interface {
	Save(ctx context.Context, state domain.LobbyState) error
	LoadAll(ctx context.Context) ([]domain.LobbyState, error)
}

// ActionType enumerates the gameplay actions a client can dispatch.
type ActionType string

const (
	ActionStartGame      ActionType = "startGame"
	ActionSubmitQuestion ActionType = "submitQuestion"
	ActionStartRound     ActionType = "startRound"
	ActionSubmitAnswer   ActionType = "submitAnswer"
	ActionForceReveal    ActionType = "forceReveal"
	ActionNextQuestion   ActionType = "nextQuestion"
	ActionNextRound      ActionType = "nextRound"
	ActionEndGame        ActionType = "endGame"
)

// QuestionPayload carries a submitted question, either authored directly or
// copied from a bank template when TemplateID is set.
type QuestionPayload struct {
	TemplateID    string   `json:"templateId,omitempty"`
	Prompt        string   `json:"prompt"`
	CorrectAnswer string   `json:"correctAnswer"`
	Distractors   []string `json:"distractors"`
}

// Action is the single dispatch unit for all gameplay input.
type Action struct {
	Type     ActionType       `json:"type"`
	Question *QuestionPayload `json:"question,omitempty"`
	Choice   string           `json:"choice,omitempty"`
	Force    bool             `json:"force,omitempty"`
}

const maxCodeAttempts = 64

// LobbyService owns the collection of lobbies and routes every inbound
// action to the right lobby's round state machine.
type LobbyService struct {
	lobbies LobbyRepository
	bank    TemplateRepository
	store   SnapshotStore
	policy  Policy
	now     func() time.Time

	rngMu sync.Mutex
	rng   *mathrand.Rand

	saveCh chan domain.LobbyState
}

// NewLobbyService wires the service with its repositories. store may be nil
// when no persistence collaborator is configured.
func NewLobbyService(lobbies LobbyRepository, bank TemplateRepository, store SnapshotStore, policy Policy) *LobbyService {
	return &LobbyService{
		lobbies: lobbies,
		bank:    bank,
		store:   store,
		policy:  policy,
		now:     time.Now,
		rng:     mathrand.New(mathrand.NewSource(time.Now().UnixNano())),
		saveCh:  make(chan domain.LobbyState, 64),
	}
}

// NewLobbyServiceWithClock is test-only for deterministic timestamps.
func NewLobbyServiceWithClock(lobbies LobbyRepository, bank TemplateRepository, store SnapshotStore, policy Policy, now func() time.Time) *LobbyService {
	s := NewLobbyService(lobbies, bank, store, policy)
	s.now = now
	return s
}

// CreateLobby generates a fresh code, creates the lobby and seats the host.
// Code-space exhaustion is the only failure and is operator-fatal.
func (s *LobbyService) CreateLobby(ctx context.Context, name, hostNickname string) (code, hostID string, err error) {
	hostID = uuid.NewString()
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code = generateCode()
		lobby := newLobby(code, name, s.policy, s.now)
		if !s.lobbies.Put(code, lobby) {
			continue
		}
		if err := lobby.addPlayer(hostID, hostNickname, domain.RoleHost); err != nil {
			return "", "", err
		}
		s.persist(lobby)
		return code, hostID, nil
	}
	return "", "", domain.ErrCodeSpaceExhausted
}

// Join seats a new participant. Joining is only open while no round is
// running or while questions are still being collected, so a newcomer is
// never asked to answer a question they did not see asked.
func (s *LobbyService) Join(ctx context.Context, code, nickname string) (string, error) {
	lobby, ok := s.lobbies.Get(code)
	if !ok {
		return "", domain.ErrLobbyNotFound
	}
	playerID := uuid.NewString()
	if err := lobby.addPlayer(playerID, nickname, domain.RoleParticipant); err != nil {
		return "", err
	}
	s.persist(lobby)
	return playerID, nil
}

// Reconnect restores liveness for an existing player without minting a new one.
func (s *LobbyService) Reconnect(ctx context.Context, code, playerID string) error {
	lobby, ok := s.lobbies.Get(code)
	if !ok {
		return domain.ErrLobbyNotFound
	}
	return lobby.Reconnect(playerID)
}

// Disconnect marks the player offline; their submitted state stays intact.
func (s *LobbyService) Disconnect(code, playerID string) {
	lobby, ok := s.lobbies.Get(code)
	if !ok {
		return
	}
	lobby.Disconnect(playerID)
}

// Dispatch is the single entry point for gameplay actions. It validates the
// actor and phase, applies the action atomically inside the lobby's
// serialization unit, and returns the resulting snapshot.
func (s *LobbyService) Dispatch(ctx context.Context, code, playerID string, action Action) (domain.Snapshot, error) {
	lobby, ok := s.lobbies.Get(code)
	if !ok {
		return domain.Snapshot{}, domain.ErrLobbyNotFound
	}

	var err error
	switch action.Type {
	case ActionStartGame:
		err = lobby.StartGame(playerID)
	case ActionSubmitQuestion:
		err = s.submitQuestion(ctx, lobby, playerID, action.Question)
	case ActionStartRound:
		err = lobby.StartRound(playerID, s.lockedRng(), action.Force)
	case ActionSubmitAnswer:
		err = lobby.SubmitAnswer(playerID, action.Choice)
	case ActionForceReveal:
		err = lobby.ForceReveal(playerID)
	case ActionNextQuestion:
		err = lobby.NextQuestion(playerID)
	case ActionNextRound:
		err = lobby.NextRound(playerID)
	case ActionEndGame:
		err = lobby.EndGame(playerID)
	default:
		err = domain.ErrIllegalAction
	}
	if err != nil {
		return domain.Snapshot{}, err
	}
	s.persist(lobby)
	return lobby.Snapshot(), nil
}

func (s *LobbyService) submitQuestion(ctx context.Context, lobby *Lobby, playerID string, payload *QuestionPayload) error {
	if payload == nil {
		return domain.ErrInvalidQuestion
	}
	q := domain.Question{
		Prompt:        strings.TrimSpace(payload.Prompt),
		CorrectAnswer: strings.TrimSpace(payload.CorrectAnswer),
		Distractors:   payload.Distractors,
		ShuffleSeed:   s.seed(),
	}
	if payload.TemplateID != "" {
		tpl, err := s.bank.GetTemplate(ctx, payload.TemplateID)
		if err != nil {
			return err
		}
		q.Prompt = tpl.Prompt
		q.CorrectAnswer = tpl.CorrectAnswer
		q.Distractors = append([]string(nil), tpl.Distractors...)
	}
	if q.Prompt == "" || q.CorrectAnswer == "" || len(q.Distractors) != 3 {
		return domain.ErrInvalidQuestion
	}
	if err := lobby.SubmitQuestion(playerID, q); err != nil {
		return err
	}
	if payload.TemplateID != "" {
		lobby.markTemplateUsed(payload.TemplateID)
	}
	return nil
}

// Subscribe returns a channel of lobby snapshots, current state first.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *LobbyService) Subscribe(code string) (<-chan domain.Snapshot, func(), error) {
	lobby, ok := s.lobbies.Get(code)
	if !ok {
		return nil, nil, domain.ErrLobbyNotFound
	}
	ch, cancel := lobby.Subscribe()
	return ch, cancel, nil
}

// Snapshot returns the lobby's current state for read-only consumers.
func (s *LobbyService) Snapshot(code string) (domain.Snapshot, error) {
	lobby, ok := s.lobbies.Get(code)
	if !ok {
		return domain.Snapshot{}, domain.ErrLobbyNotFound
	}
	return lobby.Snapshot(), nil
}

// Categories exposes the bank's category list.
func (s *LobbyService) Categories(ctx context.Context) ([]string, error) {
	return s.bank.ListCategories(ctx)
}

// Templates lists bank templates for a category, minus the ones already
// used in this lobby so the same question is never offered twice.
func (s *LobbyService) Templates(ctx context.Context, code, category string) ([]domain.Template, error) {
	lobby, ok := s.lobbies.Get(code)
	if !ok {
		return nil, domain.ErrLobbyNotFound
	}
	all, err := s.bank.ListTemplates(ctx, category)
	if err != nil {
		return nil, err
	}
	available := make([]domain.Template, 0, len(all))
	for _, tpl := range all {
		if !lobby.templateUsed(tpl.ID) {
			available = append(available, tpl)
		}
	}
	return available, nil
}

// Restore rebuilds lobbies from the snapshot store after a restart.
func (s *LobbyService) Restore(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	states, err := s.store.LoadAll(ctx)
	if err != nil {
		return err
	}
	for _, st := range states {
		s.lobbies.Adopt(st.Code, RestoreLobby(st, s.policy, s.now))
	}
	if len(states) > 0 {
		log.Printf("restored %d lobbies from snapshot store", len(states))
	}
	return nil
}

// Run drives the background workers: the best-effort snapshot persister and
// the janitor that collects idle or ended lobbies. Returns when ctx is done.
func (s *LobbyService) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case state := <-s.saveCh:
			saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := s.store.Save(saveCtx, state); err != nil {
				log.Printf("snapshot save failed for lobby %s: %v", state.Code, err)
			}
			cancel()
		case <-ticker.C:
			s.sweep()
		}
	}
}

// persist enqueues a state snapshot for the background saver. Delivery is
// best-effort so persistence can never block a lobby's action stream.
func (s *LobbyService) persist(lobby *Lobby) {
	if s.store == nil {
		return
	}
	select {
	case s.saveCh <- lobby.ExportState():
	default:
	}
}

func (s *LobbyService) sweep() {
	now := s.now()
	var stale []string
	s.lobbies.Range(func(lobby *Lobby) bool {
		if lobby.idleSince(now, s.policy.LobbyIdleTTL) {
			stale = append(stale, lobby.Code())
		}
		return true
	})
	for _, code := range stale {
		s.lobbies.Delete(code)
		log.Printf("collected idle lobby %s", code)
	}
}

func (s *LobbyService) lockedRng() *mathrand.Rand {
	// Round shuffles run under the lobby lock but the source is shared, so
	// hand out a derived source instead of the shared one.
	return mathrand.New(mathrand.NewSource(s.seed()))
}

func (s *LobbyService) seed() int64 {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.rng.Int63()
}

// generateCode mints a short human-typeable lobby code: six uppercase hex
// characters, collision-checked against live lobbies by the caller.
func generateCode() string {
	b := make([]byte, 3)
	rand.Read(b)
	return strings.ToUpper(hex.EncodeToString(b))
}
