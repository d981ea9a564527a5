package app

import (
	"math/rand"
	"sort"
	"sync"
	"time"

	"trivia-session-service/internal/domain"
)

// Policy collects the tunable game rules. Everything a host could argue
// about lives here instead of being hardcoded.
type Policy struct {
	MinPlayers      int
	BasePoints      int
	SpeedBonusStep  int
	ForceStartGrace time.Duration
	LobbyIdleTTL    time.Duration
}

// DefaultPolicy returns the rules used when config leaves them unset.
func DefaultPolicy() Policy {
	return Policy{
		MinPlayers:      2,
		BasePoints:      100,
		SpeedBonusStep:  10,
		ForceStartGrace: 30 * time.Second,
		LobbyIdleTTL:    2 * time.Hour,
	}
}

// Lobby is one trivia session: its players, the current round, the
// cumulative scoreboard and the subscribers watching it. All mutations for
// one lobby are serialized behind mu; different lobbies never contend.
type Lobby struct {
	code   string
	name   string
	policy Policy
	now    func() time.Time

	mu            sync.Mutex
	players       []*domain.Player
	totals        map[string]int
	round         *round
	revision      uint64
	usedTemplates map[string]struct{}
	lastActivity  time.Time
	subscribers   map[chan domain.Snapshot]struct{}
}

func newLobby(code, name string, policy Policy, now func() time.Time) *Lobby {
	return &Lobby{
		code:          code,
		name:          name,
		policy:        policy,
		now:           now,
		totals:        make(map[string]int),
		usedTemplates: make(map[string]struct{}),
		lastActivity:  now(),
		subscribers:   make(map[chan domain.Snapshot]struct{}),
	}
}

func (l *Lobby) Code() string { return l.code }

func (l *Lobby) phaseLocked() domain.Phase {
	if l.round == nil {
		return domain.PhaseLobby
	}
	return l.round.phase
}

func (l *Lobby) playerLocked(playerID string) (*domain.Player, error) {
	for _, p := range l.players {
		if p.ID == playerID {
			return p, nil
		}
	}
	return nil, domain.ErrPlayerNotFound
}

// requireHostLocked gates host-only actions. A disconnected host cannot
// act until they reconnect; the role itself never migrates.
func (l *Lobby) requireHostLocked(playerID string) error {
	p, err := l.playerLocked(playerID)
	if err != nil {
		return err
	}
	if p.Role != domain.RoleHost {
		return domain.ErrUnauthorized
	}
	if !p.Connected {
		return domain.ErrIllegalAction
	}
	return nil
}

func (l *Lobby) addPlayer(playerID, nickname string, role domain.Role) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.round != nil && l.round.phase != domain.PhaseQuestionSubmission {
		return domain.ErrRoundInProgress
	}
	l.players = append(l.players, &domain.Player{
		ID:        playerID,
		Nickname:  nickname,
		Role:      role,
		Connected: true,
		JoinedAt:  l.now(),
	})
	l.touchLocked("player.joined")
	return nil
}

// Reconnect flips the liveness flag back on. It is idempotent and never
// creates a new player.
func (l *Lobby) Reconnect(playerID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	p, err := l.playerLocked(playerID)
	if err != nil {
		return err
	}
	p.Connected = true
	l.touchLocked("player.reconnected")
	return nil
}

// Disconnect marks the player offline without removing any of their game
// state. Idempotent; an already-applied action is never rolled back.
func (l *Lobby) Disconnect(playerID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	p, err := l.playerLocked(playerID)
	if err != nil {
		return
	}
	p.Connected = false
	l.touchLocked("player.disconnected")
}

// StartGame moves the lobby into its first round of question submission.
func (l *Lobby) StartGame(playerID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.requireHostLocked(playerID); err != nil {
		return err
	}
	if l.round != nil {
		return domain.ErrIllegalAction
	}
	if len(l.players) < l.policy.MinPlayers {
		return domain.ErrInsufficientPlayers
	}
	l.round = newRound(1, l.now())
	l.touchLocked("game.started")
	return nil
}

// SubmitQuestion records (or overwrites) the player's question for the round.
func (l *Lobby) SubmitQuestion(playerID string, q domain.Question) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.playerLocked(playerID); err != nil {
		return err
	}
	if l.round == nil {
		return domain.ErrIllegalAction
	}
	q.AuthorID = playerID
	if err := l.round.submitQuestion(q); err != nil {
		return err
	}
	l.touchLocked("question.submitted")
	return nil
}

// StartRound moves from submission to answering. Without force it blocks
// until every connected player has submitted; with force the host may
// override once the grace period since entering submission has elapsed.
func (l *Lobby) StartRound(playerID string, rng *rand.Rand, force bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.requireHostLocked(playerID); err != nil {
		return err
	}
	if l.round == nil {
		return domain.ErrIllegalAction
	}
	if force && l.now().Sub(l.round.phaseEntered) < l.policy.ForceStartGrace {
		force = false
	}
	if err := l.round.start(l.playersCopyLocked(), rng, force, l.now()); err != nil {
		return err
	}
	l.touchLocked("round.started")
	return nil
}

// SubmitAnswer records one answer; when the last eligible player answers,
// the question is revealed and scored in the same atomic step.
func (l *Lobby) SubmitAnswer(playerID, choice string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.playerLocked(playerID); err != nil {
		return err
	}
	if l.round == nil {
		return domain.ErrIllegalAction
	}
	eligible := len(l.players) - 1
	complete, err := l.round.submitAnswer(playerID, choice, eligible, l.now())
	if err != nil {
		return err
	}
	if complete {
		if err := l.round.reveal(l.policy.BasePoints, l.policy.SpeedBonusStep, l.now()); err != nil {
			return err
		}
		l.touchLocked("question.revealed")
		return nil
	}
	l.touchLocked("answer.submitted")
	return nil
}

// ForceReveal is the host override for a stalled question.
func (l *Lobby) ForceReveal(playerID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.requireHostLocked(playerID); err != nil {
		return err
	}
	if l.round == nil {
		return domain.ErrIllegalAction
	}
	if err := l.round.reveal(l.policy.BasePoints, l.policy.SpeedBonusStep, l.now()); err != nil {
		return err
	}
	l.touchLocked("question.revealed")
	return nil
}

// NextQuestion advances past the revealed question. After the last one the
// round's deltas fold into the cumulative scoreboard exactly once.
func (l *Lobby) NextQuestion(playerID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.requireHostLocked(playerID); err != nil {
		return err
	}
	if l.round == nil {
		return domain.ErrIllegalAction
	}
	finished, err := l.round.next(l.now())
	if err != nil {
		return err
	}
	if finished {
		for id, pts := range l.round.deltas {
			l.totals[id] += pts
		}
		l.touchLocked("round.finished")
		return nil
	}
	l.touchLocked("round.advanced")
	return nil
}

// NextRound clears the per-round state and reopens question submission.
func (l *Lobby) NextRound(playerID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.requireHostLocked(playerID); err != nil {
		return err
	}
	if l.round == nil || l.round.phase != domain.PhaseScoreboard {
		return domain.ErrIllegalAction
	}
	l.round = newRound(l.round.number+1, l.now())
	l.touchLocked("round.created")
	return nil
}

// EndGame moves to the terminal phase; the lobby becomes read-only.
func (l *Lobby) EndGame(playerID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.requireHostLocked(playerID); err != nil {
		return err
	}
	if l.round == nil || l.round.phase != domain.PhaseScoreboard {
		return domain.ErrIllegalAction
	}
	l.round.enterPhase(domain.PhaseEnded, l.now())
	l.touchLocked("game.ended")
	return nil
}

func (l *Lobby) markTemplateUsed(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.usedTemplates[id] = struct{}{}
}

func (l *Lobby) templateUsed(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.usedTemplates[id]
	return ok
}

// Subscribe registers a snapshot channel. The current snapshot is delivered
// before any incremental update so a mid-round subscriber can never
// diverge. The caller must invoke cancel to avoid leaks.
func (l *Lobby) Subscribe() (<-chan domain.Snapshot, func()) {
	ch := make(chan domain.Snapshot, 8)

	l.mu.Lock()
	l.subscribers[ch] = struct{}{}
	// Sent under the lock so no broadcast can slip in ahead of the initial
	// snapshot. The channel is fresh and buffered, so this never blocks.
	ch <- l.snapshotLocked("snapshot")
	l.mu.Unlock()

	cancel := func() {
		l.mu.Lock()
		if _, ok := l.subscribers[ch]; ok {
			delete(l.subscribers, ch)
			close(ch)
		}
		l.mu.Unlock()
	}
	return ch, cancel
}

// Snapshot returns the current state without mutating anything.
func (l *Lobby) Snapshot() domain.Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshotLocked("snapshot")
}

// touchLocked is the single point where a mutation becomes visible:
// revision bump, activity stamp, then one snapshot to every subscriber.
func (l *Lobby) touchLocked(reason string) {
	l.revision++
	l.lastActivity = l.now()
	snap := l.snapshotLocked(reason)
	for ch := range l.subscribers {
		select {
		case ch <- snap:
		default:
			// Slow subscriber: drop its stale snapshot and replace it so
			// broadcast never blocks state mutation.
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}

func (l *Lobby) playersCopyLocked() []domain.Player {
	players := make([]domain.Player, 0, len(l.players))
	for _, p := range l.players {
		players = append(players, *p)
	}
	return players
}

func (l *Lobby) snapshotLocked(reason string) domain.Snapshot {
	snap := domain.Snapshot{
		Code:     l.code,
		Name:     l.name,
		Phase:    l.phaseLocked(),
		Revision: l.revision,
		Reason:   reason,
		Players:  l.playersCopyLocked(),
	}
	r := l.round
	if r == nil {
		return snap
	}
	snap.RoundNumber = r.number

	switch r.phase {
	case domain.PhaseQuestionSubmission:
		snap.SubmittedCount = len(r.questions)
	case domain.PhaseAnswering, domain.PhaseResults:
		if q := r.currentQuestion(); q != nil {
			view := &domain.QuestionView{
				Index:         r.currentIndex,
				Total:         len(r.questions),
				AuthorID:      q.AuthorID,
				Prompt:        q.Prompt,
				Choices:       ShuffledChoices(*q),
				AnsweredCount: len(r.answers[r.currentIndex]),
				TotalExpected: len(l.players) - 1,
			}
			if r.phase == domain.PhaseResults {
				view.CorrectAnswer = q.CorrectAnswer
				view.Distribution = r.distribution()
			}
			snap.CurrentQuestion = view
		}
	}

	switch r.phase {
	case domain.PhaseResults, domain.PhaseScoreboard, domain.PhaseEnded:
		snap.Scoreboard = l.scoreboardLocked()
	}
	return snap
}

// scoreboardLocked builds the cumulative standings with the current round's
// deltas shown separately, and the full set of tied overall leaders.
func (l *Lobby) scoreboardLocked() *domain.Scoreboard {
	board := &domain.Scoreboard{}
	best := 0
	for _, p := range l.players {
		entry := domain.ScoreEntry{
			PlayerID: p.ID,
			Nickname: p.Nickname,
			Total:    l.totals[p.ID],
		}
		if l.round != nil {
			entry.RoundDelta = l.round.deltas[p.ID]
		}
		board.Entries = append(board.Entries, entry)
		if entry.Total > best {
			best = entry.Total
		}
	}
	for _, e := range board.Entries {
		if e.Total == best {
			board.Leaders = append(board.Leaders, e.PlayerID)
		}
	}
	// Highest total first; join order breaks ties so the display is stable
	// between renders.
	sort.SliceStable(board.Entries, func(i, j int) bool {
		return board.Entries[i].Total > board.Entries[j].Total
	})
	return board
}

func (l *Lobby) idleSince(now time.Time, ttl time.Duration) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if ttl <= 0 {
		return false
	}
	return now.Sub(l.lastActivity) > ttl
}

// ExportState serializes the lobby for an external storage collaborator.
func (l *Lobby) ExportState() domain.LobbyState {
	l.mu.Lock()
	defer l.mu.Unlock()

	st := domain.LobbyState{
		Code:     l.code,
		Name:     l.name,
		Revision: l.revision,
		Players:  l.playersCopyLocked(),
		Totals:   make(map[string]int, len(l.totals)),
		SavedAt:  l.now(),
	}
	for id, pts := range l.totals {
		st.Totals[id] = pts
	}
	for id := range l.usedTemplates {
		st.UsedTemplates = append(st.UsedTemplates, id)
	}
	if l.round != nil {
		st.Round = l.round.export()
	}
	return st
}

// RestoreLobby rebuilds a lobby from serialized state. Every player comes
// back disconnected; clients re-establish liveness through Reconnect.
func RestoreLobby(st domain.LobbyState, policy Policy, now func() time.Time) *Lobby {
	l := newLobby(st.Code, st.Name, policy, now)
	l.revision = st.Revision
	for _, p := range st.Players {
		restored := p
		restored.Connected = false
		l.players = append(l.players, &restored)
	}
	for id, pts := range st.Totals {
		l.totals[id] = pts
	}
	for _, id := range st.UsedTemplates {
		l.usedTemplates[id] = struct{}{}
	}
	if st.Round != nil {
		l.round = restoreRound(st.Round, now())
	}
	return l
}
