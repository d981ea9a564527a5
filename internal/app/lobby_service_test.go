package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"trivia-session-service/internal/app"
	"trivia-session-service/internal/domain"
	"trivia-session-service/internal/infra/memory"
)

func testPolicy() app.Policy {
	p := app.DefaultPolicy()
	p.ForceStartGrace = 0
	return p
}

func newTestService(t *testing.T, policy app.Policy) (*app.LobbyService, *memory.LobbyStore) {
	t.Helper()
	store := memory.NewLobbyStore()
	bank := memory.NewTemplateBank(memory.NewStaticTemplateLoader(memory.BuiltinTemplates()), 5*time.Minute)
	return app.NewLobbyService(store, bank, nil, policy), store
}

func question(prompt, correct string, distractors ...string) *app.QuestionPayload {
	if len(distractors) == 0 {
		distractors = []string{prompt + "-w1", prompt + "-w2", prompt + "-w3"}
	}
	return &app.QuestionPayload{Prompt: prompt, CorrectAnswer: correct, Distractors: distractors}
}

func dispatch(t *testing.T, svc *app.LobbyService, code, playerID string, action app.Action) domain.Snapshot {
	t.Helper()
	snap, err := svc.Dispatch(context.Background(), code, playerID, action)
	if err != nil {
		t.Fatalf("dispatch %s failed: %v", action.Type, err)
	}
	return snap
}

// setupSubmittedRound creates a two-player lobby with both questions in.
func setupSubmittedRound(t *testing.T, svc *app.LobbyService) (code, hostID, playerID string) {
	t.Helper()
	ctx := context.Background()

	code, hostID, err := svc.CreateLobby(ctx, "Trivia Night", "Hannah")
	if err != nil {
		t.Fatalf("create lobby: %v", err)
	}
	playerID, err = svc.Join(ctx, code, "Pat")
	if err != nil {
		t.Fatalf("join lobby: %v", err)
	}

	dispatch(t, svc, code, hostID, app.Action{Type: app.ActionStartGame})
	dispatch(t, svc, code, hostID, app.Action{Type: app.ActionSubmitQuestion, Question: question("host question", "host-correct")})
	dispatch(t, svc, code, playerID, app.Action{Type: app.ActionSubmitQuestion, Question: question("player question", "player-correct")})
	return code, hostID, playerID
}

func TestCreateLobbySeatsHost(t *testing.T) {
	svc, _ := newTestService(t, testPolicy())

	code, hostID, err := svc.CreateLobby(context.Background(), "Friday Quiz", "Hannah")
	if err != nil {
		t.Fatalf("create lobby: %v", err)
	}
	if len(code) != 6 {
		t.Fatalf("expected 6-char lobby code, got %q", code)
	}

	snap, err := svc.Snapshot(code)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.Phase != domain.PhaseLobby {
		t.Fatalf("expected lobby phase, got %s", snap.Phase)
	}
	if len(snap.Players) != 1 || snap.Players[0].ID != hostID || snap.Players[0].Role != domain.RoleHost {
		t.Fatalf("expected single host player, got %+v", snap.Players)
	}
}

func TestStartGameRequiresTwoPlayers(t *testing.T) {
	svc, _ := newTestService(t, testPolicy())
	code, hostID, err := svc.CreateLobby(context.Background(), "Solo", "Hannah")
	if err != nil {
		t.Fatalf("create lobby: %v", err)
	}

	_, err = svc.Dispatch(context.Background(), code, hostID, app.Action{Type: app.ActionStartGame})
	if !errors.Is(err, domain.ErrInsufficientPlayers) {
		t.Fatalf("expected ErrInsufficientPlayers, got %v", err)
	}
}

func TestHostOnlyActionsRejectParticipants(t *testing.T) {
	svc, _ := newTestService(t, testPolicy())
	ctx := context.Background()
	code, _, err := svc.CreateLobby(ctx, "Quiz", "Hannah")
	if err != nil {
		t.Fatalf("create lobby: %v", err)
	}
	playerID, err := svc.Join(ctx, code, "Pat")
	if err != nil {
		t.Fatalf("join: %v", err)
	}

	_, err = svc.Dispatch(ctx, code, playerID, app.Action{Type: app.ActionStartGame})
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestStartRoundBlockedOnPendingSubmissions(t *testing.T) {
	svc, _ := newTestService(t, testPolicy())
	ctx := context.Background()

	code, hostID, err := svc.CreateLobby(ctx, "Quiz", "Hannah")
	if err != nil {
		t.Fatalf("create lobby: %v", err)
	}
	playerID, err := svc.Join(ctx, code, "Pat")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	dispatch(t, svc, code, hostID, app.Action{Type: app.ActionStartGame})
	dispatch(t, svc, code, hostID, app.Action{Type: app.ActionSubmitQuestion, Question: question("only the host submitted", "yes")})

	_, err = svc.Dispatch(ctx, code, hostID, app.Action{Type: app.ActionStartRound})
	if !errors.Is(err, domain.ErrPendingSubmissions) {
		t.Fatalf("expected ErrPendingSubmissions, got %v", err)
	}

	// A disconnected player's missing submission does not block the host.
	svc.Disconnect(code, playerID)
	dispatch(t, svc, code, hostID, app.Action{Type: app.ActionStartRound})

	snap, _ := svc.Snapshot(code)
	if snap.Phase != domain.PhaseAnswering {
		t.Fatalf("expected answering after start, got %s", snap.Phase)
	}
}

func TestForceStartRespectsGracePeriod(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	policy := testPolicy()
	policy.ForceStartGrace = time.Minute

	store := memory.NewLobbyStore()
	bank := memory.NewTemplateBank(memory.NewStaticTemplateLoader(memory.BuiltinTemplates()), 5*time.Minute)
	svc := app.NewLobbyServiceWithClock(store, bank, nil, policy, clock.Now)

	ctx := context.Background()
	code, hostID, err := svc.CreateLobby(ctx, "Quiz", "Hannah")
	if err != nil {
		t.Fatalf("create lobby: %v", err)
	}
	if _, err := svc.Join(ctx, code, "Pat"); err != nil {
		t.Fatalf("join: %v", err)
	}
	dispatch(t, svc, code, hostID, app.Action{Type: app.ActionStartGame})
	dispatch(t, svc, code, hostID, app.Action{Type: app.ActionSubmitQuestion, Question: question("host question", "yes")})

	// Force before the grace period elapses still waits for submissions.
	_, err = svc.Dispatch(ctx, code, hostID, app.Action{Type: app.ActionStartRound, Force: true})
	if !errors.Is(err, domain.ErrPendingSubmissions) {
		t.Fatalf("expected ErrPendingSubmissions before grace, got %v", err)
	}

	clock.Advance(2 * time.Minute)
	dispatch(t, svc, code, hostID, app.Action{Type: app.ActionStartRound, Force: true})

	snap, _ := svc.Snapshot(code)
	if snap.Phase != domain.PhaseAnswering {
		t.Fatalf("expected answering after forced start, got %s", snap.Phase)
	}
}

func TestResubmissionOverwritesQuestion(t *testing.T) {
	svc, _ := newTestService(t, testPolicy())
	code, hostID, playerID := setupSubmittedRound(t, svc)

	snap := dispatch(t, svc, code, hostID, app.Action{Type: app.ActionSubmitQuestion, Question: question("host question revised", "still-correct")})
	if snap.SubmittedCount != 2 {
		t.Fatalf("resubmission must overwrite, expected 2 submissions, got %d", snap.SubmittedCount)
	}

	dispatch(t, svc, code, hostID, app.Action{Type: app.ActionStartRound})

	prompts := make(map[string]bool)
	for i := 0; i < 2; i++ {
		snap, _ := svc.Snapshot(code)
		q := snap.CurrentQuestion
		if q == nil {
			t.Fatalf("expected a current question in phase %s", snap.Phase)
		}
		prompts[q.Prompt] = true

		respondent := playerID
		if q.AuthorID == playerID {
			respondent = hostID
		}
		dispatch(t, svc, code, respondent, app.Action{Type: app.ActionSubmitAnswer, Choice: q.Choices[0]})
		dispatch(t, svc, code, hostID, app.Action{Type: app.ActionNextQuestion})
	}

	if prompts["host question"] {
		t.Fatalf("overwritten question still present: %v", prompts)
	}
	if !prompts["host question revised"] {
		t.Fatalf("revised question missing: %v", prompts)
	}
}

func TestJoinClosedOncePlaying(t *testing.T) {
	svc, _ := newTestService(t, testPolicy())
	code, hostID, _ := setupSubmittedRound(t, svc)

	// Joining during question submission is still allowed.
	larryID, err := svc.Join(context.Background(), code, "Late Larry")
	if err != nil {
		t.Fatalf("join during submission should work: %v", err)
	}
	dispatch(t, svc, code, larryID, app.Action{Type: app.ActionSubmitQuestion, Question: question("larry filler", "ok")})
	dispatch(t, svc, code, hostID, app.Action{Type: app.ActionStartRound})

	_, err = svc.Join(context.Background(), code, "Too Late Tina")
	if !errors.Is(err, domain.ErrRoundInProgress) {
		t.Fatalf("expected ErrRoundInProgress once answering, got %v", err)
	}
}

func TestJoinUnknownLobby(t *testing.T) {
	svc, _ := newTestService(t, testPolicy())
	_, err := svc.Join(context.Background(), "ZZZZZZ", "Pat")
	if !errors.Is(err, domain.ErrLobbyNotFound) {
		t.Fatalf("expected ErrLobbyNotFound, got %v", err)
	}
}

func TestAuthorCannotAnswerOwnQuestion(t *testing.T) {
	svc, _ := newTestService(t, testPolicy())
	code, hostID, _ := setupSubmittedRound(t, svc)
	dispatch(t, svc, code, hostID, app.Action{Type: app.ActionStartRound})

	snap, _ := svc.Snapshot(code)
	author := snap.CurrentQuestion.AuthorID
	_, err := svc.Dispatch(context.Background(), code, author, app.Action{Type: app.ActionSubmitAnswer, Choice: snap.CurrentQuestion.Choices[0]})
	if !errors.Is(err, domain.ErrOwnQuestion) {
		t.Fatalf("expected ErrOwnQuestion, got %v", err)
	}
}

func TestDuplicateAnswerRejected(t *testing.T) {
	svc, _ := newTestService(t, testPolicy())
	ctx := context.Background()

	code, hostID, err := svc.CreateLobby(ctx, "Quiz", "Hannah")
	if err != nil {
		t.Fatalf("create lobby: %v", err)
	}
	p2, _ := svc.Join(ctx, code, "Pat")
	p3, _ := svc.Join(ctx, code, "Quinn")

	dispatch(t, svc, code, hostID, app.Action{Type: app.ActionStartGame})
	for _, id := range []string{hostID, p2, p3} {
		dispatch(t, svc, code, id, app.Action{Type: app.ActionSubmitQuestion, Question: question("q-"+id, "right-"+id)})
	}
	dispatch(t, svc, code, hostID, app.Action{Type: app.ActionStartRound})

	snap, _ := svc.Snapshot(code)
	respondent := p2
	if snap.CurrentQuestion.AuthorID == p2 {
		respondent = p3
	}
	dispatch(t, svc, code, respondent, app.Action{Type: app.ActionSubmitAnswer, Choice: snap.CurrentQuestion.Choices[0]})

	_, err = svc.Dispatch(ctx, code, respondent, app.Action{Type: app.ActionSubmitAnswer, Choice: snap.CurrentQuestion.Choices[1]})
	if !errors.Is(err, domain.ErrDuplicateSubmission) {
		t.Fatalf("expected ErrDuplicateSubmission, got %v", err)
	}
}

// TestForceRevealScoresPartialAnswers covers the host override for a
// stalled question: only one of two eligible players has answered when the
// host reveals, and the partial answer set is scored as-is.
func TestForceRevealScoresPartialAnswers(t *testing.T) {
	svc, _ := newTestService(t, testPolicy())
	ctx := context.Background()

	code, hostID, err := svc.CreateLobby(ctx, "Quiz", "Hannah")
	if err != nil {
		t.Fatalf("create lobby: %v", err)
	}
	p2, _ := svc.Join(ctx, code, "Pat")
	p3, _ := svc.Join(ctx, code, "Quinn")

	dispatch(t, svc, code, hostID, app.Action{Type: app.ActionStartGame})
	for _, id := range []string{hostID, p2, p3} {
		dispatch(t, svc, code, id, app.Action{Type: app.ActionSubmitQuestion, Question: question("q-"+id, "right-"+id)})
	}
	dispatch(t, svc, code, hostID, app.Action{Type: app.ActionStartRound})

	snap, _ := svc.Snapshot(code)
	author := snap.CurrentQuestion.AuthorID
	correct := "right-" + author
	answerer := p2
	if author == p2 {
		answerer = p3
	}
	dispatch(t, svc, code, answerer, app.Action{Type: app.ActionSubmitAnswer, Choice: correct})

	// One eligible player is still missing, so the host steps in.
	snap, _ = svc.Snapshot(code)
	if snap.Phase != domain.PhaseAnswering {
		t.Fatalf("question must still be open before the override, got %s", snap.Phase)
	}
	snap = dispatch(t, svc, code, hostID, app.Action{Type: app.ActionForceReveal})

	if snap.Phase != domain.PhaseResults {
		t.Fatalf("expected results after forceReveal, got %s", snap.Phase)
	}
	if snap.CurrentQuestion.CorrectAnswer != correct {
		t.Fatalf("reveal must expose the correct answer, got %q", snap.CurrentQuestion.CorrectAnswer)
	}
	dist := snap.CurrentQuestion.Distribution
	if len(dist) != 1 || dist[0].Choice != correct || dist[0].Count != 1 {
		t.Fatalf("expected a one-entry distribution for the single answer, got %+v", dist)
	}

	deltas := make(map[string]int)
	for _, e := range snap.Scoreboard.Entries {
		deltas[e.PlayerID] = e.RoundDelta
	}
	if deltas[answerer] != 100 {
		t.Fatalf("expected the sole correct answer to score 100, got %d", deltas[answerer])
	}
	for id, delta := range deltas {
		if id != answerer && delta != 0 {
			t.Fatalf("player %s scored %d without answering", id, delta)
		}
	}

	// A second reveal for the same question is rejected.
	_, err = svc.Dispatch(ctx, code, hostID, app.Action{Type: app.ActionForceReveal})
	if !errors.Is(err, domain.ErrIllegalAction) {
		t.Fatalf("expected ErrIllegalAction for a repeated reveal, got %v", err)
	}
}

func TestNextRoundFromResultsIsIllegal(t *testing.T) {
	svc, _ := newTestService(t, testPolicy())
	code, hostID, playerID := setupSubmittedRound(t, svc)
	dispatch(t, svc, code, hostID, app.Action{Type: app.ActionStartRound})

	snap, _ := svc.Snapshot(code)
	respondent := playerID
	if snap.CurrentQuestion.AuthorID == playerID {
		respondent = hostID
	}
	dispatch(t, svc, code, respondent, app.Action{Type: app.ActionSubmitAnswer, Choice: snap.CurrentQuestion.Choices[0]})

	snap, _ = svc.Snapshot(code)
	if snap.Phase != domain.PhaseResults {
		t.Fatalf("expected results after the only eligible answer, got %s", snap.Phase)
	}
	_, err := svc.Dispatch(context.Background(), code, hostID, app.Action{Type: app.ActionNextRound})
	if !errors.Is(err, domain.ErrIllegalAction) {
		t.Fatalf("expected ErrIllegalAction for nextRound during results, got %v", err)
	}
}

// TestFullRoundScenario plays the canonical two-player game: Pat answers
// Hannah's question correctly, Hannah answers Pat's incorrectly, and Pat
// ends up as the sole overall leader.
func TestFullRoundScenario(t *testing.T) {
	svc, _ := newTestService(t, testPolicy())
	code, hostID, playerID := setupSubmittedRound(t, svc)
	dispatch(t, svc, code, hostID, app.Action{Type: app.ActionStartRound})

	correctFor := map[string]string{hostID: "host-correct", playerID: "player-correct"}
	for i := 0; i < 2; i++ {
		snap, _ := svc.Snapshot(code)
		q := snap.CurrentQuestion
		if snap.Phase != domain.PhaseAnswering || q == nil {
			t.Fatalf("expected answering with a question, got phase %s", snap.Phase)
		}

		if q.AuthorID == hostID {
			// Pat answers Hannah's question correctly.
			dispatch(t, svc, code, playerID, app.Action{Type: app.ActionSubmitAnswer, Choice: correctFor[hostID]})
		} else {
			// Hannah answers Pat's question incorrectly.
			wrong := ""
			for _, c := range q.Choices {
				if c != correctFor[playerID] {
					wrong = c
					break
				}
			}
			dispatch(t, svc, code, hostID, app.Action{Type: app.ActionSubmitAnswer, Choice: wrong})
		}

		snap, _ = svc.Snapshot(code)
		if snap.Phase != domain.PhaseResults {
			t.Fatalf("expected auto-reveal after last eligible answer, got %s", snap.Phase)
		}
		if snap.CurrentQuestion.CorrectAnswer == "" {
			t.Fatalf("results snapshot must reveal the correct answer")
		}
		dispatch(t, svc, code, hostID, app.Action{Type: app.ActionNextQuestion})
	}

	snap, _ := svc.Snapshot(code)
	if snap.Phase != domain.PhaseScoreboard {
		t.Fatalf("expected scoreboard after last question, got %s", snap.Phase)
	}
	board := snap.Scoreboard
	if board == nil {
		t.Fatalf("expected a scoreboard in the snapshot")
	}

	totals := make(map[string]int)
	for _, e := range board.Entries {
		totals[e.PlayerID] = e.Total
	}
	if totals[playerID] <= totals[hostID] {
		t.Fatalf("expected Pat to outscore Hannah, got pat=%d hannah=%d", totals[playerID], totals[hostID])
	}
	if len(board.Leaders) != 1 || board.Leaders[0] != playerID {
		t.Fatalf("expected Pat as sole overall leader, got %v", board.Leaders)
	}
}

func TestTiedLeadersReportedAsSet(t *testing.T) {
	svc, _ := newTestService(t, testPolicy())
	code, hostID, playerID := setupSubmittedRound(t, svc)
	dispatch(t, svc, code, hostID, app.Action{Type: app.ActionStartRound})

	correctFor := map[string]string{hostID: "host-correct", playerID: "player-correct"}
	for i := 0; i < 2; i++ {
		snap, _ := svc.Snapshot(code)
		q := snap.CurrentQuestion
		respondent := playerID
		if q.AuthorID == playerID {
			respondent = hostID
		}
		dispatch(t, svc, code, respondent, app.Action{Type: app.ActionSubmitAnswer, Choice: correctFor[q.AuthorID]})
		dispatch(t, svc, code, hostID, app.Action{Type: app.ActionNextQuestion})
	}

	snap, _ := svc.Snapshot(code)
	if len(snap.Scoreboard.Leaders) != 2 {
		t.Fatalf("expected both tied players as leaders, got %v", snap.Scoreboard.Leaders)
	}
}

func TestNextRoundAndEndGame(t *testing.T) {
	svc, _ := newTestService(t, testPolicy())
	code, hostID, playerID := setupSubmittedRound(t, svc)
	dispatch(t, svc, code, hostID, app.Action{Type: app.ActionStartRound})

	for i := 0; i < 2; i++ {
		snap, _ := svc.Snapshot(code)
		respondent := playerID
		if snap.CurrentQuestion.AuthorID == playerID {
			respondent = hostID
		}
		dispatch(t, svc, code, respondent, app.Action{Type: app.ActionSubmitAnswer, Choice: snap.CurrentQuestion.Choices[0]})
		dispatch(t, svc, code, hostID, app.Action{Type: app.ActionNextQuestion})
	}

	snap := dispatch(t, svc, code, hostID, app.Action{Type: app.ActionNextRound})
	if snap.Phase != domain.PhaseQuestionSubmission || snap.RoundNumber != 2 {
		t.Fatalf("expected round 2 submission phase, got round %d phase %s", snap.RoundNumber, snap.Phase)
	}
	if snap.SubmittedCount != 0 {
		t.Fatalf("new round must clear submissions, got %d", snap.SubmittedCount)
	}

	// Round 2, ended from the scoreboard.
	dispatch(t, svc, code, hostID, app.Action{Type: app.ActionSubmitQuestion, Question: question("round2 host", "a")})
	dispatch(t, svc, code, playerID, app.Action{Type: app.ActionSubmitQuestion, Question: question("round2 player", "b")})
	dispatch(t, svc, code, hostID, app.Action{Type: app.ActionStartRound})
	for i := 0; i < 2; i++ {
		cur, _ := svc.Snapshot(code)
		respondent := playerID
		if cur.CurrentQuestion.AuthorID == playerID {
			respondent = hostID
		}
		dispatch(t, svc, code, respondent, app.Action{Type: app.ActionSubmitAnswer, Choice: cur.CurrentQuestion.Choices[0]})
		dispatch(t, svc, code, hostID, app.Action{Type: app.ActionNextQuestion})
	}

	snap = dispatch(t, svc, code, hostID, app.Action{Type: app.ActionEndGame})
	if snap.Phase != domain.PhaseEnded {
		t.Fatalf("expected ended phase, got %s", snap.Phase)
	}

	_, err := svc.Dispatch(context.Background(), code, hostID, app.Action{Type: app.ActionNextRound})
	if !errors.Is(err, domain.ErrIllegalAction) {
		t.Fatalf("ended lobby must be read-only, got %v", err)
	}
}

func TestReconnectKeepsIdentityAndState(t *testing.T) {
	svc, _ := newTestService(t, testPolicy())
	code, _, playerID := setupSubmittedRound(t, svc)

	svc.Disconnect(code, playerID)
	snap, _ := svc.Snapshot(code)
	for _, p := range snap.Players {
		if p.ID == playerID && p.Connected {
			t.Fatalf("expected player disconnected")
		}
	}
	// Submission survives the disconnect.
	if snap.SubmittedCount != 2 {
		t.Fatalf("disconnect must not drop submitted state, got %d", snap.SubmittedCount)
	}

	if err := svc.Reconnect(context.Background(), code, playerID); err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	snap, _ = svc.Snapshot(code)
	if len(snap.Players) != 2 {
		t.Fatalf("reconnect must not create a new player, got %d players", len(snap.Players))
	}

	if err := svc.Reconnect(context.Background(), code, "nope"); !errors.Is(err, domain.ErrPlayerNotFound) {
		t.Fatalf("expected ErrPlayerNotFound, got %v", err)
	}
}

func TestDisconnectedHostCannotAct(t *testing.T) {
	svc, _ := newTestService(t, testPolicy())
	code, hostID, _ := setupSubmittedRound(t, svc)

	svc.Disconnect(code, hostID)
	_, err := svc.Dispatch(context.Background(), code, hostID, app.Action{Type: app.ActionStartRound})
	if !errors.Is(err, domain.ErrIllegalAction) {
		t.Fatalf("expected host-only actions frozen while disconnected, got %v", err)
	}

	if err := svc.Reconnect(context.Background(), code, hostID); err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	dispatch(t, svc, code, hostID, app.Action{Type: app.ActionStartRound})
}

func TestSubscribeDeliversSnapshotThenOrderedUpdates(t *testing.T) {
	svc, _ := newTestService(t, testPolicy())
	ctx := context.Background()

	code, hostID, err := svc.CreateLobby(ctx, "Quiz", "Hannah")
	if err != nil {
		t.Fatalf("create lobby: %v", err)
	}

	before, err := svc.Snapshot(code)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	ch, cancel, err := svc.Subscribe(code)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	if _, err := svc.Join(ctx, code, "Pat"); err != nil {
		t.Fatalf("join: %v", err)
	}
	dispatch(t, svc, code, hostID, app.Action{Type: app.ActionStartGame})

	// The initial snapshot must arrive before any of the updates above.
	first := <-ch
	if first.Reason != "snapshot" || first.Revision != before.Revision {
		t.Fatalf("expected initial snapshot at revision %d first, got reason %q revision %d",
			before.Revision, first.Reason, first.Revision)
	}

	last := first.Revision
	for i := 0; i < 2; i++ {
		update := <-ch
		if update.Revision <= last {
			t.Fatalf("revisions must be strictly increasing, got %d after %d", update.Revision, last)
		}
		last = update.Revision
	}
}

func TestSubmitFromTemplateCopiesBankQuestion(t *testing.T) {
	svc, _ := newTestService(t, testPolicy())
	ctx := context.Background()

	code, hostID, err := svc.CreateLobby(ctx, "Quiz", "Hannah")
	if err != nil {
		t.Fatalf("create lobby: %v", err)
	}
	if _, err := svc.Join(ctx, code, "Pat"); err != nil {
		t.Fatalf("join: %v", err)
	}
	dispatch(t, svc, code, hostID, app.Action{Type: app.ActionStartGame})

	snap := dispatch(t, svc, code, hostID, app.Action{
		Type:     app.ActionSubmitQuestion,
		Question: &app.QuestionPayload{TemplateID: "sci-002"},
	})
	if snap.SubmittedCount != 1 {
		t.Fatalf("expected template submission recorded, got %d", snap.SubmittedCount)
	}

	// The used template is no longer offered to this lobby.
	templates, err := svc.Templates(ctx, code, "")
	if err != nil {
		t.Fatalf("templates: %v", err)
	}
	for _, tpl := range templates {
		if tpl.ID == "sci-002" {
			t.Fatalf("used template still offered")
		}
	}

	_, err = svc.Dispatch(ctx, code, hostID, app.Action{
		Type:     app.ActionSubmitQuestion,
		Question: &app.QuestionPayload{TemplateID: "does-not-exist"},
	})
	if !errors.Is(err, domain.ErrTemplateNotFound) {
		t.Fatalf("expected ErrTemplateNotFound, got %v", err)
	}
}

func TestExportAndRestoreLobbyState(t *testing.T) {
	svc, store := newTestService(t, testPolicy())
	code, hostID, playerID := setupSubmittedRound(t, svc)
	dispatch(t, svc, code, hostID, app.Action{Type: app.ActionStartRound})

	lobby, ok := store.Get(code)
	if !ok {
		t.Fatalf("lobby missing from store")
	}
	state := lobby.ExportState()
	if state.Code != code || state.Round == nil || state.Round.Phase != domain.PhaseAnswering {
		t.Fatalf("unexpected exported state: %+v", state)
	}

	restored := app.RestoreLobby(state, testPolicy(), time.Now)
	snap := restored.Snapshot()
	if snap.Phase != domain.PhaseAnswering || snap.Revision != state.Revision {
		t.Fatalf("restored snapshot mismatch: phase=%s revision=%d", snap.Phase, snap.Revision)
	}
	if len(snap.Players) != 2 {
		t.Fatalf("expected both players restored, got %d", len(snap.Players))
	}
	for _, p := range snap.Players {
		if p.Connected {
			t.Fatalf("restored players must start disconnected, got %+v", p)
		}
	}
	if err := restored.Reconnect(playerID); err != nil {
		t.Fatalf("reconnect restored player: %v", err)
	}
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}
