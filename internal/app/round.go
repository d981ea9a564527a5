package app

import (
	"math/rand"
	"time"

	"trivia-session-service/internal/domain"
)

// round owns one round's lifecycle: its phase, the submitted questions, the
// answers per question, and the running per-question point tally. All
// methods are called with the owning lobby's lock held, so nothing here
// synchronizes on its own.
type round struct {
	number       int
	phase        domain.Phase
	questions    []domain.Question
	currentIndex int
	answers      map[int][]domain.Answer
	nextOrdinal  int
	deltas       map[string]int
	phaseEntered time.Time
}

func newRound(number int, now time.Time) *round {
	return &round{
		number:       number,
		phase:        domain.PhaseQuestionSubmission,
		currentIndex: -1,
		answers:      make(map[int][]domain.Answer),
		deltas:       make(map[string]int),
		phaseEntered: now,
	}
}

func (r *round) enterPhase(p domain.Phase, now time.Time) {
	r.phase = p
	r.phaseEntered = now
}

// submitQuestion records a player's question. While submission is open a
// resubmission overwrites the prior one instead of adding a second.
func (r *round) submitQuestion(q domain.Question) error {
	if r.phase != domain.PhaseQuestionSubmission {
		return domain.ErrIllegalAction
	}
	for i := range r.questions {
		if r.questions[i].AuthorID == q.AuthorID {
			r.questions[i] = q
			return nil
		}
	}
	r.questions = append(r.questions, q)
	return nil
}

func (r *round) hasSubmitted(playerID string) bool {
	for i := range r.questions {
		if r.questions[i].AuthorID == playerID {
			return true
		}
	}
	return false
}

// pendingSubmitters returns the connected players who have not submitted
// yet. A disconnected player's missing submission never blocks the host.
func (r *round) pendingSubmitters(players []domain.Player) []string {
	var pending []string
	for _, p := range players {
		if p.Connected && !r.hasSubmitted(p.ID) {
			pending = append(pending, p.ID)
		}
	}
	return pending
}

// start shuffles question display order and moves to answering. force skips
// the pending-submission check; the caller enforces the grace policy.
func (r *round) start(players []domain.Player, rng *rand.Rand, force bool, now time.Time) error {
	if r.phase != domain.PhaseQuestionSubmission {
		return domain.ErrIllegalAction
	}
	if len(r.questions) == 0 {
		return domain.ErrPendingSubmissions
	}
	if !force && len(r.pendingSubmitters(players)) > 0 {
		return domain.ErrPendingSubmissions
	}
	rng.Shuffle(len(r.questions), func(i, j int) {
		r.questions[i], r.questions[j] = r.questions[j], r.questions[i]
	})
	r.currentIndex = 0
	r.nextOrdinal = 0
	r.enterPhase(domain.PhaseAnswering, now)
	return nil
}

func (r *round) currentQuestion() *domain.Question {
	if r.currentIndex < 0 || r.currentIndex >= len(r.questions) {
		return nil
	}
	return &r.questions[r.currentIndex]
}

// submitAnswer records one answer for the current question and reports
// whether every eligible player has now answered. The author can never
// answer their own question, and second answers are rejected.
func (r *round) submitAnswer(playerID, choice string, eligible int, now time.Time) (complete bool, err error) {
	if r.phase != domain.PhaseAnswering {
		return false, domain.ErrIllegalAction
	}
	q := r.currentQuestion()
	if q == nil {
		return false, domain.ErrIllegalAction
	}
	if playerID == q.AuthorID {
		return false, domain.ErrOwnQuestion
	}
	for _, a := range r.answers[r.currentIndex] {
		if a.PlayerID == playerID {
			return false, domain.ErrDuplicateSubmission
		}
	}
	r.answers[r.currentIndex] = append(r.answers[r.currentIndex], domain.Answer{
		PlayerID: playerID,
		Choice:   choice,
		Correct:  choice == q.CorrectAnswer,
		Ordinal:  r.nextOrdinal,
	})
	r.nextOrdinal++
	return len(r.answers[r.currentIndex]) >= eligible, nil
}

// reveal scores the current question and merges the deltas into the round
// tally. Called on auto-completion or on the host's forceReveal override.
func (r *round) reveal(base, bonusStep int, now time.Time) error {
	if r.phase != domain.PhaseAnswering {
		return domain.ErrIllegalAction
	}
	q := r.currentQuestion()
	if q == nil {
		return domain.ErrIllegalAction
	}
	for id, pts := range ScoreQuestion(*q, r.answers[r.currentIndex], base, bonusStep) {
		r.deltas[id] += pts
	}
	r.enterPhase(domain.PhaseResults, now)
	return nil
}

// next advances past the current question: back to answering if questions
// remain, otherwise to the scoreboard. The question index only ever moves
// forward.
func (r *round) next(now time.Time) (finished bool, err error) {
	if r.phase != domain.PhaseResults {
		return false, domain.ErrIllegalAction
	}
	if r.currentIndex+1 < len(r.questions) {
		r.currentIndex++
		r.nextOrdinal = 0
		r.enterPhase(domain.PhaseAnswering, now)
		return false, nil
	}
	r.enterPhase(domain.PhaseScoreboard, now)
	return true, nil
}

func (r *round) distribution() []domain.AnswerStat {
	var stats []domain.AnswerStat
	for _, a := range r.answers[r.currentIndex] {
		found := false
		for i := range stats {
			if stats[i].Choice == a.Choice {
				stats[i].Count++
				found = true
				break
			}
		}
		if !found {
			stats = append(stats, domain.AnswerStat{Choice: a.Choice, Count: 1})
		}
	}
	return stats
}

func (r *round) export() *domain.RoundState {
	answers := make(map[int][]domain.Answer, len(r.answers))
	for k, v := range r.answers {
		answers[k] = append([]domain.Answer(nil), v...)
	}
	deltas := make(map[string]int, len(r.deltas))
	for k, v := range r.deltas {
		deltas[k] = v
	}
	return &domain.RoundState{
		Number:       r.number,
		Phase:        r.phase,
		Questions:    append([]domain.Question(nil), r.questions...),
		CurrentIndex: r.currentIndex,
		Answers:      answers,
		Deltas:       deltas,
	}
}

func restoreRound(st *domain.RoundState, now time.Time) *round {
	r := newRound(st.Number, now)
	r.phase = st.Phase
	r.questions = append([]domain.Question(nil), st.Questions...)
	r.currentIndex = st.CurrentIndex
	for k, v := range st.Answers {
		r.answers[k] = append([]domain.Answer(nil), v...)
		if k == st.CurrentIndex {
			for _, a := range v {
				if a.Ordinal >= r.nextOrdinal {
					r.nextOrdinal = a.Ordinal + 1
				}
			}
		}
	}
	for k, v := range st.Deltas {
		r.deltas[k] = v
	}
	return r
}
