package app

import (
	"math/rand"
	"sort"

	"trivia-session-service/internal/domain"
)

// ScoreQuestion computes per-player point deltas for one revealed question.
// Correct respondents earn base points plus a speed bonus that shrinks with
// arrival order: the k-th correct respondent (by ordinal) of n earns
// base + bonusStep*(n-1-k). Incorrect respondents earn zero and the author
// earns nothing. Ordinals are assigned under the lobby's serialization
// point, so the result is deterministic for a given set of answers.
func ScoreQuestion(q domain.Question, answers []domain.Answer, base, bonusStep int) map[string]int {
	ordered := make([]domain.Answer, len(answers))
	copy(ordered, answers)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].Ordinal < ordered[j].Ordinal
	})

	correct := 0
	for _, a := range ordered {
		if a.Correct && a.PlayerID != q.AuthorID {
			correct++
		}
	}

	deltas := make(map[string]int, len(ordered))
	rank := 0
	for _, a := range ordered {
		if a.PlayerID == q.AuthorID {
			continue
		}
		if !a.Correct {
			deltas[a.PlayerID] = 0
			continue
		}
		deltas[a.PlayerID] = base + bonusStep*(correct-1-rank)
		rank++
	}
	return deltas
}

// ShuffledChoices returns the question's four options in a randomized but
// stable order: the shuffle is seeded per question, so every client sees
// the same arrangement every time the question is rendered.
func ShuffledChoices(q domain.Question) []string {
	choices := make([]string, 0, len(q.Distractors)+1)
	choices = append(choices, q.CorrectAnswer)
	choices = append(choices, q.Distractors...)

	rng := rand.New(rand.NewSource(q.ShuffleSeed))
	for i := len(choices) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		choices[i], choices[j] = choices[j], choices[i]
	}
	return choices
}
