package domain

import "time"

// Role distinguishes the lobby creator from everyone else.
// Exactly one host exists per lobby and the role never transfers.
type Role string

const (
	RoleHost        Role = "host"
	RoleParticipant Role = "participant"
)

// Phase is the round state machine's current state. PhaseLobby doubles as
// the pre-round state of a lobby that has no round yet.
type Phase string

const (
	PhaseLobby              Phase = "lobby"
	PhaseQuestionSubmission Phase = "submitting"
	PhaseAnswering          Phase = "answering"
	PhaseResults            Phase = "results"
	PhaseScoreboard         Phase = "scoreboard"
	PhaseEnded              Phase = "ended"
)

// Player identity is stable across connection churn; Connected tracks
// liveness separately so a reconnect never mints a new player.
type Player struct {
	ID        string    `json:"id"`
	Nickname  string    `json:"nickname"`
	Role      Role      `json:"role"`
	Connected bool      `json:"connected"`
	JoinedAt  time.Time `json:"joinedAt"`
}

// Question is one player-authored multiple-choice question: one correct
// answer plus three distractors. ShuffleSeed fixes the presentation order
// so every client sees the same arrangement of choices.
type Question struct {
	AuthorID      string   `json:"authorId"`
	Prompt        string   `json:"prompt"`
	CorrectAnswer string   `json:"correctAnswer"`
	Distractors   []string `json:"distractors"`
	ShuffleSeed   int64    `json:"shuffleSeed"`
}

// Answer records one respondent's choice. Ordinal is the arrival position
// relative to the question's reveal, assigned at the lobby's serialization
// point, so scoring tie-breaks are deterministic.
type Answer struct {
	PlayerID string `json:"playerId"`
	Choice   string `json:"choice"`
	Correct  bool   `json:"correct"`
	Ordinal  int    `json:"ordinal"`
}

// AnswerStat holds the count of respondents who picked a specific choice,
// for the distribution shown after a reveal.
type AnswerStat struct {
	Choice string `json:"choice"`
	Count  int    `json:"count"`
}

// QuestionView is the phase-relevant projection of the current question
// broadcast to clients. The correct answer and distribution are only
// populated once the question has been revealed.
type QuestionView struct {
	Index         int          `json:"index"`
	Total         int          `json:"total"`
	AuthorID      string       `json:"authorId"`
	Prompt        string       `json:"prompt"`
	Choices       []string     `json:"choices"`
	AnsweredCount int          `json:"answeredCount"`
	TotalExpected int          `json:"totalExpected"`
	CorrectAnswer string       `json:"correctAnswer,omitempty"`
	Distribution  []AnswerStat `json:"distribution,omitempty"`
}

// ScoreEntry is one scoreboard row.
type ScoreEntry struct {
	PlayerID   string `json:"playerId"`
	Nickname   string `json:"nickname"`
	Total      int    `json:"total"`
	RoundDelta int    `json:"roundDelta"`
}

// Scoreboard carries cumulative totals, the in-flight round deltas, and the
// full set of overall leaders (ties are a set, never an arbitrary pick).
type Scoreboard struct {
	Entries []ScoreEntry `json:"entries"`
	Leaders []string     `json:"leaders"`
}

// Snapshot is the full phase-relevant lobby state pushed to every
// subscriber on each applied mutation. Revision increases strictly per
// lobby so clients can detect missed deliveries, and a duplicate delivery
// is self-correcting because the snapshot is complete.
type Snapshot struct {
	Code            string        `json:"code"`
	Name            string        `json:"name"`
	Phase           Phase         `json:"phase"`
	Revision        uint64        `json:"revision"`
	Reason          string        `json:"reason"`
	RoundNumber     int           `json:"roundNumber"`
	Players         []Player      `json:"players"`
	SubmittedCount  int           `json:"submittedCount"`
	CurrentQuestion *QuestionView `json:"currentQuestion,omitempty"`
	Scoreboard      *Scoreboard   `json:"scoreboard,omitempty"`
}

// Template is a pre-authored question from the bank. The core copies a
// chosen template into a new Question at submission time and never mutates
// the bank.
type Template struct {
	ID            string   `json:"id"`
	Category      string   `json:"category"`
	Prompt        string   `json:"prompt"`
	CorrectAnswer string   `json:"correctAnswer"`
	Distractors   []string `json:"distractors"`
}

// RoundState is the serializable form of one round.
type RoundState struct {
	Number       int              `json:"number"`
	Phase        Phase            `json:"phase"`
	Questions    []Question       `json:"questions"`
	CurrentIndex int              `json:"currentIndex"`
	Answers      map[int][]Answer `json:"answers"`
	Deltas       map[string]int   `json:"deltas"`
}

// LobbyState is the serialize/deserialize boundary for external storage:
// everything needed to rebuild a lobby's in-memory state after a restart.
type LobbyState struct {
	Code          string         `json:"code"`
	Name          string         `json:"name"`
	Revision      uint64         `json:"revision"`
	Players       []Player       `json:"players"`
	Totals        map[string]int `json:"totals"`
	Round         *RoundState    `json:"round,omitempty"`
	UsedTemplates []string       `json:"usedTemplates,omitempty"`
	SavedAt       time.Time      `json:"savedAt"`
}
