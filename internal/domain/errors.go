package domain

import "errors"

var (
	// ErrLobbyNotFound is returned when a lobby code is unknown.
	ErrLobbyNotFound = errors.New("lobby not found")
	// ErrPlayerNotFound is returned when a player id is unknown to the lobby.
	ErrPlayerNotFound = errors.New("player not found in lobby")
	// ErrRoundInProgress rejects joins once the round has left question submission.
	ErrRoundInProgress = errors.New("round in progress, joining is closed")
	// ErrIllegalAction rejects an action that is invalid in the current phase.
	ErrIllegalAction = errors.New("action not allowed in the current phase")
	// ErrInsufficientPlayers rejects starting a game with fewer than the minimum players.
	ErrInsufficientPlayers = errors.New("not enough players to start")
	// ErrPendingSubmissions rejects starting the round before every connected player has submitted a question.
	ErrPendingSubmissions = errors.New("waiting for all players to submit a question")
	// ErrDuplicateSubmission rejects a second answer from the same player for the same question.
	ErrDuplicateSubmission = errors.New("already submitted for this question")
	// ErrUnauthorized rejects a host-only action from a non-host player.
	ErrUnauthorized = errors.New("only the host can do that")
	// ErrOwnQuestion rejects a player answering their own question.
	ErrOwnQuestion = errors.New("authors cannot answer their own question")
	// ErrInvalidQuestion rejects a malformed submission.
	ErrInvalidQuestion = errors.New("question needs a prompt, a correct answer, and three distractors")
	// ErrTemplateNotFound indicates an unknown question template or category.
	ErrTemplateNotFound = errors.New("question template not found")
	// ErrCodeSpaceExhausted is the only fatal condition: lobby code generation
	// could not find a free code after bounded retries.
	ErrCodeSpaceExhausted = errors.New("lobby code space exhausted")
)
