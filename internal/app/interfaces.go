package app

import (
	"context"

	"ctfboard/internal/board"
	"ctfboard/internal/state"
)

// Backend is the board API the controller drives. *api.Client implements it.
type Backend interface {
	BaseURL() string
	ListChallenges(ctx context.Context) ([]board.Challenge, error)
	ListSolves(ctx context.Context) ([]board.Solve, error)
	GetChallenge(ctx context.Context, id int) (board.ChallengeDetail, error)
	GetHint(ctx context.Context, id int) (board.Hint, error)
	UnlockHint(ctx context.Context, id int) error
	Submit(ctx context.Context, challengeID int, answer string) (board.AttemptResult, error)
}

type Store interface {
	EnsureSchema(ctx context.Context) error
	StartSession(ctx context.Context, session state.Session) error
	RecordSubmission(ctx context.Context, sub state.Submission) error
	GetChallengeProgressMap(ctx context.Context, baseURL string) (map[int]state.ChallengeProgress, error)
	SaveBoardSnapshot(ctx context.Context, snap state.BoardSnapshot) error
	LoadBoardSnapshot(ctx context.Context, baseURL string) (*state.BoardSnapshot, error)
	SaveSettings(ctx context.Context, values map[string]string) error
	LoadSettings(ctx context.Context) (map[string]string, error)
	Close() error
}
