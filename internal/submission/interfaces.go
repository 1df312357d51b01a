package submission

import (
	"context"

	"ctfboard/internal/board"
	"ctfboard/internal/state"
)

type Submitter interface {
	Submit(ctx context.Context, challengeID int, answer string) (board.AttemptResult, error)
}

type Journal interface {
	RecordSubmission(ctx context.Context, sub state.Submission) error
}

type Logger interface {
	Info(msg string, fields map[string]any)
	Error(msg string, fields map[string]any)
}
