package state

import (
	"context"
	"time"

	"ctfboard/internal/board"
)

type Store interface {
	EnsureSchema(ctx context.Context) error
	StartSession(ctx context.Context, session Session) error
	GetLastSession(ctx context.Context, baseURL string) (*Session, error)
	RecordSubmission(ctx context.Context, sub Submission) error
	RecentSubmissions(ctx context.Context, baseURL string, limit int) ([]Submission, error)
	GetChallengeProgressMap(ctx context.Context, baseURL string) (map[int]ChallengeProgress, error)
	SaveBoardSnapshot(ctx context.Context, snap BoardSnapshot) error
	LoadBoardSnapshot(ctx context.Context, baseURL string) (*BoardSnapshot, error)
	SaveSettings(ctx context.Context, values map[string]string) error
	LoadSettings(ctx context.Context) (map[string]string, error)
	GetSummary(ctx context.Context, baseURL string) (Summary, error)
	Close() error
}

type Session struct {
	ID      string
	BaseURL string
	StartTS time.Time
}

// Submission is one journaled answer attempt. The answer itself is never
// stored; Fingerprint identifies repeats.
type Submission struct {
	ID          string
	SessionID   string
	BaseURL     string
	ChallengeID int
	Fingerprint string
	Status      string
	Message     string
	SubmittedTS time.Time
}

// ChallengeProgress aggregates the journal for one challenge. SolvedTS is
// zero until a correct attempt was recorded from this machine.
type ChallengeProgress struct {
	ChallengeID int
	Attempts    int
	LastStatus  string
	LastTS      time.Time
	SolvedTS    time.Time
}

type BoardSnapshot struct {
	BaseURL    string
	Challenges []board.Challenge
	Solves     []board.Solve
	SavedTS    time.Time
}

type Summary struct {
	Sessions    int
	Submissions int
	Correct     int
	Incorrect   int
}
