package board

import "time"

// Challenge is one scoreable task as listed by the backend.
type Challenge struct {
	ID          int
	Name        string
	Category    string
	Value       int
	Type        string
	Description string
	View        string
	Tags        []string
	SolveCount  int
	SolvedByMe  bool
}

// Solve records that the current user completed a challenge.
type Solve struct {
	ChallengeID int
	Name        string
	Category    string
	Value       int
	Date        time.Time
}

type HintSummary struct {
	ID   int
	Cost int
}

// Hint is a hint body. Locked hints carry only their cost.
type Hint struct {
	ID          int
	ChallengeID int
	Cost        int
	Content     string
	HTML        string
	Locked      bool
}

type ChallengeDetail struct {
	Challenge
	ConnectionInfo string
	Hints          []HintSummary
	Files          []string
	Attempts       int
	MaxAttempts    int
}

type Aggregates struct {
	TotalPoints  int
	SolvedPoints int
}

type Completion string

const (
	Completed    Completion = "completed"
	NotCompleted Completion = "not_completed"
)

// AllCompletion lists every completion state in display order.
var AllCompletion = []Completion{Completed, NotCompleted}

func ParseCompletion(raw string) (Completion, bool) {
	switch raw {
	case string(Completed), "solved":
		return Completed, true
	case string(NotCompleted), "unsolved", "open":
		return NotCompleted, true
	}
	return "", false
}

type AttemptStatus string

const (
	StatusCorrect       AttemptStatus = "correct"
	StatusIncorrect     AttemptStatus = "incorrect"
	StatusAlreadySolved AttemptStatus = "already_solved"
	StatusPaused        AttemptStatus = "paused"
	StatusRateLimited   AttemptStatus = "ratelimited"
)

type AttemptResult struct {
	ChallengeID int
	Status      AttemptStatus
	Message     string
}
