package ui

import "ctfboard/internal/board"

// Controller receives user intents. Every callback runs on its own goroutine.
type Controller interface {
	OnReload()
	OnOpenChallenge(id int)
	OnCloseChallenge()
	OnOpenHint(id int)
	OnUnlockHint(id int)
	OnOpenSolves()
	OnSubmit(challengeID int, answer string)
	OnToggleCategory(category string)
	OnToggleCompletion(c board.Completion)
	OnResetFilters()
	OnCycleSort()
	OnQuit()
}

type View interface {
	Run() error
	Stop()
	SetController(Controller)
	SetBoard(snap board.Snapshot)
	SetDetail(state DetailState)
	SetHint(state HintState)
	SetSolves(state SolvesState)
	SetSubmit(state SubmitState)
	SetAuthPrompt(message string)
	FlashStatus(msg string)
}

type LayoutMode int

const (
	LayoutWide LayoutMode = iota
	LayoutMedium
	LayoutTooSmall
)

// DetailState backs the challenge dialog.
type DetailState struct {
	Open     bool
	Loading  bool
	ID       int
	Detail   board.ChallengeDetail
	Solved   bool
	Markdown string
	// Links lists the external targets found in the challenge view.
	Links []string
	Err   string
}

type HintState struct {
	Open      bool
	Loading   bool
	Unlocking bool
	ID        int
	Hint      board.Hint
	Markdown  string
	Err       string
}

type SolvesState struct {
	Open    bool
	Loading bool
	Solves  []board.Solve
	Err     string
}

// SubmitState is the answer box feedback for the open challenge.
type SubmitState struct {
	Pending    bool
	Status     board.AttemptStatus
	Message    string
	ClearInput bool
	Err        string
}
