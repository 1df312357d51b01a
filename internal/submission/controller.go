package submission

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"ctfboard/internal/api"
	"ctfboard/internal/board"
	"ctfboard/internal/state"
)

// Outcome tells the caller what to do with the input box and the board.
type Outcome struct {
	Result     board.AttemptResult
	ClearInput bool
	Reload     bool
	Message    string
}

type Options struct {
	Submitter Submitter
	Journal   Journal
	Logger    Logger
	SessionID string
	BaseURL   string
	Now       func() time.Time
}

// Controller sends one request per Submit call. There is no retry.
type Controller struct {
	submitter Submitter
	journal   Journal
	log       Logger
	sessionID string
	baseURL   string
	now       func() time.Time
}

func New(opts Options) *Controller {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Controller{
		submitter: opts.Submitter,
		journal:   opts.Journal,
		log:       opts.Logger,
		sessionID: opts.SessionID,
		baseURL:   opts.BaseURL,
		now:       now,
	}
}

func (c *Controller) Submit(ctx context.Context, challengeID int, answer string) (Outcome, error) {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return Outcome{}, api.ValidationError("submit answer", "submission", "answer is empty")
	}
	if c.submitter == nil {
		return Outcome{}, errors.New("submit answer: no backend configured")
	}

	res, err := c.submitter.Submit(ctx, challengeID, answer)
	if err != nil {
		c.logError("submission.failed", challengeID, err)
		return Outcome{}, fmt.Errorf("submit challenge %d: %w", challengeID, err)
	}
	if res.ChallengeID == 0 {
		res.ChallengeID = challengeID
	}
	out := Classify(res)
	c.record(ctx, res, answer)
	c.logInfo("submission.result", map[string]any{
		"challenge_id": challengeID,
		"status":       string(res.Status),
		"reload":       out.Reload,
	})
	return out, nil
}

// Classify maps a backend attempt status to the input and reload behaviour.
func Classify(res board.AttemptResult) Outcome {
	out := Outcome{Result: res, Message: res.Message}
	switch res.Status {
	case board.StatusCorrect:
		out.ClearInput = true
		out.Reload = true
		if out.Message == "" {
			out.Message = "Correct"
		}
	case board.StatusAlreadySolved:
		out.ClearInput = true
		if out.Message == "" {
			out.Message = "You already solved this"
		}
	case board.StatusIncorrect:
		if out.Message == "" {
			out.Message = "Incorrect"
		}
	case board.StatusPaused:
		if out.Message == "" {
			out.Message = "The event is paused"
		}
	case board.StatusRateLimited:
		if out.Message == "" {
			out.Message = "Submitting too fast, slow down"
		}
	default:
		if out.Message == "" {
			out.Message = fmt.Sprintf("Unexpected result %q", res.Status)
		}
	}
	return out
}

func (c *Controller) record(ctx context.Context, res board.AttemptResult, answer string) {
	if c.journal == nil {
		return
	}
	err := c.journal.RecordSubmission(ctx, state.Submission{
		ID:          uuid.NewString(),
		SessionID:   c.sessionID,
		BaseURL:     c.baseURL,
		ChallengeID: res.ChallengeID,
		Fingerprint: Fingerprint(res.ChallengeID, answer),
		Status:      string(res.Status),
		Message:     res.Message,
		SubmittedTS: c.now().UTC(),
	})
	if err != nil {
		c.logError("submission.journal.failed", res.ChallengeID, err)
	}
}

// Fingerprint identifies an answer without storing it.
func Fingerprint(challengeID int, answer string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d\x00%s", challengeID, answer)))
	return hex.EncodeToString(sum[:8])
}

func (c *Controller) logInfo(msg string, fields map[string]any) {
	if c.log != nil {
		c.log.Info(msg, fields)
	}
}

func (c *Controller) logError(msg string, challengeID int, err error) {
	if c.log != nil {
		c.log.Error(msg, map[string]any{"challenge_id": challengeID, "error": err.Error()})
	}
}
