package api

import (
	"encoding/json"
	"strings"
	"time"

	"ctfboard/internal/board"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Errors  json.RawMessage `json:"errors"`
	Message string          `json:"message"`
}

// fieldErrors flattens the errors member. The backend sends either an object
// of field -> message (or list of messages) or a bare list of messages.
func (e envelope) fieldErrors() map[string]string {
	if len(e.Errors) == 0 || string(e.Errors) == "null" {
		return nil
	}
	out := map[string]string{}
	var byField map[string]json.RawMessage
	if err := json.Unmarshal(e.Errors, &byField); err == nil {
		for field, raw := range byField {
			if msg := joinMessages(raw); msg != "" {
				out[field] = msg
			}
		}
		return out
	}
	if msg := joinMessages(e.Errors); msg != "" {
		out[""] = msg
	}
	return out
}

func joinMessages(raw json.RawMessage) string {
	var one string
	if err := json.Unmarshal(raw, &one); err == nil {
		return one
	}
	var many []string
	if err := json.Unmarshal(raw, &many); err == nil {
		return strings.Join(many, "; ")
	}
	return ""
}

// wireTag accepts both {"value": "x"} and "x".
type wireTag string

func (t *wireTag) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*t = wireTag(s)
		return nil
	}
	var obj struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	*t = wireTag(obj.Value)
	return nil
}

type wireTime struct{ time.Time }

var timeLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02 15:04:05"}

func (t *wireTime) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil || s == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return nil
}

type wireHintSummary struct {
	ID   int `json:"id"`
	Cost int `json:"cost"`
}

type wireChallenge struct {
	ID             int               `json:"id"`
	Name           string            `json:"name"`
	Category       string            `json:"category"`
	Value          int               `json:"value"`
	Type           string            `json:"type"`
	Description    string            `json:"description"`
	View           string            `json:"view"`
	Solves         int               `json:"solves"`
	SolvedByMe     bool              `json:"solved_by_me"`
	Tags           []wireTag         `json:"tags"`
	ConnectionInfo string            `json:"connection_info"`
	Hints          []wireHintSummary `json:"hints"`
	Files          []string          `json:"files"`
	Attempts       int               `json:"attempts"`
	MaxAttempts    int               `json:"max_attempts"`
}

func (w wireChallenge) challenge() board.Challenge {
	tags := make([]string, 0, len(w.Tags))
	for _, t := range w.Tags {
		tags = append(tags, string(t))
	}
	return board.Challenge{
		ID:          w.ID,
		Name:        w.Name,
		Category:    w.Category,
		Value:       w.Value,
		Type:        w.Type,
		Description: w.Description,
		View:        w.View,
		Tags:        tags,
		SolveCount:  w.Solves,
		SolvedByMe:  w.SolvedByMe,
	}
}

func (w wireChallenge) detail() board.ChallengeDetail {
	hints := make([]board.HintSummary, 0, len(w.Hints))
	for _, h := range w.Hints {
		hints = append(hints, board.HintSummary{ID: h.ID, Cost: h.Cost})
	}
	return board.ChallengeDetail{
		Challenge:      w.challenge(),
		ConnectionInfo: w.ConnectionInfo,
		Hints:          hints,
		Files:          append([]string(nil), w.Files...),
		Attempts:       w.Attempts,
		MaxAttempts:    w.MaxAttempts,
	}
}

type wireSolve struct {
	ChallengeID int `json:"challenge_id"`
	Challenge   struct {
		ID       int    `json:"id"`
		Name     string `json:"name"`
		Value    int    `json:"value"`
		Category string `json:"category"`
	} `json:"challenge"`
	Date wireTime `json:"date"`
}

func (w wireSolve) solve() board.Solve {
	id := w.ChallengeID
	if id == 0 {
		id = w.Challenge.ID
	}
	return board.Solve{
		ChallengeID: id,
		Name:        w.Challenge.Name,
		Category:    w.Challenge.Category,
		Value:       w.Challenge.Value,
		Date:        w.Date.Time,
	}
}

type wireHint struct {
	ID          int     `json:"id"`
	Challenge   int     `json:"challenge"`
	ChallengeID int     `json:"challenge_id"`
	Cost        int     `json:"cost"`
	Content     *string `json:"content"`
	HTML        *string `json:"html"`
	View        string  `json:"view"`
}

func (w wireHint) hint() board.Hint {
	h := board.Hint{
		ID:          w.ID,
		ChallengeID: w.ChallengeID,
		Cost:        w.Cost,
	}
	if h.ChallengeID == 0 {
		h.ChallengeID = w.Challenge
	}
	if w.Content != nil {
		h.Content = *w.Content
	}
	if w.HTML != nil {
		h.HTML = *w.HTML
	}
	h.Locked = w.View == "locked" || (w.Content == nil && w.HTML == nil)
	return h
}

type unlockRequest struct {
	Target int    `json:"target"`
	Type   string `json:"type"`
}

type attemptRequest struct {
	ChallengeID int    `json:"challenge_id"`
	Submission  string `json:"submission"`
}

type wireAttempt struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}
