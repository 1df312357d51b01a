package devtools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"ctfboard/internal/fixtures"
	"ctfboard/internal/markup"
)

const (
	rateLimitWindow   = time.Minute
	rateLimitAttempts = 10
)

type BackendOptions struct {
	// Token overrides the fixture token. Empty keeps the fixture's.
	Token   string
	Latency time.Duration
	Logger  Logger
	Now     func() time.Time
}

// Backend serves a fixture board over the /api/v1 routes the client uses.
// Solves, unlocks and attempts live in memory for the life of the process.
type Backend struct {
	mu       sync.Mutex
	fixture  fixtures.Board
	token    string
	latency  time.Duration
	log      Logger
	now      func() time.Time
	solves   []solveRecord
	unlocked map[int]time.Time
	attempts map[int]int
	recent   []time.Time
	spent    int
	paused   bool
	router   *chi.Mux
}

type solveRecord struct {
	challengeID int
	date        time.Time
}

type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Errors  any    `json:"errors,omitempty"`
	Message string `json:"message,omitempty"`
}

func NewBackend(board fixtures.Board, opts BackendOptions) *Backend {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	token := opts.Token
	if token == "" {
		token = board.Token
	}
	b := &Backend{
		fixture:  board,
		token:    token,
		latency:  opts.Latency,
		log:      opts.Logger,
		now:      now,
		unlocked: map[int]time.Time{},
		attempts: map[int]int{},
	}
	for _, s := range board.Solves {
		date := s.Date
		if date.IsZero() {
			date = now().UTC()
		}
		b.solves = append(b.solves, solveRecord{challengeID: s.ChallengeID, date: date})
	}
	b.router = b.routes()
	return b
}

func (b *Backend) Handler() http.Handler { return b.router }

// Start listens on a loopback port and serves until stop is called.
func (b *Backend) Start() (string, func() error, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", nil, fmt.Errorf("listen demo backend: %w", err)
	}
	srv := &http.Server{Handler: b.router, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			b.logError("devtools.backend.serve_failed", map[string]any{"error": err.Error()})
		}
	}()
	url := "http://" + ln.Addr().String()
	b.logInfo("devtools.backend.started", map[string]any{"url": url, "fixture": b.fixture.Name})
	stop := func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}
	return url, stop, nil
}

// SetPaused toggles the paused state submissions report.
func (b *Backend) SetPaused(paused bool) {
	b.mu.Lock()
	b.paused = paused
	b.mu.Unlock()
}

// Score is the player's balance: starting score plus solved values minus
// hint costs spent.
func (b *Backend) Score() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.scoreLocked()
}

func (b *Backend) routes() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(b.requestLog)
	if b.latency > 0 {
		r.Use(b.delay)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, envelope{Success: true, Data: map[string]string{"status": "ok", "board": b.fixture.Name}})
	})
	r.Get("/login", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body>login</body></html>"))
	})
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(b.authenticate)
		r.Get("/challenges", b.listChallenges)
		r.Post("/challenges/attempt", b.attempt)
		r.Get("/challenges/{id}", b.getChallenge)
		r.Get("/users/me/solves", b.listSolves)
		r.Get("/hints/{id}", b.getHint)
		r.Post("/unlocks", b.unlock)
	})
	return r
}

func (b *Backend) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		b.logInfo("devtools.backend.request", map[string]any{
			"request_id":  middleware.GetReqID(r.Context()),
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      ww.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
		})
	})
}

func (b *Backend) delay(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(b.latency):
		case <-r.Context().Done():
			return
		}
		next.ServeHTTP(w, r)
	})
}

// authenticate mirrors the platform: no credentials redirects to the login
// page, a wrong token is rejected outright.
func (b *Backend) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if b.token == "" {
			next.ServeHTTP(w, r)
			return
		}
		header := strings.TrimSpace(r.Header.Get("Authorization"))
		if header == "" {
			http.Redirect(w, r, "/login?next="+r.URL.Path, http.StatusFound)
			return
		}
		if header != "Token "+b.token {
			writeJSON(w, http.StatusUnauthorized, envelope{Success: false, Errors: []string{"Invalid access token"}})
			return
		}
		next.ServeHTTP(w, r)
	})
}

type challengeItem struct {
	ID         int      `json:"id"`
	Type       string   `json:"type"`
	Name       string   `json:"name"`
	Value      int      `json:"value"`
	Category   string   `json:"category"`
	Solves     int      `json:"solves"`
	SolvedByMe bool     `json:"solved_by_me"`
	Tags       []tagRef `json:"tags"`
}

type tagRef struct {
	Value string `json:"value"`
}

type hintRef struct {
	ID   int `json:"id"`
	Cost int `json:"cost"`
}

type challengeDetail struct {
	ID             int       `json:"id"`
	Name           string    `json:"name"`
	Value          int       `json:"value"`
	Description    string    `json:"description"`
	ConnectionInfo string    `json:"connection_info,omitempty"`
	Category       string    `json:"category"`
	Type           string    `json:"type"`
	State          string    `json:"state"`
	MaxAttempts    int       `json:"max_attempts"`
	Attempts       int       `json:"attempts"`
	Solves         int       `json:"solves"`
	SolvedByMe     bool      `json:"solved_by_me"`
	Files          []string  `json:"files"`
	Tags           []string  `json:"tags"`
	Hints          []hintRef `json:"hints"`
	View           string    `json:"view"`
}

func (b *Backend) listChallenges(w http.ResponseWriter, _ *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]challengeItem, 0, len(b.fixture.Challenges))
	for _, c := range b.fixture.Challenges {
		if !b.visibleLocked(c) {
			continue
		}
		tags := make([]tagRef, 0, len(c.Tags))
		for _, t := range c.Tags {
			tags = append(tags, tagRef{Value: t})
		}
		solved := b.solvedLocked(c.ID)
		out = append(out, challengeItem{
			ID:         c.ID,
			Type:       c.Type,
			Name:       c.Name,
			Value:      c.Value,
			Category:   c.Category,
			Solves:     c.SolveCount + boolInt(solved),
			SolvedByMe: solved,
			Tags:       tags,
		})
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: out})
}

func (b *Backend) getChallenge(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	c, found := b.fixture.Challenge(id)
	if !found || !b.visibleLocked(c) {
		writeJSON(w, http.StatusNotFound, envelope{Success: false, Message: "challenge not found"})
		return
	}
	hints := make([]hintRef, 0, len(c.Hints))
	for _, h := range c.Hints {
		hints = append(hints, hintRef{ID: h.ID, Cost: h.Cost})
	}
	solved := b.solvedLocked(c.ID)
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: challengeDetail{
		ID:             c.ID,
		Name:           c.Name,
		Value:          c.Value,
		Description:    c.Description,
		ConnectionInfo: c.ConnectionInfo,
		Category:       c.Category,
		Type:           c.Type,
		State:          "visible",
		MaxAttempts:    c.MaxAttempts,
		Attempts:       b.attempts[c.ID],
		Solves:         c.SolveCount + boolInt(solved),
		SolvedByMe:     solved,
		Files:          append([]string{}, c.Files...),
		Tags:           append([]string{}, c.Tags...),
		Hints:          hints,
		View:           renderView(c),
	}})
}

type solveItem struct {
	ChallengeID int    `json:"challenge_id"`
	Challenge   any    `json:"challenge"`
	Date        string `json:"date"`
	Type        string `json:"type"`
}

func (b *Backend) listSolves(w http.ResponseWriter, _ *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]solveItem, 0, len(b.solves))
	for _, s := range b.solves {
		c, _ := b.fixture.Challenge(s.challengeID)
		out = append(out, solveItem{
			ChallengeID: s.challengeID,
			Challenge: map[string]any{
				"id":       c.ID,
				"name":     c.Name,
				"value":    c.Value,
				"category": c.Category,
			},
			Date: s.date.UTC().Format(time.RFC3339),
			Type: "correct",
		})
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: out})
}

func (b *Backend) getHint(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	c, h, found := b.hintLocked(id)
	if !found || !b.visibleLocked(c) {
		writeJSON(w, http.StatusNotFound, envelope{Success: false, Message: "hint not found"})
		return
	}
	data := map[string]any{
		"id":        h.ID,
		"challenge": c.ID,
		"cost":      h.Cost,
		"type":      "standard",
	}
	if _, unlocked := b.unlocked[h.ID]; unlocked || h.Cost == 0 {
		data["content"] = h.Content
		data["html"] = h.Content
		data["view"] = "unlocked"
	} else {
		data["view"] = "locked"
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: data})
}

type unlockArgs struct {
	Target *int    `json:"target"`
	Type   *string `json:"type"`
}

func (b *Backend) unlock(w http.ResponseWriter, r *http.Request) {
	var args unlockArgs
	if err := json.NewDecoder(r.Body).Decode(&args); err != nil {
		writeJSON(w, http.StatusBadRequest, envelope{Success: false, Errors: map[string]string{"body": "invalid JSON"}})
		return
	}
	missing := map[string]string{}
	if args.Target == nil {
		missing["target"] = "field required"
	}
	if args.Type == nil {
		missing["type"] = "field required"
	}
	if len(missing) > 0 {
		writeJSON(w, http.StatusBadRequest, envelope{Success: false, Errors: missing})
		return
	}
	if *args.Type != "hints" {
		writeJSON(w, http.StatusBadRequest, envelope{Success: false, Errors: map[string]string{"type": "unsupported unlock type"}})
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	c, h, found := b.hintLocked(*args.Target)
	if !found || !b.visibleLocked(c) {
		writeJSON(w, http.StatusNotFound, envelope{Success: false, Message: "hint not found"})
		return
	}
	if _, done := b.unlocked[h.ID]; done {
		writeJSON(w, http.StatusBadRequest, envelope{Success: false, Errors: map[string]string{"target": "You've already unlocked this target"}})
		return
	}
	if b.scoreLocked() < h.Cost {
		writeJSON(w, http.StatusBadRequest, envelope{Success: false, Errors: map[string]string{"score": "You do not have enough points to unlock this hint"}})
		return
	}
	at := b.now().UTC()
	b.unlocked[h.ID] = at
	b.spent += h.Cost
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: map[string]any{
		"id":     len(b.unlocked),
		"target": h.ID,
		"type":   "hints",
		"date":   at.Format(time.RFC3339),
	}})
}

type attemptArgs struct {
	ChallengeID *int    `json:"challenge_id"`
	Submission  *string `json:"submission"`
}

type attemptData struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (b *Backend) attempt(w http.ResponseWriter, r *http.Request) {
	var args attemptArgs
	if err := json.NewDecoder(r.Body).Decode(&args); err != nil {
		writeJSON(w, http.StatusBadRequest, envelope{Success: false, Errors: map[string]string{"body": "invalid JSON"}})
		return
	}
	missing := map[string]string{}
	if args.ChallengeID == nil {
		missing["challenge_id"] = "field required"
	}
	if args.Submission == nil {
		missing["submission"] = "field required"
	}
	if len(missing) > 0 {
		writeJSON(w, http.StatusBadRequest, envelope{Success: false, Errors: missing})
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.now()
	if b.paused || !b.fixture.Open(now) {
		writeJSON(w, http.StatusForbidden, envelope{Success: true, Data: attemptData{
			Status:  "paused",
			Message: b.windowMessage(now),
		}})
		return
	}
	c, found := b.fixture.Challenge(*args.ChallengeID)
	if !found || !b.visibleLocked(c) {
		writeJSON(w, http.StatusNotFound, envelope{Success: false, Message: "challenge not found"})
		return
	}
	if b.solvedLocked(c.ID) {
		writeJSON(w, http.StatusOK, envelope{Success: true, Data: attemptData{
			Status:  "already_solved",
			Message: "You already solved this",
		}})
		return
	}
	if c.MaxAttempts > 0 && b.attempts[c.ID] >= c.MaxAttempts {
		writeJSON(w, http.StatusForbidden, envelope{Success: true, Data: attemptData{
			Status:  "incorrect",
			Message: "You have 0 tries remaining",
		}})
		return
	}
	if b.rateLimitedLocked(now) {
		writeJSON(w, http.StatusTooManyRequests, envelope{Success: true, Data: attemptData{
			Status:  "ratelimited",
			Message: "You're submitting flags too fast. Slow down.",
		}})
		return
	}

	answer := strings.TrimSpace(*args.Submission)
	for _, f := range c.Flags {
		if f.Match(answer) {
			b.solves = append(b.solves, solveRecord{challengeID: c.ID, date: now.UTC()})
			writeJSON(w, http.StatusOK, envelope{Success: true, Data: attemptData{Status: "correct", Message: "Correct"}})
			return
		}
	}
	b.attempts[c.ID]++
	b.recent = append(b.recent, now)
	msg := "Incorrect"
	if c.MaxAttempts > 0 {
		msg = fmt.Sprintf("Incorrect. You have %d tries remaining", c.MaxAttempts-b.attempts[c.ID])
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: attemptData{Status: "incorrect", Message: msg}})
}

func (b *Backend) windowMessage(now time.Time) string {
	switch {
	case b.paused:
		return fmt.Sprintf("%s is paused", b.fixture.Name)
	case b.fixture.Start != nil && now.Before(*b.fixture.Start):
		return fmt.Sprintf("%s has not started yet", b.fixture.Name)
	default:
		return fmt.Sprintf("%s has ended", b.fixture.Name)
	}
}

// rateLimitedLocked allows rateLimitAttempts incorrect submissions per window.
func (b *Backend) rateLimitedLocked(now time.Time) bool {
	cutoff := now.Add(-rateLimitWindow)
	kept := b.recent[:0]
	for _, t := range b.recent {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	b.recent = kept
	return len(b.recent) >= rateLimitAttempts
}

// visibleLocked hides hidden challenges and those whose prerequisites are
// not all solved.
func (b *Backend) visibleLocked(c fixtures.ChallengeSpec) bool {
	if c.Hidden {
		return false
	}
	for _, req := range c.Requires {
		if !b.solvedLocked(req) {
			return false
		}
	}
	return true
}

func (b *Backend) solvedLocked(id int) bool {
	for _, s := range b.solves {
		if s.challengeID == id {
			return true
		}
	}
	return false
}

func (b *Backend) hintLocked(id int) (fixtures.ChallengeSpec, fixtures.HintSpec, bool) {
	for _, c := range b.fixture.Challenges {
		for _, h := range c.Hints {
			if h.ID == id {
				return c, h, true
			}
		}
	}
	return fixtures.ChallengeSpec{}, fixtures.HintSpec{}, false
}

func (b *Backend) scoreLocked() int {
	score := b.fixture.User.Score - b.spent
	for _, s := range b.solves {
		if c, ok := b.fixture.Challenge(s.challengeID); ok {
			score += c.Value
		}
	}
	return score
}

// Solved lists solved challenge ids in ascending order.
func (b *Backend) Solved() []int {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]int, 0, len(b.solves))
	for _, s := range b.solves {
		out = append(out, s.challengeID)
	}
	sort.Ints(out)
	return out
}

func renderView(c fixtures.ChallengeSpec) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "<h2>%s</h2>\n<p><strong>%d points</strong> · %s</p>\n", c.Name, c.Value, c.Category)
	sb.WriteString(c.Description)
	if c.ConnectionInfo != "" {
		info := c.ConnectionInfo
		if strings.Contains(info, "://") {
			info = fmt.Sprintf(`<a href="%s">%s</a>`, info, info)
		} else {
			info = "<code>" + info + "</code>"
		}
		fmt.Fprintf(&sb, "\n<p>Connect: %s</p>", info)
	}
	out, err := markup.RewriteExternalLinks(sb.String())
	if err != nil {
		return sb.String()
	}
	return out
}

func pathID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, envelope{Success: false, Errors: map[string]string{"id": "value is not a valid integer"}})
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func (b *Backend) logInfo(msg string, fields map[string]any) {
	if b.log != nil {
		b.log.Info(msg, fields)
	}
}

func (b *Backend) logError(msg string, fields map[string]any) {
	if b.log != nil {
		b.log.Error(msg, fields)
	}
}
