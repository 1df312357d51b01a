package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"ctfboard/internal/api"
	"ctfboard/internal/board"
	"ctfboard/internal/devtools"
	"ctfboard/internal/fixtures"
	"ctfboard/internal/markup"
	"ctfboard/internal/state"
	"ctfboard/internal/submission"
	"ctfboard/internal/telemetry"
	"ctfboard/internal/ui"
)

const (
	settingSort       = "board.sort"
	settingHidden     = "board.hidden_categories"
	settingCompletion = "board.completion"

	// offlineURL is a local address nothing listens on.
	offlineURL = "http://127.0.0.1:9"
)

// App owns the board store and implements ui.Controller. The view only ever
// sees snapshots published by the store.
type App struct {
	cfg Config

	logger  *telemetry.JSONLogger
	store   Store
	backend Backend
	board   *board.Store
	submit  *submission.Controller
	view    ui.View

	sessionID string
	scenario  devtools.Scenario
	now       func() time.Time

	detailGen board.Generation
	hintGen   board.Generation
	solvesGen board.Generation

	mu        sync.Mutex
	closers   []func() error
	unsub     func()
	closeOnce sync.Once
}

// New wires the full interactive client from cfg.
func New(cfg Config) (*App, error) {
	return build(cfg, func(baseURL string) ui.View {
		return ui.New(ui.Options{
			ASCIIOnly:    cfg.ASCIIOnly,
			Title:        "ctfboard " + baseURL,
			StyleVariant: cfg.UI.StyleVariant,
			MotionLevel:  cfg.UI.MotionLevel,
			MouseScope:   cfg.UI.MouseScope,
		})
	})
}

// NewHeadless wires the client without a terminal UI, for one-shot commands.
func NewHeadless(cfg Config) (*App, error) {
	return build(cfg, func(string) ui.View { return discardView{} })
}

func build(cfg Config, makeView func(baseURL string) ui.View) (*App, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, err
	}

	logger, err := telemetry.NewJSONLogger(cfg.LogPath)
	if err != nil {
		return nil, err
	}

	store, err := state.NewSQLite(filepath.Join(cfg.DataDir, "state.db"))
	if err != nil {
		_ = logger.Close()
		return nil, err
	}
	if err := store.EnsureSchema(context.Background()); err != nil {
		_ = store.Close()
		_ = logger.Close()
		return nil, err
	}

	var (
		closers  []func() error
		scenario devtools.Scenario
	)
	baseURL, token := cfg.URL, cfg.Token
	if cfg.Demo.Enabled {
		scenario = devtools.NewManager().Resolve(cfg.Demo.Scenario)
		url, stop, err := startDemo(cfg, logger)
		if err != nil {
			_ = store.Close()
			_ = logger.Close()
			return nil, err
		}
		closers = append(closers, stop)
		baseURL, token = url, cfg.Demo.Token
		if scenario.Offline {
			baseURL = offlineURL
		}
		if scenario.Unauthenticated {
			token = ""
		}
	}

	client, err := api.New(api.Options{
		BaseURL:       baseURL,
		Token:         token,
		SessionCookie: cfg.SessionCookie,
		Timeout:       cfg.RequestTimeout(),
		Logger:        logger,
	})
	if err != nil {
		for _, c := range closers {
			_ = c()
		}
		_ = store.Close()
		_ = logger.Close()
		return nil, err
	}

	a := newApp(cfg, client, store, makeView(client.BaseURL()), logger)
	a.scenario = scenario
	a.closers = append(a.closers, closers...)
	return a, nil
}

func startDemo(cfg Config, logger *telemetry.JSONLogger) (string, func() error, error) {
	var (
		fixture fixtures.Board
		err     error
	)
	if strings.TrimSpace(cfg.Demo.Fixture) != "" {
		fixture, err = fixtures.Load(cfg.Demo.Fixture)
	} else {
		fixture, err = fixtures.Demo()
	}
	if err != nil {
		return "", nil, fmt.Errorf("load demo fixture: %w", err)
	}
	backend := devtools.NewBackend(fixture, devtools.BackendOptions{
		Token:   cfg.Demo.Token,
		Latency: cfg.Demo.Latency,
		Logger:  logger.With(map[string]any{"component": "demo"}),
	})
	url, stop, err := backend.Start()
	if err != nil {
		return "", nil, fmt.Errorf("start demo backend: %w", err)
	}
	logger.Info("demo.backend.started", map[string]any{"url": url, "fixture": fixture.Name, "scenario": cfg.Demo.Scenario})
	return url, stop, nil
}

func newApp(cfg Config, backend Backend, store Store, view ui.View, logger *telemetry.JSONLogger) *App {
	if logger == nil {
		logger = telemetry.NewWriterLogger(io.Discard)
	}
	a := &App{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		backend:   backend,
		view:      view,
		sessionID: uuid.NewString(),
		now:       time.Now,
	}

	settings, err := store.LoadSettings(context.Background())
	if err != nil {
		logger.Error("settings.load_failed", map[string]any{"error": err.Error()})
		settings = map[string]string{}
	}
	filter, strategy := initialFilter(cfg, settings)
	a.board = board.NewStore(filter, strategy)
	a.submit = submission.New(submission.Options{
		Submitter: backend,
		Journal:   store,
		Logger:    logger,
		SessionID: a.sessionID,
		BaseURL:   backend.BaseURL(),
	})
	a.unsub = a.board.Subscribe(view.SetBoard)
	view.SetController(a)
	return a
}

// initialFilter builds the starting filter: explicit configuration first,
// then the choices persisted by the last session.
func initialFilter(cfg Config, settings map[string]string) (board.FilterState, board.SortStrategy) {
	filter := board.NewFilterState(nil)
	if len(cfg.Board.Categories) > 0 {
		filter.Restrict(cfg.Board.Categories)
	} else if hidden := splitList(settings[settingHidden]); len(hidden) > 0 {
		filter.Disable(hidden...)
	}

	if len(cfg.Board.Completion) > 0 {
		filter.SetCompletion(cfg.CompletionFilter())
	} else if raw, ok := settings[settingCompletion]; ok {
		var states []board.Completion
		for _, part := range splitList(raw) {
			if c, ok := board.ParseCompletion(part); ok {
				states = append(states, c)
			}
		}
		filter.SetCompletion(states)
	}

	strategy := board.SortSource
	switch {
	case cfg.Board.Sort != "":
		strategy = cfg.SortStrategy()
	case settings[settingSort] != "":
		if s, err := board.ParseSortStrategy(settings[settingSort]); err == nil {
			strategy = s
		}
	}
	return filter, strategy
}

func (a *App) Run(ctx context.Context) error {
	a.logger.Info("app.start", map[string]any{
		"session":  a.sessionID,
		"base_url": a.backend.BaseURL(),
		"demo":     a.cfg.Demo.Enabled,
	})
	if err := a.store.StartSession(ctx, state.Session{ID: a.sessionID, BaseURL: a.backend.BaseURL(), StartTS: a.now().UTC()}); err != nil {
		a.logger.Error("session.start_failed", map[string]any{"error": err.Error()})
	}
	a.seedFromCache(ctx)

	go func() {
		_ = a.Reload(ctx)
		a.applyScenario()
	}()
	go func() {
		<-ctx.Done()
		a.view.Stop()
	}()
	return a.view.Run()
}

func (a *App) Close() {
	a.closeOnce.Do(func() {
		if a.unsub != nil {
			a.unsub()
		}
		a.mu.Lock()
		closers := a.closers
		a.closers = nil
		a.mu.Unlock()
		for _, c := range closers {
			if err := c(); err != nil {
				a.logger.Error("app.close_failed", map[string]any{"error": err.Error()})
			}
		}
		_ = a.store.Close()
		a.logger.Info("app.stop", map[string]any{"session": a.sessionID})
		_ = a.logger.Close()
	})
}

// Snapshot is the current board as the view sees it.
func (a *App) Snapshot() board.Snapshot {
	return a.board.Snapshot()
}

func (a *App) BaseURL() string {
	return a.backend.BaseURL()
}

// seedFromCache shows the last good board for this backend until the first
// fetch lands.
func (a *App) seedFromCache(ctx context.Context) {
	snap, err := a.store.LoadBoardSnapshot(ctx, a.backend.BaseURL())
	if err != nil {
		a.logger.Error("board.cache.load_failed", map[string]any{"error": err.Error()})
		return
	}
	if snap == nil {
		return
	}
	if a.board.Seed(snap.Challenges, snap.Solves, snap.SavedTS) {
		a.logger.Info("board.cache.seeded", map[string]any{"challenges": len(snap.Challenges), "saved": snap.SavedTS})
	}
}

// Reload fetches challenges and solves concurrently and installs them if no
// newer load started meanwhile. The loading flag is always cleared.
func (a *App) Reload(ctx context.Context) error {
	ticket := a.board.BeginLoad()
	a.logger.Info("board.reload.begin", map[string]any{"generation": ticket})

	ctx, cancel := context.WithTimeout(ctx, a.cfg.RequestTimeout())
	defer cancel()

	var (
		challenges []board.Challenge
		solves     []board.Solve
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		challenges, err = a.backend.ListChallenges(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		solves, err = a.backend.ListSolves(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		if !a.board.FailLoad(ticket, err) {
			a.logger.Info("board.stale_response", map[string]any{"generation": ticket, "error": err.Error()})
			return nil
		}
		a.surface("board.reload.failed", err)
		return err
	}

	if !a.board.ApplyLoad(ticket, challenges, solves) {
		a.logger.Info("board.stale_response", map[string]any{"generation": ticket})
		return nil
	}
	agg := board.ComputeAggregates(challenges, solves)
	a.logger.Info("board.reload.done", map[string]any{
		"generation":    ticket,
		"challenges":    len(challenges),
		"solves":        len(solves),
		"total_points":  agg.TotalPoints,
		"solved_points": agg.SolvedPoints,
	})

	err := a.store.SaveBoardSnapshot(ctx, state.BoardSnapshot{
		BaseURL:    a.backend.BaseURL(),
		Challenges: challenges,
		Solves:     solves,
		SavedTS:    a.now().UTC(),
	})
	if err != nil {
		a.logger.Error("board.cache.save_failed", map[string]any{"error": err.Error()})
	}
	return nil
}

// SubmitAnswer runs one submission and reloads the board after a correct
// answer.
func (a *App) SubmitAnswer(ctx context.Context, challengeID int, answer string) (submission.Outcome, error) {
	rctx, cancel := context.WithTimeout(ctx, a.cfg.RequestTimeout())
	out, err := a.submit.Submit(rctx, challengeID, answer)
	cancel()
	if err != nil {
		return out, err
	}
	if out.Reload {
		_ = a.Reload(ctx)
	}
	return out, nil
}

// Progress is the local submission history keyed by challenge id.
func (a *App) Progress(ctx context.Context) (map[int]state.ChallengeProgress, error) {
	return a.store.GetChallengeProgressMap(ctx, a.backend.BaseURL())
}

func (a *App) OnReload() {
	_ = a.Reload(context.Background())
}

func (a *App) OnOpenChallenge(id int) {
	ticket := a.detailGen.Next()
	ctx, cancel := a.requestContext()
	defer cancel()

	detail, err := a.backend.GetChallenge(ctx, id)
	if !a.detailGen.IsCurrent(ticket) {
		a.logger.Info("challenge.stale_response", map[string]any{"challenge_id": id})
		return
	}
	if err != nil {
		msg := a.surface("challenge.open_failed", err)
		a.view.SetDetail(ui.DetailState{Open: true, ID: id, Err: msg})
		return
	}

	view, err := markup.RewriteExternalLinks(detail.View)
	if err != nil {
		a.logger.Error("challenge.markup_failed", map[string]any{"challenge_id": id, "error": err.Error()})
		view = detail.View
	}
	detail.View = view

	body := detail.Description
	if strings.TrimSpace(view) != "" {
		body = markup.ToMarkdown(view)
	}
	snap := a.board.Snapshot()
	a.view.SetDetail(ui.DetailState{
		Open:     true,
		ID:       id,
		Detail:   detail,
		Solved:   detail.SolvedByMe || snap.IsSolved(id),
		Markdown: body,
		Links:    markup.ExternalLinks(view),
	})
	a.logger.Info("challenge.open", map[string]any{"challenge_id": id, "hints": len(detail.Hints)})
}

// OnCloseChallenge invalidates any detail or hint response still in flight.
func (a *App) OnCloseChallenge() {
	a.detailGen.Next()
	a.hintGen.Next()
}

func (a *App) OnOpenHint(id int) {
	ticket := a.hintGen.Next()
	a.loadHint(ticket, id, "")
}

func (a *App) loadHint(ticket uint64, id int, notice string) {
	ctx, cancel := a.requestContext()
	defer cancel()

	hint, err := a.backend.GetHint(ctx, id)
	if !a.hintGen.IsCurrent(ticket) {
		a.logger.Info("hint.stale_response", map[string]any{"hint_id": id})
		return
	}
	if err != nil {
		msg := a.surface("hint.open_failed", err)
		a.view.SetHint(ui.HintState{Open: true, ID: id, Err: msg})
		return
	}
	a.view.SetHint(ui.HintState{Open: true, ID: id, Hint: hint, Markdown: hintMarkdown(hint), Err: notice})
}

func hintMarkdown(h board.Hint) string {
	if h.Locked {
		return ""
	}
	if strings.TrimSpace(h.HTML) != "" {
		html, err := markup.RewriteExternalLinks(h.HTML)
		if err != nil {
			html = h.HTML
		}
		return markup.ToMarkdown(html)
	}
	return h.Content
}

// OnUnlockHint spends points on a hint. A denied unlock keeps the hint
// closed and shows the backend's reason.
func (a *App) OnUnlockHint(id int) {
	ticket := a.hintGen.Current()
	ctx, cancel := a.requestContext()
	err := a.backend.UnlockHint(ctx, id)
	cancel()

	if err != nil {
		if !a.hintGen.IsCurrent(ticket) {
			return
		}
		msg := a.surface("hint.unlock_failed", err)
		hint := board.Hint{ID: id, Locked: true}
		if cost, ok := a.hintCost(id); ok {
			hint.Cost = cost
		}
		a.view.SetHint(ui.HintState{Open: true, ID: id, Hint: hint, Err: msg})
		return
	}
	a.logger.Info("hint.unlocked", map[string]any{"hint_id": id})
	if a.hintGen.IsCurrent(ticket) {
		a.loadHint(ticket, id, "")
	}
}

func (a *App) hintCost(id int) (int, bool) {
	ctx, cancel := a.requestContext()
	defer cancel()
	h, err := a.backend.GetHint(ctx, id)
	if err != nil {
		return 0, false
	}
	return h.Cost, true
}

func (a *App) OnOpenSolves() {
	ticket := a.solvesGen.Next()
	ctx, cancel := a.requestContext()
	defer cancel()

	solves, err := a.backend.ListSolves(ctx)
	if !a.solvesGen.IsCurrent(ticket) {
		return
	}
	if err != nil {
		msg := a.surface("solves.open_failed", err)
		a.view.SetSolves(ui.SolvesState{Open: true, Err: msg})
		return
	}
	snap := a.board.Snapshot()
	for i, s := range solves {
		if s.Name != "" {
			continue
		}
		if c, ok := snap.Board.Challenge(s.ChallengeID); ok {
			solves[i].Name = c.Name
			solves[i].Category = c.Category
		}
	}
	a.view.SetSolves(ui.SolvesState{Open: true, Solves: solves})
}

func (a *App) OnSubmit(challengeID int, answer string) {
	out, err := a.SubmitAnswer(context.Background(), challengeID, answer)
	if err != nil {
		msg := a.surface("submission.failed", err)
		a.view.SetSubmit(ui.SubmitState{Err: msg})
		return
	}
	a.view.SetSubmit(ui.SubmitState{
		Status:     out.Result.Status,
		Message:    out.Message,
		ClearInput: out.ClearInput,
	})
}

func (a *App) OnToggleCategory(category string) {
	a.board.UpdateFilter(func(f *board.FilterState) { f.ToggleCategory(category) })
	a.persistSettings()
}

func (a *App) OnToggleCompletion(c board.Completion) {
	a.board.UpdateFilter(func(f *board.FilterState) { f.ToggleCompletion(c) })
	a.persistSettings()
}

func (a *App) OnResetFilters() {
	a.board.UpdateFilter(func(f *board.FilterState) { f.Reset() })
	a.persistSettings()
}

func (a *App) OnCycleSort() {
	next := a.board.Snapshot().Sort.Next()
	a.board.SetSort(next)
	a.view.FlashStatus("Sort: " + string(next))
	a.persistSettings()
}

func (a *App) OnQuit() {
	a.logger.Info("app.quit", map[string]any{"session": a.sessionID})
	a.view.Stop()
}

func (a *App) persistSettings() {
	snap := a.board.Snapshot()
	completion := make([]string, 0, 2)
	for _, c := range snap.Filter.Completion() {
		completion = append(completion, string(c))
	}
	err := a.store.SaveSettings(context.Background(), map[string]string{
		settingSort:       string(snap.Sort),
		settingHidden:     strings.Join(snap.Filter.Hidden(), ","),
		settingCompletion: strings.Join(completion, ","),
	})
	if err != nil {
		a.logger.Error("settings.save_failed", map[string]any{"error": err.Error()})
	}
}

func (a *App) applyScenario() {
	s := a.scenario
	if s.Name == "" {
		return
	}
	a.logger.Info("demo.scenario", map[string]any{"scenario": s.Name})
	if s.OpenChallenge != 0 {
		a.view.SetDetail(ui.DetailState{Open: true, Loading: true, ID: s.OpenChallenge})
		a.OnOpenChallenge(s.OpenChallenge)
		if s.OpenHint != 0 {
			a.view.SetHint(ui.HintState{Open: true, Loading: true, ID: s.OpenHint})
			a.OnOpenHint(s.OpenHint)
		}
		if s.SubmitOpen {
			a.view.FlashStatus("Press Tab to type an answer, Enter to submit")
		}
	}
	if s.SolvesOpen {
		a.view.SetSolves(ui.SolvesState{Open: true, Loading: true})
		a.OnOpenSolves()
	}
}

func (a *App) requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), a.cfg.RequestTimeout())
}

// surface logs err and returns the message the view shows for it. An
// authentication failure also raises the auth prompt.
func (a *App) surface(event string, err error) string {
	msg := describe(err)
	fields := map[string]any{"error": err.Error()}
	if kind := api.Kind(err); kind != nil {
		fields["kind"] = kind.Error()
	}
	a.logger.Error(event, fields)
	if errors.Is(err, api.ErrUnauthorized) {
		a.view.SetAuthPrompt(msg)
	}
	return msg
}

func describe(err error) string {
	switch api.Kind(err) {
	case api.ErrUnauthorized:
		return "The backend rejected the credentials"
	case api.ErrNetwork:
		return "Backend unreachable, press r to retry"
	case api.ErrNotFound:
		return "Not found on the backend"
	case api.ErrValidation, api.ErrUnlockDenied:
		if reason := api.Reason(err); reason != "" {
			return reason
		}
		return "The backend rejected the request"
	}
	return err.Error()
}

// discardView stands in for the terminal UI in one-shot commands.
type discardView struct{}

func (discardView) Run() error { return nil }
func (discardView) Stop() {}
func (discardView) SetController(ui.Controller) {}
func (discardView) SetBoard(board.Snapshot) {}
func (discardView) SetDetail(ui.DetailState) {}
func (discardView) SetHint(ui.HintState) {}
func (discardView) SetSolves(ui.SolvesState) {}
func (discardView) SetSubmit(ui.SubmitState) {}
func (discardView) SetAuthPrompt(string) {}
func (discardView) FlashStatus(string) {}

var _ ui.Controller = (*App)(nil)
