package ui

import (
	"fmt"
	"os"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"charm.land/bubbles/v2/help"
	"charm.land/bubbles/v2/key"
	"charm.land/bubbles/v2/progress"
	"charm.land/bubbles/v2/spinner"
	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/harmonica"
	clog "github.com/charmbracelet/log"

	"ctfboard/internal/board"
)

type applyMsg struct {
	fn func(*Root)
}

type animateMsg time.Time

type boardKeyMap struct {
	Open         key.Binding
	Reload       key.Binding
	Solves       key.Binding
	Completed    key.Binding
	NotCompleted key.Binding
	Categories   key.Binding
	ResetFilters key.Binding
	Sort         key.Binding
	Help         key.Binding
	Quit         key.Binding
}

func (k boardKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Open, k.Reload, k.Solves, k.Categories, k.Sort, k.Help, k.Quit}
}

func (k boardKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Open, k.Reload, k.Solves},
		{k.Categories, k.Completed, k.NotCompleted, k.ResetFilters, k.Sort},
		{k.Help, k.Quit},
	}
}

// Root is the bubbletea model for the board. It never mutates board state;
// it renders the snapshots it is handed and forwards intents to the
// controller.
type Root struct {
	theme       Theme
	ascii       bool
	title       string
	ctrl        Controller
	motionLevel string
	mouseScope  string

	mu      sync.Mutex
	program *tea.Program
	running bool

	layout LayoutMode
	cols   int
	rows   int

	snap    board.Snapshot
	visible []board.Challenge
	cursor  int

	detail      DetailState
	hint        HintState
	solves      SolvesState
	submit      SubmitState
	authMsg     string
	statusFlash string

	answer     textinput.Model
	help       help.Model
	keymap     boardKeyMap
	points     progress.Model
	loadSpin   spinner.Model
	markdown   *glamour.TermRenderer
	logger     *clog.Logger
	overlayPos float64
	overlayVel float64
	spring     harmonica.Spring

	lastInputEvent string
}

type Options struct {
	ASCIIOnly    bool
	Debug        bool
	Title        string
	StyleVariant string
	MotionLevel  string
	MouseScope   string
}

func New(opts Options) *Root {
	logger := clog.NewWithOptions(os.Stderr, clog.Options{Prefix: "ctfboard-ui", Level: clog.WarnLevel})
	if opts.Debug {
		logger.SetLevel(clog.DebugLevel)
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(72),
	)
	if err != nil {
		renderer = nil
	}

	h := help.New()
	h.Styles = help.DefaultDarkStyles()
	motionLevel := normalizeMotionLevel(opts.MotionLevel)
	theme := ThemeForVariant(normalizeStyleVariant(opts.StyleVariant))
	spring := harmonica.NewSpring(harmonica.FPS(60), 9.0, 0.85)
	switch motionLevel {
	case "reduced":
		spring = harmonica.NewSpring(harmonica.FPS(30), 9.0, 0.92)
	case "off":
		spring = harmonica.NewSpring(harmonica.FPS(60), 1000.0, 1.0)
	}
	points := progress.New(
		progress.WithWidth(20),
		progress.WithColors(lipgloss.Color("#5EC2FF"), lipgloss.Color("#79E6A6")),
		progress.WithScaled(true),
	)
	loadSpin := spinner.New(
		spinner.WithSpinner(spinner.MiniDot),
		spinner.WithStyle(theme.Accent),
	)
	answer := textinput.New()
	answer.Placeholder = "flag{...}"
	answer.Prompt = "Answer: "
	answer.CharLimit = 512
	answer.SetWidth(48)

	title := strings.TrimSpace(opts.Title)
	if title == "" {
		title = "ctfboard"
	}

	r := &Root{
		theme:       theme,
		ascii:       opts.ASCIIOnly,
		title:       title,
		motionLevel: motionLevel,
		mouseScope:  normalizeMouseScope(opts.MouseScope),
		layout:      LayoutWide,
		cols:        120,
		rows:        32,
		answer:      answer,
		help:        h,
		points:      points,
		loadSpin:    loadSpin,
		markdown:    renderer,
		logger:      logger,
		spring:      spring,
	}
	r.keymap = boardKeyMap{
		Open:         key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open")),
		Reload:       key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		Solves:       key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "solves")),
		Completed:    key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "completed")),
		NotCompleted: key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "not completed")),
		Categories:   key.NewBinding(key.WithKeys("1", "2", "3", "4", "5", "6", "7", "8", "9"), key.WithHelp("1-9", "category")),
		ResetFilters: key.NewBinding(key.WithKeys("0"), key.WithHelp("0", "all filters")),
		Sort:         key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "sort")),
		Help:         key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:         key.NewBinding(key.WithKeys("q", "ctrl+q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
	return r
}

func (r *Root) Init() tea.Cmd {
	return spinnerTickCmd(r.loadSpin)
}

func (r *Root) Update(msg tea.Msg) (model tea.Model, cmd tea.Cmd) {
	defer func() {
		if rec := recover(); rec != nil {
			r.onModelPanic("update", rec, msg)
			model = r
			cmd = nil
		}
	}()

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		r.cols = msg.Width
		r.rows = msg.Height
		r.layout = DetermineLayoutMode(r.cols, r.rows)
		r.help.SetWidth(msg.Width)
		return r, nil
	case applyMsg:
		if msg.fn != nil {
			msg.fn(r)
		}
		return r, r.animateIfNeeded()
	case animateMsg:
		target := r.overlayTarget()
		r.overlayPos, r.overlayVel = r.spring.Update(r.overlayPos, r.overlayVel, target)
		if r.shouldAnimate(target) {
			return r, animateTickCmd()
		}
		r.overlayPos = target
		r.overlayVel = 0
		return r, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		r.loadSpin, cmd = r.loadSpin.Update(msg)
		return r, cmd
	case tea.PasteMsg:
		return r.handlePaste(msg)
	case tea.MouseWheelMsg:
		return r.handleMouseWheel(msg)
	case tea.KeyPressMsg:
		return r.handleKey(msg)
	}
	if r.answer.Focused() {
		var cmd tea.Cmd
		r.answer, cmd = r.answer.Update(msg)
		return r, cmd
	}
	return r, nil
}

func (r *Root) Run() error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return nil
	}
	p := tea.NewProgram(r)
	r.program = p
	r.running = true
	r.mu.Unlock()

	_, err := p.Run()

	r.mu.Lock()
	r.program = nil
	r.running = false
	r.mu.Unlock()
	return err
}

func (r *Root) Stop() {
	r.mu.Lock()
	p := r.program
	r.mu.Unlock()
	if p != nil {
		p.Quit()
	}
}

func (r *Root) SetController(c Controller) {
	r.ctrl = c
}

func (r *Root) SetBoard(snap board.Snapshot) {
	r.apply(func(m *Root) {
		if snap.Version != 0 && snap.Version < m.snap.Version {
			return
		}
		m.snap = snap
		m.visible = snap.Visible()
		m.cursor = clampIndex(m.cursor, len(m.visible))
		if m.detail.Open {
			m.detail.Solved = m.detail.Solved || snap.IsSolved(m.detail.ID)
		}
	})
}

func (r *Root) SetDetail(state DetailState) {
	r.apply(func(m *Root) {
		if state.Open && !state.Loading && (!m.detail.Open || m.detail.ID != state.ID) {
			return
		}
		if state.Open && (!m.detail.Open || m.detail.ID != state.ID) {
			m.submit = SubmitState{}
			m.answer.Reset()
			m.answer.Blur()
		}
		m.detail = state
		if !state.Open {
			m.answer.Blur()
		}
	})
}

func (r *Root) SetHint(state HintState) {
	r.apply(func(m *Root) {
		if state.Open && !state.Loading && (!m.hint.Open || m.hint.ID != state.ID) {
			return
		}
		m.hint = state
	})
}

func (r *Root) SetSolves(state SolvesState) {
	r.apply(func(m *Root) {
		if state.Open && !state.Loading && !m.solves.Open {
			return
		}
		m.solves = state
	})
}

func (r *Root) SetSubmit(state SubmitState) {
	r.apply(func(m *Root) {
		m.submit = state
		if state.ClearInput {
			m.answer.Reset()
		}
	})
}

func (r *Root) SetAuthPrompt(message string) {
	r.apply(func(m *Root) {
		m.authMsg = message
	})
}

func (r *Root) FlashStatus(msg string) {
	r.apply(func(m *Root) {
		m.statusFlash = msg
	})
}

func (r *Root) apply(fn func(*Root)) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	p := r.program
	running := r.running
	if !running || p == nil {
		fn(r)
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()
	p.Send(applyMsg{fn: fn})
}

func (r *Root) dispatchController(fn func(Controller)) {
	if fn == nil || r.ctrl == nil {
		return
	}
	ctrl := r.ctrl
	go fn(ctrl)
}

func (r *Root) handleKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	r.recordInputEvent(fmt.Sprintf("key:%v mod:%v text:%q", msg.Code, msg.Mod, msg.Text))

	if (msg.Code == 'q' || msg.Code == 'c') && msg.Mod&tea.ModCtrl != 0 {
		r.dispatchController(func(c Controller) { c.OnQuit() })
		return r, nil
	}

	switch r.topOverlay() {
	case "auth":
		return r.handleAuthKey(msg)
	case "hint":
		return r.handleHintKey(msg)
	case "solves":
		return r.handleSolvesKey(msg)
	case "detail":
		return r.handleDetailKey(msg)
	}
	return r.handleBoardKey(msg)
}

func (r *Root) handleAuthKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.Code == tea.KeyEsc || msg.Code == tea.KeyEnter:
		r.authMsg = ""
	case msg.Mod == 0 && msg.Code == 'r':
		r.authMsg = ""
		r.dispatchController(func(c Controller) { c.OnReload() })
	case msg.Mod == 0 && msg.Code == 'q':
		r.dispatchController(func(c Controller) { c.OnQuit() })
	}
	return r, nil
}

func (r *Root) handleHintKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.Code == tea.KeyEsc || (msg.Mod == 0 && msg.Code == 'q'):
		r.hint = HintState{}
	case msg.Mod == 0 && msg.Code == 'u':
		if !r.hint.Hint.Locked || r.hint.Unlocking || r.hint.Loading {
			return r, nil
		}
		id := r.hint.ID
		r.hint.Unlocking = true
		r.hint.Err = ""
		r.dispatchController(func(c Controller) { c.OnUnlockHint(id) })
	}
	return r, nil
}

func (r *Root) handleSolvesKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	if msg.Code == tea.KeyEsc || (msg.Mod == 0 && (msg.Code == 'q' || msg.Code == 's')) {
		r.solves = SolvesState{}
	}
	return r, nil
}

func (r *Root) handleDetailKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	if r.answer.Focused() {
		switch msg.Code {
		case tea.KeyEsc:
			r.answer.Blur()
			return r, nil
		case tea.KeyEnter:
			r.submitAnswer()
			return r, nil
		}
		var cmd tea.Cmd
		r.answer, cmd = r.answer.Update(msg)
		return r, cmd
	}

	switch {
	case msg.Code == tea.KeyEsc || (msg.Mod == 0 && msg.Code == 'q'):
		r.closeDetail()
		return r, r.animateIfNeeded()
	case msg.Code == tea.KeyTab || (msg.Mod == 0 && msg.Code == 'a'):
		if r.detail.Loading || r.detail.Err != "" {
			return r, nil
		}
		return r, r.answer.Focus()
	case msg.Mod == 0 && msg.Code >= '1' && msg.Code <= '9':
		idx := int(msg.Code - '1')
		if idx >= len(r.detail.Detail.Hints) {
			return r, nil
		}
		id := r.detail.Detail.Hints[idx].ID
		r.hint = HintState{Open: true, Loading: true, ID: id}
		r.dispatchController(func(c Controller) { c.OnOpenHint(id) })
	case msg.Mod == 0 && msg.Code == 'r':
		r.dispatchController(func(c Controller) { c.OnReload() })
	}
	return r, nil
}

func (r *Root) handleBoardKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	perRow := gridColumns(r.layout, r.cols)
	switch msg.Code {
	case tea.KeyUp:
		r.moveCursor(-perRow)
		return r, nil
	case tea.KeyDown:
		r.moveCursor(perRow)
		return r, nil
	case tea.KeyLeft:
		r.moveCursor(-1)
		return r, nil
	case tea.KeyRight, tea.KeyTab:
		r.moveCursor(1)
		return r, nil
	case tea.KeyEsc:
		r.statusFlash = ""
		return r, nil
	}

	switch {
	case key.Matches(msg, r.keymap.Open):
		r.openSelected()
		return r, r.animateIfNeeded()
	case key.Matches(msg, r.keymap.Reload):
		r.dispatchController(func(c Controller) { c.OnReload() })
	case key.Matches(msg, r.keymap.Solves):
		r.solves = SolvesState{Open: true, Loading: true}
		r.dispatchController(func(c Controller) { c.OnOpenSolves() })
	case key.Matches(msg, r.keymap.Completed):
		r.dispatchController(func(c Controller) { c.OnToggleCompletion(board.Completed) })
	case key.Matches(msg, r.keymap.NotCompleted):
		r.dispatchController(func(c Controller) { c.OnToggleCompletion(board.NotCompleted) })
	case key.Matches(msg, r.keymap.Categories):
		known := r.snap.Filter.Known()
		idx := int(msg.Code - '1')
		if idx >= 0 && idx < len(known) {
			category := known[idx]
			r.dispatchController(func(c Controller) { c.OnToggleCategory(category) })
		}
	case key.Matches(msg, r.keymap.ResetFilters):
		r.dispatchController(func(c Controller) { c.OnResetFilters() })
	case key.Matches(msg, r.keymap.Sort):
		r.dispatchController(func(c Controller) { c.OnCycleSort() })
	case key.Matches(msg, r.keymap.Help):
		r.help.ShowAll = !r.help.ShowAll
	case key.Matches(msg, r.keymap.Quit):
		r.dispatchController(func(c Controller) { c.OnQuit() })
	case msg.Mod == 0 && (msg.Code == 'k' || msg.Code == 'j' || msg.Code == 'h' || msg.Code == 'l'):
		step := map[rune]int{'k': -perRow, 'j': perRow, 'h': -1, 'l': 1}[msg.Code]
		r.moveCursor(step)
	}
	return r, nil
}

func (r *Root) handlePaste(msg tea.PasteMsg) (tea.Model, tea.Cmd) {
	r.recordInputEvent(fmt.Sprintf("paste:%d", len(msg.Content)))
	if !r.answer.Focused() || r.topOverlay() != "detail" {
		return r, nil
	}
	var cmd tea.Cmd
	r.answer, cmd = r.answer.Update(msg)
	return r, cmd
}

func (r *Root) handleMouseWheel(msg tea.MouseWheelMsg) (tea.Model, tea.Cmd) {
	mouse := msg.Mouse()
	r.recordInputEvent(fmt.Sprintf("mouse_wheel:%d,%d button:%v", mouse.X, mouse.Y, mouse.Button))
	if r.mouseScope == "off" || r.topOverlay() != "" {
		return r, nil
	}
	perRow := gridColumns(r.layout, r.cols)
	switch mouse.Button {
	case tea.MouseWheelUp:
		r.moveCursor(-perRow)
	case tea.MouseWheelDown:
		r.moveCursor(perRow)
	}
	return r, nil
}

func (r *Root) openSelected() {
	if len(r.visible) == 0 {
		return
	}
	id := r.visible[clampIndex(r.cursor, len(r.visible))].ID
	r.detail = DetailState{Open: true, Loading: true, ID: id}
	r.submit = SubmitState{}
	r.answer.Reset()
	r.answer.Blur()
	r.dispatchController(func(c Controller) { c.OnOpenChallenge(id) })
}

func (r *Root) closeDetail() {
	r.detail = DetailState{}
	r.hint = HintState{}
	r.submit = SubmitState{}
	r.answer.Reset()
	r.answer.Blur()
	r.dispatchController(func(c Controller) { c.OnCloseChallenge() })
}

func (r *Root) submitAnswer() {
	if r.submit.Pending || r.detail.Loading {
		return
	}
	value := r.answer.Value()
	if strings.TrimSpace(value) == "" {
		r.submit = SubmitState{Err: "Enter an answer first"}
		return
	}
	id := r.detail.ID
	r.submit = SubmitState{Pending: true}
	r.dispatchController(func(c Controller) { c.OnSubmit(id, value) })
}

func (r *Root) moveCursor(delta int) {
	if len(r.visible) == 0 {
		r.cursor = 0
		return
	}
	next := r.cursor + delta
	if next < 0 || next >= len(r.visible) {
		return
	}
	r.cursor = next
}

// topOverlay names the dialog that receives keys. Later dialogs stack on
// earlier ones: a hint opens from a challenge, the auth prompt covers all.
func (r *Root) topOverlay() string {
	switch {
	case r.authMsg != "":
		return "auth"
	case r.hint.Open:
		return "hint"
	case r.solves.Open:
		return "solves"
	case r.detail.Open:
		return "detail"
	}
	return ""
}

func (r *Root) overlayTarget() float64 {
	if r.detail.Open {
		return 1
	}
	return 0
}

func (r *Root) animateIfNeeded() tea.Cmd {
	if r.shouldAnimate(r.overlayTarget()) {
		return animateTickCmd()
	}
	return nil
}

func (r *Root) shouldAnimate(target float64) bool {
	if r.motionLevel == "off" {
		r.overlayPos = target
		r.overlayVel = 0
		return false
	}
	if target > 0 {
		return r.overlayPos < 0.999 || abs(r.overlayVel) > 0.001
	}
	return r.overlayPos > 0.001 || abs(r.overlayVel) > 0.001
}

func animateTickCmd() tea.Cmd {
	return tea.Tick(time.Second/60, func(t time.Time) tea.Msg { return animateMsg(t) })
}

func spinnerTickCmd(model spinner.Model) tea.Cmd {
	return func() tea.Msg {
		return model.Tick()
	}
}

func (r *Root) currentMouseMode() tea.MouseMode {
	switch r.mouseScope {
	case "off":
		return tea.MouseModeNone
	case "full":
		return tea.MouseModeCellMotion
	default:
		if r.answer.Focused() {
			return tea.MouseModeNone
		}
		return tea.MouseModeCellMotion
	}
}

func normalizeStyleVariant(v string) string {
	switch strings.TrimSpace(v) {
	case "cozy_clean", "retro_terminal", "modern_arcade":
		return strings.TrimSpace(v)
	default:
		return "modern_arcade"
	}
}

func normalizeMotionLevel(v string) string {
	switch strings.TrimSpace(v) {
	case "off", "reduced", "full":
		return strings.TrimSpace(v)
	default:
		return "full"
	}
}

func normalizeMouseScope(v string) string {
	switch strings.TrimSpace(v) {
	case "off", "scoped", "full":
		return strings.TrimSpace(v)
	default:
		return "scoped"
	}
}

func (r *Root) recordInputEvent(event string) {
	r.lastInputEvent = trimForWidth(strings.TrimSpace(event), 160)
}

func (r *Root) onModelPanic(where string, recovered any, msg tea.Msg) {
	if r.statusFlash == "" {
		r.statusFlash = "Recovered UI panic"
	}
	msgType := ""
	if msg != nil {
		msgType = fmt.Sprintf("%T", msg)
	}
	r.logger.Error("ui.panic_recovered",
		"where", where,
		"panic", fmt.Sprintf("%v", recovered),
		"message_type", msgType,
		"overlay", r.topOverlay(),
		"cols", r.cols,
		"rows", r.rows,
		"last_input", r.lastInputEvent,
		"stack", string(debug.Stack()),
	)
}

var _ tea.Model = (*Root)(nil)
var _ View = (*Root)(nil)
