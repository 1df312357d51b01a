package ui

import (
	"fmt"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/x/ansi"

	"ctfboard/internal/board"
)

const cardHeight = 4

func (r *Root) View() (view tea.View) {
	defer func() {
		if rec := recover(); rec != nil {
			r.onModelPanic("view", rec, nil)
			width := max(1, r.cols)
			msg := "UI recovered from a rendering panic. Check logs."
			view = tea.NewView(r.theme.Fail.Width(width).Render(trimForWidth(msg, max(1, width-1))))
		}
	}()

	v := tea.NewView(r.render())
	v.AltScreen = true
	v.MouseMode = r.currentMouseMode()
	return v
}

func (r *Root) render() string {
	if r.cols < 1 {
		r.cols = 120
	}
	if r.rows < 1 {
		r.rows = 32
	}
	base := r.renderBoard()
	for _, name := range []string{"detail", "solves", "hint", "auth"} {
		spec, ok := r.overlaySpec(name)
		if !ok {
			continue
		}
		panel := r.drawPanel(spec.title, spec.lines, spec.width, spec.height)
		base = composeOverlayAt(base, panel, r.cols, r.rows, spec.startRow, spec.startCol)
	}
	return base
}

func (r *Root) renderBoard() string {
	w, h := r.cols, r.rows
	mode := DetermineLayoutMode(w, h)
	r.layout = mode
	if mode == LayoutTooSmall {
		msg := []string{
			"Terminal too small",
			fmt.Sprintf("Current: %dx%d", w, h),
			"Minimum: 60x16",
		}
		panel := r.drawPanel("Resize Required", msg, min(40, w), min(7, h))
		return lipgloss.Place(w, h, lipgloss.Center, lipgloss.Center, panel)
	}

	header := r.theme.Header.Width(w).Render(trimForWidth(r.headerText(), max(1, w-2)))
	toolbar := r.toolbarLines(w)
	status := r.theme.Status.Width(w).Render(trimForWidth(r.statusText(), max(1, w-2)))

	gridH := max(cardHeight, h-2-len(toolbar))
	grid := r.renderGrid(w, gridH)
	return strings.Join([]string{header, strings.Join(toolbar, "\n"), grid, status}, "\n")
}

func (r *Root) headerText() string {
	agg := r.snap.Aggregates()
	right := fmt.Sprintf("%d/%d shown  %d/%d pts", len(r.visible), len(r.snap.Board.Challenges), agg.SolvedPoints, agg.TotalPoints)
	return r.title + "  " + right
}

func (r *Root) statusText() string {
	if r.statusFlash != "" {
		return r.statusFlash
	}
	return r.help.View(r.keymap)
}

// toolbarLines renders the filter chips, sort selector and points bar.
func (r *Root) toolbarLines(width int) []string {
	f := r.snap.Filter
	var cats []string
	for i, c := range f.Known() {
		label := c
		if i < 9 {
			label = fmt.Sprintf("%d:%s", i+1, c)
		}
		cats = append(cats, r.chip(label, f.HasCategory(c)))
	}
	if len(cats) == 0 {
		cats = append(cats, r.theme.Muted.Render("none yet"))
	}
	line1 := "Categories " + strings.Join(cats, " ")

	agg := r.snap.Aggregates()
	ratio := 0.0
	if agg.TotalPoints > 0 {
		ratio = float64(agg.SolvedPoints) / float64(agg.TotalPoints)
	}
	line2 := strings.Join([]string{
		"Show " + r.chip("c:completed", f.HasCompletion(board.Completed)) + " " + r.chip("n:not completed", f.HasCompletion(board.NotCompleted)),
		"Sort " + r.theme.Accent.Render(string(r.snap.Sort)),
		fmt.Sprintf("Points %d/%d", agg.SolvedPoints, agg.TotalPoints),
		r.pointsBar(max(10, min(30, width/5)), ratio),
	}, "  ")

	line3 := ""
	switch {
	case r.snap.Loading:
		line3 = r.loadSpin.View() + " Loading challenges..."
	case r.snap.LoadErr != nil:
		line3 = r.theme.Fail.Render("Load failed: "+trimForWidth(r.snap.LoadErr.Error(), max(10, width-40))) + r.theme.Muted.Render("  press r to retry")
	case r.snap.Stale:
		line3 = r.theme.Pending.Render("Showing cached board from " + r.snap.LoadedAt.Local().Format("2006-01-02 15:04"))
	case !r.snap.LoadedAt.IsZero():
		line3 = r.theme.Muted.Render("Updated " + r.snap.LoadedAt.Local().Format("15:04:05"))
	}
	return []string{r.theme.Toolbar.Render(line1), r.theme.Toolbar.Render(line2), line3}
}

func (r *Root) chip(label string, on bool) string {
	mark := "[x]"
	if !on {
		mark = "[ ]"
	}
	if on {
		return r.theme.Chip.Render(mark + label)
	}
	return r.theme.ChipOff.Render(mark + label)
}

func (r *Root) pointsBar(width int, ratio float64) string {
	m := r.points
	m.SetWidth(width)
	return m.ViewAs(ratio)
}

func (r *Root) renderGrid(width, height int) string {
	if len(r.visible) == 0 {
		msg := "No challenges match the current filters. Press 0 to show everything."
		if len(r.snap.Board.Challenges) == 0 {
			msg = "No challenges loaded yet."
		}
		return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, r.theme.Muted.Render(msg))
	}

	perRow := gridColumns(r.layout, width)
	cardW := max(16, width/perRow)
	rowsFit := max(1, height/cardHeight)
	cursorRow := r.cursor / perRow
	firstRow := 0
	if cursorRow >= rowsFit {
		firstRow = cursorRow - rowsFit + 1
	}

	var rows []string
	for row := firstRow; row < firstRow+rowsFit; row++ {
		start := row * perRow
		if start >= len(r.visible) {
			break
		}
		end := min(start+perRow, len(r.visible))
		cards := make([]string, 0, end-start)
		for i := start; i < end; i++ {
			cards = append(cards, r.renderCard(r.visible[i], i == r.cursor, cardW))
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, cards...))
	}
	out := strings.Join(rows, "\n")
	lines := strings.Split(out, "\n")
	for len(lines) < height {
		lines = append(lines, "")
	}
	return strings.Join(lines[:height], "\n")
}

func (r *Root) renderCard(c board.Challenge, selected bool, width int) string {
	solved := r.snap.IsSolved(c.ID)
	style := r.theme.Card
	switch {
	case selected:
		style = r.theme.CardSelected
	case solved:
		style = r.theme.CardSolved
	}
	if r.ascii {
		style = style.BorderStyle(lipgloss.NormalBorder())
	}
	inner := max(4, width-4)
	mark := ""
	if solved {
		mark = " " + r.solvedMark()
	}
	name := trimForWidth(c.Name, inner-len([]rune(mark))) + mark
	meta := trimForWidth(fmt.Sprintf("%s  %d pts", c.Category, c.Value), inner)
	return style.Width(width).Render(name + "\n" + meta)
}

func (r *Root) solvedMark() string {
	if r.ascii {
		return "*"
	}
	return "✓"
}

type overlaySpec struct {
	title    string
	lines    []string
	width    int
	height   int
	startRow int
	startCol int
}

func (r *Root) overlaySpec(name string) (overlaySpec, bool) {
	w := min(max(50, r.cols-10), min(100, r.cols))
	var title string
	var lines []string
	switch name {
	case "detail":
		if !r.detail.Open {
			return overlaySpec{}, false
		}
		title = firstNonEmptyStr(r.detail.Detail.Name, "Challenge")
		lines = r.detailLines(w - 2)
	case "hint":
		if !r.hint.Open {
			return overlaySpec{}, false
		}
		w = min(w, 72)
		title = fmt.Sprintf("Hint %d", r.hint.ID)
		lines = r.hintLines(w - 2)
	case "solves":
		if !r.solves.Open {
			return overlaySpec{}, false
		}
		title = "Your Solves"
		lines = r.solvesLines()
	case "auth":
		if r.authMsg == "" {
			return overlaySpec{}, false
		}
		w = min(w, 64)
		title = "Authentication Required"
		lines = []string{
			r.authMsg,
			"",
			"Set an access token with --token or CTFBOARD_TOKEN,",
			"or a session cookie with CTFBOARD_SESSION.",
			"",
			"r: Retry  Esc: Dismiss  q: Quit",
		}
	default:
		return overlaySpec{}, false
	}
	if len(lines) == 0 {
		lines = []string{"(empty)"}
	}
	h := min(len(lines)+2, max(6, r.rows-2))
	spec := overlaySpec{
		title:    title,
		lines:    lines,
		width:    w,
		height:   h,
		startRow: (r.rows - h) / 2,
		startCol: (r.cols - w) / 2,
	}
	if name == "detail" && r.motionLevel != "off" {
		spec.startRow += int((1 - r.overlayPos) * float64(r.rows/2))
	}
	return spec, true
}

func (r *Root) detailLines(width int) []string {
	d := r.detail
	if d.Loading {
		return []string{r.loadSpin.View() + " Loading challenge..."}
	}
	if d.Err != "" {
		return []string{d.Err, "", "r: Reload board  Esc: Close"}
	}
	c := d.Detail
	head := fmt.Sprintf("%s  %d pts  %d solves", c.Category, c.Value, c.SolveCount)
	if d.Solved {
		head += "  " + r.solvedMark() + " solved"
	}
	lines := []string{head}
	if c.MaxAttempts > 0 {
		lines = append(lines, fmt.Sprintf("Attempts %d/%d", c.Attempts, c.MaxAttempts))
	}
	if len(c.Tags) > 0 {
		lines = append(lines, "Tags: "+strings.Join(c.Tags, ", "))
	}
	lines = append(lines, "")
	lines = append(lines, r.renderMarkdown(d.Markdown, width)...)
	if c.ConnectionInfo != "" {
		lines = append(lines, "", "Connection: "+c.ConnectionInfo)
	}
	if len(c.Files) > 0 {
		lines = append(lines, "", "Files:")
		for _, f := range c.Files {
			lines = append(lines, "  "+f)
		}
	}
	if len(d.Links) > 0 {
		arrow := "↗"
		if r.ascii {
			arrow = "->"
		}
		lines = append(lines, "", "Links (open in browser):")
		for _, l := range d.Links {
			lines = append(lines, "  "+arrow+" "+l)
		}
	}
	if len(c.Hints) > 0 {
		var hints []string
		for i, h := range c.Hints {
			cost := "free"
			if h.Cost > 0 {
				cost = fmt.Sprintf("%d pts", h.Cost)
			}
			hints = append(hints, fmt.Sprintf("[%d] %s", i+1, cost))
		}
		lines = append(lines, "", "Hints: "+strings.Join(hints, "  "))
	}
	lines = append(lines, "", ansi.Strip(r.answer.View()))
	if fb := r.submitFeedback(); fb != "" {
		lines = append(lines, fb)
	}
	lines = append(lines, "", "Tab: Answer  Enter: Submit  1-9: Hint  Esc: Close")
	return lines
}

func (r *Root) submitFeedback() string {
	s := r.submit
	switch {
	case s.Pending:
		return "Submitting..."
	case s.Err != "":
		return "! " + s.Err
	case s.Status == board.StatusCorrect || s.Status == board.StatusAlreadySolved:
		return r.solvedMark() + " " + s.Message
	case s.Message != "":
		return "x " + s.Message
	}
	return ""
}

func (r *Root) hintLines(width int) []string {
	h := r.hint
	if h.Loading {
		return []string{"Loading hint..."}
	}
	if h.Hint.ID == 0 && h.Err != "" {
		return []string{h.Err, "", "Esc: Close"}
	}
	if h.Hint.Locked {
		lines := []string{
			"This hint is locked.",
			fmt.Sprintf("Unlocking costs %d points.", h.Hint.Cost),
		}
		if h.Unlocking {
			lines = append(lines, "", "Unlocking...")
		}
		if h.Err != "" {
			lines = append(lines, "", "Unlock denied: "+h.Err)
		}
		return append(lines, "", "u: Unlock  Esc: Close")
	}
	lines := r.renderMarkdown(h.Markdown, width)
	return append(lines, "", "Esc: Close")
}

func (r *Root) solvesLines() []string {
	s := r.solves
	if s.Loading {
		return []string{"Loading solves..."}
	}
	if s.Err != "" {
		return []string{s.Err, "", "Esc: Close"}
	}
	if len(s.Solves) == 0 {
		return []string{"No solves yet.", "", "Esc: Close"}
	}
	lines := make([]string, 0, len(s.Solves)+3)
	total := 0
	for _, sv := range s.Solves {
		total += sv.Value
		date := ""
		if !sv.Date.IsZero() {
			date = sv.Date.Local().Format("2006-01-02 15:04")
		}
		lines = append(lines, fmt.Sprintf("%-28s %-12s %5d  %s", trimForWidth(sv.Name, 28), trimForWidth(sv.Category, 12), sv.Value, date))
	}
	lines = append(lines, "", fmt.Sprintf("%d solves, %d points", len(s.Solves), total), "Esc: Close")
	return lines
}

func (r *Root) renderMarkdown(md string, width int) []string {
	md = strings.TrimSpace(md)
	if md == "" {
		return []string{"(no description)"}
	}
	out := md
	if r.markdown != nil {
		if rendered, err := r.markdown.Render(md); err == nil {
			out = rendered
		}
	}
	var lines []string
	for _, line := range strings.Split(strings.Trim(ansi.Strip(out), "\n"), "\n") {
		lines = append(lines, trimForWidth(strings.TrimRight(line, " "), width))
	}
	return lines
}

func (r *Root) drawPanel(title string, lines []string, width, height int) string {
	width = max(4, width)
	height = max(3, height)
	innerW := width - 2
	innerH := height - 2

	h, v := "─", "│"
	tl, tr, bl, br := "┌", "┐", "└", "┘"
	if r.ascii {
		h, v = "-", "|"
		tl, tr, bl, br = "+", "+", "+", "+"
	}

	top := []rune(tl + strings.Repeat(h, innerW) + tr)
	if title != "" && innerW > 2 {
		for i, ch := range []rune(" " + title + " ") {
			pos := 1 + i
			if pos >= len(top)-1 {
				break
			}
			top[pos] = ch
		}
	}

	out := make([]string, 0, height)
	out = append(out, r.theme.PanelBorder.Render(string(top)))
	for row := 0; row < innerH; row++ {
		line := ""
		if row < len(lines) {
			line = lines[row]
		}
		out = append(out, r.theme.PanelBorder.Render(v)+r.theme.PanelBody.Render(padRune(line, innerW))+r.theme.PanelBorder.Render(v))
	}
	out = append(out, r.theme.PanelBorder.Render(bl+strings.Repeat(h, innerW)+br))
	return strings.Join(out, "\n")
}

// composeOverlayAt writes overlay over base at the given cell. Both are
// reduced to plain text first.
func composeOverlayAt(base, overlay string, cols, rows, startRow, startCol int) string {
	if cols <= 0 || rows <= 0 {
		return base
	}
	baseLines := strings.Split(ansi.Strip(base), "\n")
	for len(baseLines) < rows {
		baseLines = append(baseLines, "")
	}
	for i := 0; i < rows; i++ {
		baseLines[i] = padRune(baseLines[i], cols)
	}

	overlayLines := strings.Split(strings.TrimRight(ansi.Strip(overlay), "\n"), "\n")
	startRow = max(0, startRow)
	startCol = max(0, startCol)
	for i, line := range overlayLines {
		row := startRow + i
		if row >= rows {
			break
		}
		dst := []rune(baseLines[row])
		for j, ch := range []rune(line) {
			if startCol+j >= len(dst) {
				break
			}
			dst[startCol+j] = ch
		}
		baseLines[row] = string(dst)
	}
	return strings.Join(baseLines[:rows], "\n")
}

func padRune(s string, width int) string {
	if width <= 0 {
		return ""
	}
	r := []rune(strings.ReplaceAll(s, "\t", "    "))
	if len(r) > width {
		r = r[:width]
	}
	if len(r) < width {
		r = append(r, []rune(strings.Repeat(" ", width-len(r)))...)
	}
	return string(r)
}

func trimForWidth(s string, width int) string {
	if width <= 0 {
		return ""
	}
	r := []rune(strings.ReplaceAll(ansi.Strip(s), "\n", " "))
	if len(r) <= width {
		return string(r)
	}
	if width == 1 {
		return "…"
	}
	return string(r[:width-1]) + "…"
}

func firstNonEmptyStr(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return a
	}
	return b
}

func clampIndex(i, n int) int {
	if n <= 0 || i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
