package main

import (
	"fmt"
	"strconv"

	"charm.land/lipgloss/v2"
	"charm.land/lipgloss/v2/table"
	"github.com/spf13/cobra"

	"ctfboard/internal/app"
	"ctfboard/internal/board"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#F4D35E"))
	passStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#3BCEAC"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#EE6352"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#8D99AE"))
)

// challengesCmd prints the filtered, sorted board once.
var challengesCmd = &cobra.Command{
	Use:   "challenges",
	Short: "Print the challenge board and exit",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		a, err := app.NewHeadless(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		if err := a.Reload(ctx); err != nil {
			return err
		}
		progress, err := a.Progress(ctx)
		if err != nil {
			return err
		}

		snap := a.Snapshot()
		border := lipgloss.RoundedBorder()
		if cfg.ASCIIOnly {
			border = lipgloss.ASCIIBorder()
		}
		t := table.New().
			Border(border).
			BorderStyle(mutedStyle).
			Headers("ID", "NAME", "CATEGORY", "POINTS", "SOLVES", "STATUS", "ATTEMPTS").
			StyleFunc(func(row, col int) lipgloss.Style {
				if row == table.HeaderRow {
					return headerStyle.Padding(0, 1)
				}
				return lipgloss.NewStyle().Padding(0, 1)
			})
		for _, c := range snap.Visible() {
			status := "open"
			if snap.IsSolved(c.ID) {
				status = passStyle.Render("solved")
			}
			attempts := ""
			if p, ok := progress[c.ID]; ok {
				attempts = strconv.Itoa(p.Attempts)
			}
			t.Row(strconv.Itoa(c.ID), c.Name, c.Category, strconv.Itoa(c.Value), strconv.Itoa(c.SolveCount), status, attempts)
		}

		out := cmd.OutOrStdout()
		lipgloss.Fprintln(out, t.Render())
		agg := snap.Aggregates()
		fmt.Fprintf(out, "%d/%d shown  %d/%d points  sort %s\n",
			len(snap.Visible()), len(snap.Board.Challenges), agg.SolvedPoints, agg.TotalPoints, snap.Sort)
		if hidden := snap.Filter.Hidden(); len(hidden) > 0 {
			lipgloss.Fprintln(out, mutedStyle.Render(fmt.Sprintf("hidden categories: %v", hidden)))
		}
		return nil
	},
}

var submitCmd = &cobra.Command{
	Use:   "submit <challenge-id> <answer>",
	Short: "Submit one answer and print the verdict",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.Atoi(args[0])
		if err != nil || id <= 0 {
			return fmt.Errorf("invalid challenge id %q", args[0])
		}
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		a, err := app.NewHeadless(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		out, err := a.SubmitAnswer(cmd.Context(), id, args[1])
		if err != nil {
			return err
		}
		style := failStyle
		if out.Result.Status == board.StatusCorrect || out.Result.Status == board.StatusAlreadySolved {
			style = passStyle
		}
		lipgloss.Fprintln(cmd.OutOrStdout(), style.Render(fmt.Sprintf("[%s] %s", out.Result.Status, out.Message)))
		return nil
	},
}
