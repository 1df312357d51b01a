package ui

import "charm.land/lipgloss/v2"

type Theme struct {
	Header       lipgloss.Style
	Status       lipgloss.Style
	Toolbar      lipgloss.Style
	PanelBorder  lipgloss.Style
	PanelBody    lipgloss.Style
	Card         lipgloss.Style
	CardSolved   lipgloss.Style
	CardSelected lipgloss.Style
	Chip         lipgloss.Style
	ChipOff      lipgloss.Style
	Accent       lipgloss.Style
	Pass         lipgloss.Style
	Fail         lipgloss.Style
	Pending      lipgloss.Style
	Muted        lipgloss.Style
}

type palette struct {
	bar, bar2, text, muted   string
	accent, pass, fail, warn string
	border                   string
	cardBorder               lipgloss.Border
}

func DefaultTheme() Theme {
	return ThemeForVariant("modern_arcade")
}

func ThemeForVariant(variant string) Theme {
	switch variant {
	case "cozy_clean":
		return buildTheme(palette{
			bar: "#1E2430", bar2: "#30394A", text: "#F4F6FA", muted: "#A3ACC2",
			accent: "#86B6F6", pass: "#80C4A3", fail: "#D17A86", warn: "#F2B872",
			border: "#4A5972", cardBorder: lipgloss.RoundedBorder(),
		})
	case "retro_terminal":
		return buildTheme(palette{
			bar: "#07150A", bar2: "#12301A", text: "#C5F7C4", muted: "#73A17A",
			accent: "#9CF5A2", pass: "#9CF5A2", fail: "#FF6B6B", warn: "#E5D47A",
			border: "#1F5C2F", cardBorder: lipgloss.NormalBorder(),
		})
	default:
		return buildTheme(palette{
			bar: "#0E1420", bar2: "#1B2740", text: "#EAF2FF", muted: "#9CAAC6",
			accent: "#5EEBFF", pass: "#67F0A8", fail: "#FF6F91", warn: "#FFC857",
			border: "#4B5F8A", cardBorder: lipgloss.RoundedBorder(),
		})
	}
}

func buildTheme(p palette) Theme {
	c := lipgloss.Color
	card := lipgloss.NewStyle().
		BorderStyle(p.cardBorder).
		BorderForeground(c(p.border)).
		Foreground(c(p.text)).
		Padding(0, 1)
	return Theme{
		Header:       lipgloss.NewStyle().Background(c(p.bar)).Foreground(c(p.text)).Padding(0, 1),
		Status:       lipgloss.NewStyle().Background(c(p.bar2)).Foreground(c(p.text)).Padding(0, 1),
		Toolbar:      lipgloss.NewStyle().Foreground(c(p.text)),
		PanelBorder:  lipgloss.NewStyle().Foreground(c(p.border)),
		PanelBody:    lipgloss.NewStyle().Foreground(c(p.text)),
		Card:         card,
		CardSolved:   card.BorderForeground(c(p.pass)),
		CardSelected: card.BorderForeground(c(p.accent)).Bold(true),
		Chip:         lipgloss.NewStyle().Foreground(c(p.accent)).Bold(true),
		ChipOff:      lipgloss.NewStyle().Foreground(c(p.muted)).Strikethrough(true),
		Accent:       lipgloss.NewStyle().Foreground(c(p.accent)).Bold(true),
		Pass:         lipgloss.NewStyle().Foreground(c(p.pass)).Bold(true),
		Fail:         lipgloss.NewStyle().Foreground(c(p.fail)).Bold(true),
		Pending:      lipgloss.NewStyle().Foreground(c(p.warn)),
		Muted:        lipgloss.NewStyle().Foreground(c(p.muted)),
	}
}
