// Package tui renders workflow state in the terminal with Bubble Tea.
package tui

import (
	"sort"

	"github.com/charmbracelet/lipgloss"

	"github.com/hugo-lorenzo-mato/rocotoviewer/internal/core"
)

// Theme is a named colour palette.
type Theme struct {
	Name       string
	Primary    lipgloss.Color
	Secondary  lipgloss.Color
	Success    lipgloss.Color
	Warning    lipgloss.Color
	Error      lipgloss.Color
	Text       lipgloss.Color
	TextMuted  lipgloss.Color
	Border     lipgloss.Color
	Background lipgloss.Color
	Highlight  lipgloss.Color
}

var themes = map[string]Theme{
	"default": {
		Name:       "default",
		Primary:    lipgloss.Color("#7C3AED"),
		Secondary:  lipgloss.Color("#06B6D4"),
		Success:    lipgloss.Color("#10B981"),
		Warning:    lipgloss.Color("#F59E0B"),
		Error:      lipgloss.Color("#EF4444"),
		Text:       lipgloss.Color("#E5E7EB"),
		TextMuted:  lipgloss.Color("#9CA3AF"),
		Border:     lipgloss.Color("#374151"),
		Background: lipgloss.Color("#1F2937"),
		Highlight:  lipgloss.Color("#374151"),
	},
	"dark": {
		Name:       "dark",
		Primary:    lipgloss.Color("#A78BFA"),
		Secondary:  lipgloss.Color("#22D3EE"),
		Success:    lipgloss.Color("#34D399"),
		Warning:    lipgloss.Color("#FBBF24"),
		Error:      lipgloss.Color("#F87171"),
		Text:       lipgloss.Color("#F3F4F6"),
		TextMuted:  lipgloss.Color("#6B7280"),
		Border:     lipgloss.Color("#1F2937"),
		Background: lipgloss.Color("#111827"),
		Highlight:  lipgloss.Color("#1F2937"),
	},
	"light": {
		Name:       "light",
		Primary:    lipgloss.Color("#6D28D9"),
		Secondary:  lipgloss.Color("#0891B2"),
		Success:    lipgloss.Color("#059669"),
		Warning:    lipgloss.Color("#D97706"),
		Error:      lipgloss.Color("#DC2626"),
		Text:       lipgloss.Color("#1F2937"),
		TextMuted:  lipgloss.Color("#6B7280"),
		Border:     lipgloss.Color("#D1D5DB"),
		Background: lipgloss.Color("#F9FAFB"),
		Highlight:  lipgloss.Color("#E5E7EB"),
	},
}

// ThemeByName returns the named theme, or the default theme and false.
func ThemeByName(name string) (Theme, bool) {
	t, ok := themes[name]
	if !ok {
		return themes["default"], false
	}
	return t, true
}

// ThemeNames lists the built-in themes.
func ThemeNames() []string {
	names := make([]string, 0, len(themes))
	for n := range themes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Styles are the lipgloss styles derived from a Theme.
type Styles struct {
	Header    lipgloss.Style
	Tab       lipgloss.Style
	TabActive lipgloss.Style
	Footer    lipgloss.Style
	Task      lipgloss.Style
	Selected  lipgloss.Style
	Detail    lipgloss.Style
	Banner    lipgloss.Style
	LogBox    lipgloss.Style
	Search    lipgloss.Style
	Status    map[core.TaskStatus]lipgloss.Style
	Level     map[string]lipgloss.Style
}

// NewStyles builds the styles for t.
func NewStyles(t Theme) Styles {
	plain := lipgloss.NewStyle().Foreground(t.Text)
	return Styles{
		Header: lipgloss.NewStyle().
			Bold(true).
			Foreground(t.Primary).
			Background(t.Background).
			Padding(0, 1),
		Tab:       lipgloss.NewStyle().Foreground(t.TextMuted).Padding(0, 1),
		TabActive: lipgloss.NewStyle().Foreground(t.Primary).Bold(true).Underline(true).Padding(0, 1),
		Footer:    lipgloss.NewStyle().Foreground(t.TextMuted),
		Task:      plain.PaddingLeft(2),
		Selected: lipgloss.NewStyle().
			Foreground(t.Text).
			Background(t.Highlight).
			Bold(true).
			PaddingLeft(2),
		Detail: lipgloss.NewStyle().Foreground(t.TextMuted).Italic(true).PaddingLeft(4),
		Banner: lipgloss.NewStyle().Foreground(t.Error).Bold(true),
		LogBox: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(t.Border),
		Search: lipgloss.NewStyle().Foreground(t.Warning),
		Status: map[core.TaskStatus]lipgloss.Style{
			core.TaskStatusPending:   lipgloss.NewStyle().Foreground(t.TextMuted),
			core.TaskStatusRunning:   lipgloss.NewStyle().Foreground(t.Secondary).Bold(true),
			core.TaskStatusSucceeded: lipgloss.NewStyle().Foreground(t.Success),
			core.TaskStatusFailed:    lipgloss.NewStyle().Foreground(t.Error).Bold(true),
			core.TaskStatusDead:      lipgloss.NewStyle().Foreground(t.Error).Strikethrough(true),
			core.TaskStatusUnknown:   lipgloss.NewStyle().Foreground(t.TextMuted).Italic(true),
		},
		Level: map[string]lipgloss.Style{
			core.LogLevelDebug: lipgloss.NewStyle().Foreground(t.TextMuted),
			core.LogLevelInfo:  plain,
			core.LogLevelWarn:  lipgloss.NewStyle().Foreground(t.Warning),
			core.LogLevelError: lipgloss.NewStyle().Foreground(t.Error),
		},
	}
}

// statusIcon returns an icon for a task status.
func statusIcon(status core.TaskStatus) string {
	switch status {
	case core.TaskStatusPending:
		return "○"
	case core.TaskStatusRunning:
		return "●"
	case core.TaskStatusSucceeded:
		return "✓"
	case core.TaskStatusFailed:
		return "✗"
	case core.TaskStatusDead:
		return "☠"
	default:
		return "?"
	}
}
