package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const accentColor = "#7aa2f7"

var timArt = []string{
	" ████████╗ ██╗ ███╗   ███╗",
	" ╚══██╔══╝ ██║ ████╗ ████║",
	"    ██║    ██║ ██╔████╔██║",
	"    ██║    ██║ ██║╚██╔╝██║",
	"    ██║    ██║ ██║ ╚═╝ ██║",
	"    ╚═╝    ╚═╝ ╚═╝     ╚═╝",
}

// Styles holds the lipgloss styles for the terminal client.
type Styles struct {
	Banner    lipgloss.Style
	User      lipgloss.Style
	Assistant lipgloss.Style
	System    lipgloss.Style
	Error     lipgloss.Style
	Separator lipgloss.Style
	StatusBar lipgloss.Style
}

// DefaultStyles returns the default style configuration.
func DefaultStyles() Styles {
	return Styles{
		Banner:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(accentColor)),
		User:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86")),
		Assistant: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")),
		System:    lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("240")),
		Error:     lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		Separator: lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		StatusBar: lipgloss.NewStyle().Foreground(lipgloss.Color("250")),
	}
}

// RenderBanner returns the styled ASCII banner.
func (s Styles) RenderBanner() string {
	var b strings.Builder
	for _, line := range timArt {
		b.WriteString(s.Banner.Render(line))
		b.WriteString("\n")
	}
	return b.String()
}
