package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// Palette shared by the call screen and the one-line helpers.
var (
	Primary   = lipgloss.Color("#22d3ee") // cyan
	Secondary = lipgloss.Color("#7C3AED") // violet
	Success   = lipgloss.Color("#10B981")
	Warning   = lipgloss.Color("#F59E0B")
	Error     = lipgloss.Color("#EF4444")
	Muted     = lipgloss.Color("#6B7280")
	Light     = lipgloss.Color("#F9FAFB")
)

var (
	TitleStyle   = lipgloss.NewStyle().Bold(true).Foreground(Primary)
	BoldStyle    = lipgloss.NewStyle().Bold(true)
	MutedStyle   = lipgloss.NewStyle().Foreground(Muted)
	WarningStyle = lipgloss.NewStyle().Foreground(Warning)
	ErrorStyle   = lipgloss.NewStyle().Foreground(Error).Bold(true)
	SuccessStyle = lipgloss.NewStyle().Foreground(Success).Bold(true)
	SpinnerStyle = lipgloss.NewStyle().Foreground(Primary)
	FooterStyle  = lipgloss.NewStyle().Foreground(Muted).MarginTop(1)

	// StatusStyle renders the call state as a badge.
	StatusStyle = lipgloss.NewStyle().
			Foreground(Light).
			Background(Secondary).
			Padding(0, 1).
			Bold(true)

	SelfStyle = lipgloss.NewStyle().Foreground(Primary).Bold(true)
	PeerStyle = lipgloss.NewStyle().Foreground(Secondary).Bold(true)

	SuccessBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(Success).
			Padding(1, 2)
)

// Remote track table rows alternate between two shades.
var (
	TableHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(Primary).Align(lipgloss.Center)
	TableRowStyle    = lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("255"))
	TableRowAltStyle = lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("245"))
)

const (
	IconSuccess = "✅"
	IconError   = "❌"
	IconWarning = "⚠️"
	IconLink    = "🔗"
	IconRoom    = "🚪"
	IconPeer    = "👤"
	IconCall    = "📞"
	IconChat    = "💬"
	IconMic     = "🎙️"
	IconMuted   = "🔇"
	IconCamera  = "📷"
	IconNoVideo = "🚫"
)

func PrintError(msg string) {
	fmt.Printf("%s %s\n", ErrorStyle.Render(IconError), ErrorStyle.Render(msg))
}

func PrintWarning(msg string) {
	fmt.Printf("%s %s\n", WarningStyle.Render(IconWarning), WarningStyle.Render(msg))
}

func PrintSuccess(msg string) {
	fmt.Printf("%s %s\n", SuccessStyle.Render(IconSuccess), msg)
}
