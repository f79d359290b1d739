package ui

import "github.com/charmbracelet/lipgloss"

var (
	ColorCyan    = lipgloss.Color("#00BFFF")
	ColorEmerald = lipgloss.Color("#04B575")
	ColorAmber   = lipgloss.Color("#FFCC00")
	ColorHotPink = lipgloss.Color("#FF5F87")
	ColorDimGray = lipgloss.Color("#626262")
	ColorSilver  = lipgloss.Color("#A0A0A0")
)

var (
	ColorPrimary = ColorCyan
	ColorSuccess = ColorEmerald
	ColorWarning = ColorAmber
	ColorError   = ColorHotPink
	ColorMuted   = ColorDimGray
)

// Text styles.
var (
	TitleStyle   = lipgloss.NewStyle().Bold(true)
	StepStyle    = lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary)
	SuccessStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorSuccess)
	WarningStyle = lipgloss.NewStyle().Foreground(ColorWarning)
	ErrorStyle   = lipgloss.NewStyle().Bold(true).Foreground(ColorError)
	MutedStyle   = lipgloss.NewStyle().Foreground(ColorMuted)
)

// Panel styles.
var (
	PanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorPrimary).
			Padding(0, 1)

	PanelSuccessStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(ColorSuccess).
				Padding(0, 1)
)

// Table styles.
var (
	TableHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary).Padding(0, 1)
	TableCellStyle   = lipgloss.NewStyle().Padding(0, 1)
	TableBorderStyle = lipgloss.NewStyle().Foreground(ColorSilver)
)
