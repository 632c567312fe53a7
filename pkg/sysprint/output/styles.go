package output

import "github.com/charmbracelet/lipgloss"

// Color constants using the ANSI 256-color palette.
const (
	ColorPrimary = lipgloss.Color("39")
	ColorAdded   = lipgloss.Color("42")
	ColorChanged = lipgloss.Color("214")
	ColorDeleted = lipgloss.Color("196")
	ColorMuted   = lipgloss.Color("245")
)

// Box styles for grouped content.
var (
	// HeaderBox frames the compared project ids.
	HeaderBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorPrimary).
			Padding(0, 1).
			MarginBottom(1)

	// FooterBox frames the summary counts.
	FooterBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorMuted).
			Padding(0, 1).
			MarginTop(1)
)

// Text styles.
var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary)

	LabelStyle = lipgloss.NewStyle().
			Foreground(ColorMuted)

	ValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	MutedStyle = lipgloss.NewStyle().
			Foreground(ColorMuted)

	PathStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	SizeStyle = lipgloss.NewStyle().
			Foreground(ColorPrimary)

	AddedStyle = lipgloss.NewStyle().
			Foreground(ColorAdded).
			Bold(true)

	DeletedStyle = lipgloss.NewStyle().
			Foreground(ColorDeleted).
			Bold(true)

	ModifiedStyle = lipgloss.NewStyle().
			Foreground(ColorChanged).
			Bold(true)
)
