package tui

import "github.com/charmbracelet/lipgloss"

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFD700")).
			Background(lipgloss.Color("#1a1a2e")).
			Padding(0, 2)

	statsStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			Background(lipgloss.Color("#1a1a2e"))

	dividerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#333333"))

	emptyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#555555")).
			Padding(1, 2)

	nameStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF"))

	selectedNameStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#FFD700")).
				Bold(true)

	idStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#888888"))

	endpointStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#5599FF"))

	expiryStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#AAAAAA"))

	hotkeysStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#555555")).
			Padding(0, 2)

	messageStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFD700")).
			Padding(0, 2)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF4444")).
			Padding(0, 2)

	// Session state labels
	stateActive   = lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00"))
	stateIdle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	stateBusy     = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFAA00"))
	stateStopped  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000"))
	stateErrored  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4444"))
	ambiguousNote = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFAA00")).Italic(true)

	// Help modal
	helpStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#FFD700")).
			Padding(1, 2).
			Foreground(lipgloss.Color("#FFFFFF"))

	helpHeaderStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFD700")).
			Bold(true)

	helpKeyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#5599FF"))

	helpDescStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#AAAAAA"))

	// Confirmation
	confirmStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFAA00")).
			Padding(0, 2)
)
