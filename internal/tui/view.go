package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/zpdzap/boxctl/internal/lifecycle"
	"github.com/zpdzap/boxctl/internal/session"
)

func (m model) View() string {
	if m.quitting {
		return ""
	}

	controllers := m.manager.List()
	now := m.clock()

	// Header, always shown
	title := "boxctl"
	stats := statsStyle.Render(summarize(controllers))
	gap := m.width - lipgloss.Width(title) - lipgloss.Width(stats) - 4
	if gap < 1 {
		gap = 1
	}
	header := headerStyle.Width(m.width).Render(title + strings.Repeat(" ", gap) + stats)

	var b strings.Builder
	b.WriteString(header)
	b.WriteString("\n")

	if len(controllers) == 0 {
		b.WriteString(emptyStyle.Render("No challenges configured. Add them to .boxctl/config.yaml."))
		b.WriteString("\n")
	}
	for i, c := range controllers {
		b.WriteString(m.renderRow(i, c, now))
		b.WriteString("\n")
	}

	b.WriteString(dividerStyle.Render(strings.Repeat("─", m.width)))
	b.WriteString("\n")

	// Hotkeys
	switch {
	case m.commanding:
		b.WriteString(hotkeysStyle.Render("[enter] execute  [esc] cancel"))
	case m.confirmStop:
		b.WriteString(confirmStyle.Render(fmt.Sprintf("Stop sandbox for #%d? Press x again to confirm, any other key to cancel", m.confirmStopID)))
	default:
		b.WriteString(hotkeysStyle.Render("[↑↓] select  [r]equest  re[n]ew  [R]eset  [x] stop  [i]mages  [/] command  [?] help  [q] quit"))
	}
	b.WriteString("\n")

	m.renderStatusAndInput(&b)

	if m.showHelp {
		return m.renderHelpOverlay(b.String())
	}
	return b.String()
}

// summarize counts running sandboxes for the header.
func summarize(controllers []*lifecycle.Controller) string {
	active := 0
	for _, c := range controllers {
		if c.Session().Endpoint != nil {
			active++
		}
	}
	return fmt.Sprintf("%d challenges · %d running", len(controllers), active)
}

func (m model) renderRow(index int, c *lifecycle.Controller, now time.Time) string {
	s := c.Session()

	cursor := "  "
	nStyle := nameStyle
	if index == m.cursor {
		cursor = "▸ "
		nStyle = selectedNameStyle
	}

	name := s.Name
	if name == "" {
		name = "challenge"
	}

	var parts []string
	parts = append(parts, fmt.Sprintf("  %s%s %s", cursor, idStyle.Render(fmt.Sprintf("#%d", s.ChallengeID)), nStyle.Render(name)))

	if c.InFlight() || s.State.Transient() {
		parts = append(parts, m.spinner.View()+stateBusy.Render(string(s.State)))
	} else {
		icon, style := stateIcon(s.Display())
		parts = append(parts, style.Render(icon+" "+string(s.Display())))
	}

	if s.Endpoint != nil {
		parts = append(parts, endpointStyle.Render(s.Endpoint.String()))
		parts = append(parts, renderExpiry(s, now))
	}

	if s.Ambiguous {
		parts = append(parts, ambiguousNote.Render("outcome unknown (rate limited)"))
	} else if s.Display() == session.StateErrored && s.LastError != nil && s.LastError.Message != "" {
		parts = append(parts, stateErrored.Render(s.LastError.Message))
	}

	return strings.Join(parts, "  ")
}

// renderExpiry shows remaining minutes and the local wall-clock expiry.
// Minutes are always derived from the server's expiry, never counted down.
func renderExpiry(s session.Session, now time.Time) string {
	if s.Expired(now) {
		return stateStopped.Render("expired")
	}
	minutes, ok := s.RemainingMinutes(now)
	if !ok {
		return ""
	}
	return expiryStyle.Render(fmt.Sprintf("%dm left (until %s)", minutes, s.ExpiresAt.Local().Format("15:04")))
}

func stateIcon(state session.State) (string, lipgloss.Style) {
	switch state {
	case session.StateActive:
		return "●", stateActive
	case session.StateStopped:
		return "○", stateStopped
	case session.StateErrored:
		return "✗", stateErrored
	case session.StateRequesting, session.StateMutating:
		return "◌", stateBusy
	default:
		return "·", stateIdle
	}
}

func (m model) renderStatusAndInput(b *strings.Builder) {
	if m.message != "" {
		if m.isError {
			b.WriteString(errorStyle.Render(m.message))
		} else {
			b.WriteString(messageStyle.Render(m.message))
		}
		b.WriteString("\n")
	}
	if m.commanding {
		b.WriteString("  ")
		b.WriteString(m.input.View())
		b.WriteString("\n")
	}
}

func (m model) renderHelpOverlay(base string) string {
	help := strings.Join([]string{
		helpHeaderStyle.Render("Navigation"),
		helpKeyStyle.Render("  ↑/k  ↓/j") + helpDescStyle.Render("   Select challenge"),
		"",
		helpHeaderStyle.Render("Actions"),
		helpKeyStyle.Render("  r") + helpDescStyle.Render("           Request a sandbox"),
		helpKeyStyle.Render("  n") + helpDescStyle.Render("           Renew (extend expiry)"),
		helpKeyStyle.Render("  R") + helpDescStyle.Render("           Reset (fresh sandbox)"),
		helpKeyStyle.Render("  x") + helpDescStyle.Render("           Stop (press twice)"),
		helpKeyStyle.Render("  i") + helpDescStyle.Render("           List images"),
		"",
		helpHeaderStyle.Render("Commands"),
		helpKeyStyle.Render("  /") + helpDescStyle.Render("           Open command bar"),
		helpDescStyle.Render("  /request [id]  /renew [id]"),
		helpDescStyle.Render("  /reset [id]    /stop [id]"),
		helpDescStyle.Render("  /images"),
		"",
		helpKeyStyle.Render("  q") + helpDescStyle.Render("  quit") + "     " + helpKeyStyle.Render("?") + helpDescStyle.Render("  close this help"),
	}, "\n")

	modal := helpStyle.Render(help)

	// Center the modal over the base view
	modalWidth := lipgloss.Width(modal)
	modalHeight := lipgloss.Height(modal)

	baseLines := strings.Split(base, "\n")
	for len(baseLines) < m.height {
		baseLines = append(baseLines, "")
	}

	xOffset := max(0, (m.width-modalWidth)/2)
	yOffset := max(0, (m.height-modalHeight)/2)

	modalLines := strings.Split(modal, "\n")
	for i, mLine := range modalLines {
		row := yOffset + i
		if row < len(baseLines) {
			padding := strings.Repeat(" ", xOffset)
			baseLines[row] = padding + mLine + strings.Repeat(" ", max(0, m.width-xOffset-lipgloss.Width(mLine)))
		}
	}

	return strings.Join(baseLines, "\n")
}
