package tui

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/zpdzap/boxctl/internal/api"
	"github.com/zpdzap/boxctl/internal/lifecycle"
)

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = msg.Width - 6 // account for "  > /" prefix
		return m, nil

	case renderTickMsg:
		return m, tickCmd()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case actionDoneMsg:
		m.message, m.isError = describeAction(msg)
		return m, nil

	case imagesMsg:
		switch {
		case msg.err != nil:
			m.message = fmt.Sprintf("images: %v", msg.err)
			m.isError = true
		case len(msg.images) == 0:
			m.message = "No images available"
			m.isError = false
		default:
			m.message = "Images: " + strings.Join(msg.images, ", ")
			m.isError = false
		}
		return m, nil

	case confirmStopExpiredMsg:
		m.confirmStop = false
		m.confirmStopID = 0
		return m, nil

	case tea.KeyMsg:
		if m.commanding {
			return m.handleCommandMode(msg)
		}
		return m.handleNormalMode(msg)
	}

	// Forward to input if in command mode
	if m.commanding {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

// describeAction turns a finished dispatch into the status line.
func describeAction(msg actionDoneMsg) (string, bool) {
	if msg.err != nil && isGuard(msg.err) {
		return fmt.Sprintf("#%d %v", msg.challengeID, msg.err), true
	}
	return fmt.Sprintf("#%d %s", msg.challengeID, msg.outcome.Summary()), !msg.outcome.Success()
}

// isGuard reports whether err means nothing was sent.
func isGuard(err error) bool {
	return errors.Is(err, lifecycle.ErrBusy) ||
		errors.Is(err, lifecycle.ErrControlDisabled) ||
		errors.Is(err, lifecycle.ErrPrecondition) ||
		errors.Is(err, lifecycle.ErrUnknownAction)
}

// handleNormalMode handles keys when navigating the challenge list.
func (m model) handleNormalMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Dismiss help modal
	if m.showHelp {
		if msg.String() == "?" || msg.String() == "esc" {
			m.showHelp = false
			return m, nil
		}
		// While help is showing, ignore other keys
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil
	}

	// If confirming a stop, second x confirms, anything else cancels
	if m.confirmStop {
		m.confirmStop = false
		id := m.confirmStopID
		m.confirmStopID = 0
		if msg.String() == "x" {
			return m.dispatch(id, api.OpStop)
		}
		return m, nil
	}

	switch msg.String() {
	case "ctrl+c", "q":
		m.quitting = true
		return m, tea.Quit

	case "/":
		m.commanding = true
		m.input.Focus()
		m.input.SetValue("")
		return m, textinput.Blink

	case "r":
		return m.dispatchSelected(api.OpRequest)

	case "n":
		return m.dispatchSelected(api.OpRenew)

	case "R":
		return m.dispatchSelected(api.OpReset)

	case "x":
		c, ok := m.selected()
		if !ok {
			return m, nil
		}
		if !c.Control(api.OpStop).Available() {
			m.message = fmt.Sprintf("#%d has no running sandbox to stop", c.ChallengeID())
			m.isError = true
			return m, nil
		}
		m.confirmStop = true
		m.confirmStopID = c.ChallengeID()
		return m, tea.Tick(2*time.Second, func(t time.Time) tea.Msg {
			return confirmStopExpiredMsg{}
		})

	case "i":
		return m.listImages()

	case "?":
		m.showHelp = !m.showHelp
		return m, nil

	case "up", "k":
		controllers := m.manager.List()
		if m.cursor > 0 {
			m.cursor--
		} else if len(controllers) > 0 {
			m.cursor = len(controllers) - 1
		}
		return m, nil

	case "down", "j":
		controllers := m.manager.List()
		if m.cursor < len(controllers)-1 {
			m.cursor++
		}
		return m, nil
	}

	return m, nil
}

// handleCommandMode handles keys when the command input is active.
func (m model) handleCommandMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "esc":
		m.commanding = false
		m.input.Blur()
		m.input.SetValue("")
		return m, nil

	case "enter":
		m.commanding = false
		m.input.Blur()
		return m.processInput()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m model) processInput() (tea.Model, tea.Cmd) {
	input := strings.TrimSpace(m.input.Value())
	m.input.SetValue("")

	if input == "" {
		return m, nil
	}

	// Allow commands with or without the / prefix
	if input[0] != '/' {
		input = "/" + input
	}
	cmd := ParseCommand(input)
	if cmd == nil {
		return m, nil
	}

	switch cmd.Name {
	case "/request", "/renew", "/reset", "/stop":
		action := api.Op(strings.TrimPrefix(cmd.Name, "/"))
		if len(cmd.Args) == 0 {
			return m.dispatchSelected(action)
		}
		id, err := strconv.Atoi(cmd.Args[0])
		if err != nil {
			m.message = fmt.Sprintf("Usage: %s [challenge id]", cmd.Name)
			m.isError = true
			return m, nil
		}
		return m.dispatch(id, action)

	case "/images":
		return m.listImages()

	case "/help":
		m.showHelp = true
		return m, nil

	case "/quit":
		m.quitting = true
		return m, tea.Quit

	default:
		m.message = fmt.Sprintf("Unknown command: %s", cmd.Name)
		m.isError = true
		return m, nil
	}
}

func (m model) dispatchSelected(action api.Op) (tea.Model, tea.Cmd) {
	c, ok := m.selected()
	if !ok {
		m.message = "No challenge selected"
		m.isError = true
		return m, nil
	}
	return m.dispatch(c.ChallengeID(), action)
}

// dispatch hands action to the challenge's controller. Obvious refusals are
// reported right away; the controller re-checks under its own lock.
func (m model) dispatch(challengeID int, action api.Op) (tea.Model, tea.Cmd) {
	c, ok := m.manager.Get(challengeID)
	if !ok {
		m.message = fmt.Sprintf("Challenge #%d is not configured", challengeID)
		m.isError = true
		return m, nil
	}
	if c.InFlight() {
		m.message = fmt.Sprintf("#%d %v", challengeID, lifecycle.ErrBusy)
		m.isError = true
		return m, nil
	}
	if !c.Control(action).Available() {
		sess := c.Session()
		m.message = fmt.Sprintf("#%d cannot %s while %s", challengeID, action, sess.Display())
		m.isError = true
		return m, nil
	}
	m.message = fmt.Sprintf("#%d %s...", challengeID, action)
	m.isError = false
	return m, dispatchCmd(c, action)
}

func (m model) listImages() (tea.Model, tea.Cmd) {
	if m.images == nil {
		m.message = "Image listing is not available"
		m.isError = true
		return m, nil
	}
	m.message = "Listing images..."
	m.isError = false
	return m, imagesCmd(m.images, m.timeout)
}
