package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/zpdzap/boxctl/internal/api"
	"github.com/zpdzap/boxctl/internal/classify"
	"github.com/zpdzap/boxctl/internal/lifecycle"
)

// actionDoneMsg is sent when a dispatched action has been applied, or was
// refused by the controller before anything was sent.
type actionDoneMsg struct {
	challengeID int
	action      api.Op
	outcome     classify.Outcome
	err         error
}

// imagesMsg carries the result of an image listing.
type imagesMsg struct {
	images []string
	err    error
}

// confirmStopExpiredMsg cancels a pending stop confirmation.
type confirmStopExpiredMsg struct{}

// renderTickMsg re-renders so remaining minutes stay current.
type renderTickMsg time.Time

// tickCmd returns a command that sends a tick every second.
func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return renderTickMsg(t)
	})
}

// dispatchCmd runs action on c off the UI goroutine. The controller bounds
// the call with its own deadline.
func dispatchCmd(c *lifecycle.Controller, action api.Op) tea.Cmd {
	return func() tea.Msg {
		o, err := c.Dispatch(context.Background(), action)
		return actionDoneMsg{challengeID: c.ChallengeID(), action: action, outcome: o, err: err}
	}
}

func imagesCmd(l ImageLister, timeout time.Duration) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		images, err := l.Images(ctx)
		return imagesMsg{images: images, err: err}
	}
}
