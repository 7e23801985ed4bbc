package tui

import (
	"context"
	"os"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/zpdzap/boxctl/internal/lifecycle"
	"golang.org/x/term"
)

// ImageLister lists the images the platform can start sandboxes from.
// *api.Client satisfies it.
type ImageLister interface {
	Images(ctx context.Context) ([]string, error)
}

// model is the Bubble Tea model for the boxctl dashboard.
type model struct {
	manager    *lifecycle.Manager
	images     ImageLister
	timeout    time.Duration
	clock      func() time.Time
	input      textinput.Model
	spinner    spinner.Model
	cursor     int
	message    string
	isError    bool
	commanding bool // true when in command mode (/ pressed)
	quitting   bool
	width      int
	height     int

	// Help modal
	showHelp bool

	// Double-press stop confirmation
	confirmStop   bool
	confirmStopID int
}

func newModel(mgr *lifecycle.Manager, images ImageLister, timeout time.Duration) model {
	ti := textinput.New()
	ti.Placeholder = "request, renew, reset, stop [id] | images | quit"
	ti.CharLimit = 256
	ti.Width = 80
	// Input starts unfocused, activated by pressing /
	ti.Blur()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = stateBusy

	// Get initial terminal size so the first render isn't at width=0
	w, h, _ := term.GetSize(int(os.Stdout.Fd()))
	if w == 0 {
		w = 80
	}
	if h == 0 {
		h = 24
	}
	if timeout <= 0 {
		timeout = lifecycle.DefaultTimeout
	}

	return model{
		manager: mgr,
		images:  images,
		timeout: timeout,
		clock:   time.Now,
		input:   ti,
		spinner: sp,
		width:   w,
		height:  h,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(tickCmd(), m.spinner.Tick)
}

// selected returns the controller under the cursor.
func (m model) selected() (*lifecycle.Controller, bool) {
	controllers := m.manager.List()
	if m.cursor < 0 || m.cursor >= len(controllers) {
		return nil, false
	}
	return controllers[m.cursor], true
}
