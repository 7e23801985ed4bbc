package tui

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/zpdzap/boxctl/internal/config"
	"github.com/zpdzap/boxctl/internal/lifecycle"
)

// Run opens a controller for every configured challenge and runs the
// dashboard until the user quits.
func Run(mgr *lifecycle.Manager, cfg *config.Config, images ImageLister) error {
	for _, ch := range cfg.Challenges {
		mgr.Open(ch.ID, ch.Name)
	}

	p := tea.NewProgram(newModel(mgr, images, cfg.Platform.CallTimeout()), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	running := 0
	now := time.Now()
	for _, c := range mgr.List() {
		if s := c.Session(); s.Endpoint != nil && !s.Expired(now) {
			running++
		}
	}
	if running > 0 {
		fmt.Printf("Goodbye! (%d sandbox(es) left running until they expire; use boxctl stop to end one early)\n", running)
	} else {
		fmt.Println("Goodbye!")
	}
	return nil
}
