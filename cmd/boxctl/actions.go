package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/zpdzap/boxctl/internal/api"
	"github.com/zpdzap/boxctl/internal/classify"
	"github.com/zpdzap/boxctl/internal/lifecycle"
	"github.com/zpdzap/boxctl/internal/session"
)

// actionCmd runs one lifecycle action and exits non-zero unless it succeeded.
func actionCmd(op api.Op, short string) *cobra.Command {
	return &cobra.Command{
		Use:   string(op) + " <challenge-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseChallengeID(args[0])
			if err != nil {
				return err
			}
			projectDir, err := os.Getwd()
			if err != nil {
				return err
			}
			a, err := loadApp(projectDir, os.Stderr, "cli")
			if err != nil {
				return err
			}

			name := ""
			if ch, ok := a.cfg.Challenge(id); ok {
				name = ch.Name
			}
			c := a.manager().Open(id, name)

			outcome, err := c.Dispatch(cmd.Context(), op)
			if errors.Is(err, lifecycle.ErrPrecondition) && op != api.OpRequest {
				return fmt.Errorf("%w (no known sandbox; `boxctl request %d` reattaches to a running one)", err, id)
			}
			if err != nil && outcome.Kind == "" {
				return err
			}
			printOutcome(cmd.OutOrStdout(), c.Session(), outcome, time.Now())
			return err
		},
	}
}

// printOutcome writes the result of one action for a human.
func printOutcome(w io.Writer, s session.Session, o classify.Outcome, now time.Time) {
	fmt.Fprintf(w, "#%d %s\n", s.ChallengeID, o.Summary())
	if s.Endpoint == nil {
		return
	}
	fmt.Fprintf(w, "  endpoint: %s\n", s.Endpoint)
	if minutes, ok := s.RemainingMinutes(now); ok {
		fmt.Fprintf(w, "  expires:  %s (%d min)\n", s.ExpiresAt.Local().Format("15:04:05"), minutes)
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show known sandboxes from the local cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			projectDir, err := os.Getwd()
			if err != nil {
				return err
			}
			a, err := loadApp(projectDir, os.Stderr, "cli")
			if err != nil {
				return err
			}
			now := time.Now()
			sessions, err := a.store.List(now)
			if err != nil {
				return fmt.Errorf("reading session cache: %w", err)
			}

			// Configured challenges without a cached session are not requested.
			known := make(map[int]bool, len(sessions))
			for _, s := range sessions {
				known[s.ChallengeID] = true
			}
			for _, ch := range a.cfg.Challenges {
				if !known[ch.ID] {
					sessions = append(sessions, *session.New(ch.ID, ch.Name))
				}
			}
			sort.Slice(sessions, func(i, j int) bool {
				return sessions[i].ChallengeID < sessions[j].ChallengeID
			})
			printStatus(cmd.OutOrStdout(), sessions, now)
			return nil
		},
	}
}

func printStatus(w io.Writer, sessions []session.Session, now time.Time) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSTATE\tENDPOINT\tEXPIRES")
	for _, s := range sessions {
		endpoint, expires := "-", "-"
		if s.Endpoint != nil {
			endpoint = s.Endpoint.String()
			if minutes, ok := s.RemainingMinutes(now); ok {
				expires = fmt.Sprintf("%s (%d min)", s.ExpiresAt.Local().Format("15:04"), minutes)
			}
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", s.ChallengeID, s.Name, s.Display(), endpoint, expires)
	}
	tw.Flush()
}


func imagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "images",
		Short: "List images the platform can start sandboxes from",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			projectDir, err := os.Getwd()
			if err != nil {
				return err
			}
			a, err := loadApp(projectDir, os.Stderr, "cli")
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.Platform.CallTimeout())
			defer cancel()
			images, err := a.client.Images(ctx)
			if err != nil {
				return fmt.Errorf("listing images: %w", err)
			}
			for _, img := range images {
				fmt.Fprintln(cmd.OutOrStdout(), img)
			}
			return nil
		},
	}
}
