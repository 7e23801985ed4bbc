package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/zpdzap/boxctl/internal/fakeplatform"
)

func devServerCmd() *cobra.Command {
	var (
		addr       string
		hostname   string
		expiration time.Duration
		challenges []string
		images     []string
		cookie     string
		team       int
		csrf       string
		rateLimit  bool
		logLevel   string
	)
	cmd := &cobra.Command{
		Use:   "dev-server",
		Short: "Run an in-memory platform speaking the containers plugin API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(os.Stderr, logLevel, "dev-server")
			if err != nil {
				return err
			}

			chals := make(map[int]string, len(challenges))
			for _, raw := range challenges {
				ch, err := parseChallengeFlag(raw)
				if err != nil {
					return err
				}
				chals[ch.id] = ch.value
			}
			if len(images) == 0 {
				// Every challenge image is available unless told otherwise.
				for _, img := range chals {
					images = append(images, img)
				}
				sort.Strings(images)
			}

			srv := fakeplatform.New(fakeplatform.Config{
				Hostname:   hostname,
				Expiration: expiration,
				Challenges: chals,
				Images:     images,
				Sessions:   map[string]int{cookie: team},
				CSRF:       csrf,
				RateLimit:  rateLimit,
				Logger:     logger,
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			httpSrv := &http.Server{
				Addr:              addr,
				Handler:           srv.Handler(),
				ReadHeaderTimeout: 5 * time.Second,
			}
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				httpSrv.Shutdown(shutdownCtx)
			}()

			logger.Info("listening", "addr", addr, "challenges", len(chals), "session", cookie, "csrf", csrf)
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			logger.Info("stopped")
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8000", "listen address")
	cmd.Flags().StringVar(&hostname, "hostname", "localhost", "hostname reported for sandboxes")
	cmd.Flags().DurationVar(&expiration, "expiration", 45*time.Minute, "sandbox lifetime before renew is needed")
	cmd.Flags().StringArrayVar(&challenges, "challenge", nil, "challenge as id=image (repeatable)")
	cmd.Flags().StringArrayVar(&images, "image", nil, "pulled image (repeatable; defaults to every challenge image)")
	cmd.Flags().StringVar(&cookie, "session", "dev", "session cookie accepted as a logged-in team")
	cmd.Flags().IntVar(&team, "team", 1, "team id for the session cookie")
	cmd.Flags().StringVar(&csrf, "csrf", "dev", "CSRF nonce required on POST (empty disables)")
	cmd.Flags().BoolVar(&rateLimit, "rate-limit", true, "enforce per-route rate limits")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	return cmd
}
