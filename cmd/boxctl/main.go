package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zpdzap/boxctl/internal/config"
	"github.com/zpdzap/boxctl/internal/tui"
)

func main() {
	root := &cobra.Command{
		Use:          "boxctl",
		Short:        "boxctl: manage per-challenge sandboxes on a CTF platform",
		SilenceUsage: true,
		RunE:         runTUI,
	}

	root.AddCommand(
		initCmd(),
		actionCmd("request", "Start a sandbox for a challenge (reattaches if one is running)"),
		actionCmd("renew", "Extend a running sandbox's expiry"),
		actionCmd("reset", "Replace a running sandbox with a fresh one"),
		actionCmd("stop", "Stop a running sandbox"),
		statusCmd(),
		imagesCmd(),
		devServerCmd(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func initCmd() *cobra.Command {
	var (
		url        string
		sessionID  string
		csrf       string
		challenges []string
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize boxctl in the current directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			projectDir, err := os.Getwd()
			if err != nil {
				return err
			}

			if config.Exists(projectDir) {
				fmt.Println("boxctl already initialized in this directory.")
				return nil
			}

			cfg := &config.Config{
				Version: "1",
				Platform: config.Platform{
					URL:     url,
					Session: sessionID,
					CSRF:    csrf,
					Timeout: config.DefaultTimeout,
				},
				Logging: config.Logging{Level: "info"},
			}
			for _, raw := range challenges {
				ch, err := parseChallengeFlag(raw)
				if err != nil {
					return err
				}
				cfg.Challenges = append(cfg.Challenges, config.Challenge{ID: ch.id, Name: ch.value})
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			if err := config.Save(projectDir, cfg); err != nil {
				return fmt.Errorf("saving config: %w", err)
			}

			if err := updateGitignore(projectDir); err != nil {
				return fmt.Errorf("updating .gitignore: %w", err)
			}

			fmt.Printf("Initialized boxctl for %s (%d challenges)\n", cfg.Platform.URL, len(cfg.Challenges))
			fmt.Printf("  Config: %s/%s\n", config.Dir, config.ConfigFile)
			if cfg.Platform.Session == "" {
				fmt.Printf("  No session cookie stored; set %s before running commands.\n", config.EnvSession)
			}
			fmt.Println("\nRun `boxctl` to launch the dashboard.")
			return nil
		},
	}
	cmd.Flags().StringVar(&url, "url", "http://127.0.0.1:8000", "platform base URL")
	cmd.Flags().StringVar(&sessionID, "session", "", "platform session cookie")
	cmd.Flags().StringVar(&csrf, "csrf", "", "platform CSRF nonce")
	cmd.Flags().StringArrayVar(&challenges, "challenge", nil, "challenge as id=name (repeatable)")
	return cmd
}

// updateGitignore keeps credentials and local state out of version control.
func updateGitignore(projectDir string) error {
	gitignorePath := filepath.Join(projectDir, ".gitignore")

	entries := []string{
		config.Dir + "/" + config.ConfigFile,
		config.Dir + "/" + config.StateFile,
		config.Dir + "/" + config.LogFile,
	}

	existing, _ := os.ReadFile(gitignorePath)
	content := string(existing)

	var toAdd []string
	for _, entry := range entries {
		if !strings.Contains(content, entry) {
			toAdd = append(toAdd, entry)
		}
	}

	if len(toAdd) == 0 {
		return nil
	}

	if len(content) > 0 && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}

	content += "\n# boxctl\n"
	for _, entry := range toAdd {
		content += entry + "\n"
	}

	return os.WriteFile(gitignorePath, []byte(content), 0o644)
}

func runTUI(cmd *cobra.Command, args []string) error {
	projectDir, err := os.Getwd()
	if err != nil {
		return err
	}

	logFile, err := openLogFile(projectDir)
	if err != nil {
		return err
	}
	defer logFile.Close()

	a, err := loadApp(projectDir, logFile, "dashboard")
	if err != nil {
		return err
	}
	a.logger.Info("dashboard started", "url", a.cfg.Platform.URL, "challenges", len(a.cfg.Challenges))

	return tui.Run(a.manager(), a.cfg, a.client)
}

type challengeFlag struct {
	id    int
	value string
}

// parseChallengeFlag parses "id=value".
func parseChallengeFlag(raw string) (challengeFlag, error) {
	idPart, value, ok := strings.Cut(raw, "=")
	if !ok || strings.TrimSpace(value) == "" {
		return challengeFlag{}, fmt.Errorf("challenge %q: want id=value", raw)
	}
	id, err := parseChallengeID(idPart)
	if err != nil {
		return challengeFlag{}, err
	}
	return challengeFlag{id: id, value: strings.TrimSpace(value)}, nil
}

func parseChallengeID(raw string) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("challenge id %q is not a number", raw)
	}
	if id <= 0 {
		return 0, errors.New("challenge id must be positive")
	}
	return id, nil
}
