package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/zpdzap/boxctl/internal/api"
	"github.com/zpdzap/boxctl/internal/config"
	"github.com/zpdzap/boxctl/internal/lifecycle"
	"github.com/zpdzap/boxctl/internal/session"
)

// app is everything a command needs once the config is loaded.
type app struct {
	projectDir string
	cfg        *config.Config
	store      *session.Store
	client     *api.Client
	logger     *log.Logger
}

func loadApp(projectDir string, logOut io.Writer, component string) (*app, error) {
	cfg, err := config.Load(projectDir)
	if err != nil {
		return nil, fmt.Errorf("not a boxctl directory (run `boxctl init` first): %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger, err := newLogger(logOut, cfg.Logging.Level, component)
	if err != nil {
		return nil, err
	}

	client := api.New(cfg.Platform.URL,
		api.WithSession(cfg.Platform.Session),
		api.WithCSRF(cfg.Platform.CSRF),
		api.WithLogger(logger.WithPrefix("api")),
	)

	return &app{
		projectDir: projectDir,
		cfg:        cfg,
		store:      session.NewStore(filepath.Join(projectDir, config.Dir, config.StateFile)),
		client:     client,
		logger:     logger,
	}, nil
}

// manager builds a lifecycle manager seeded from the state cache. A cache
// that cannot be read is logged and ignored; the server is the source of
// truth and a request reattaches to any running sandbox.
func (a *app) manager() *lifecycle.Manager {
	cached, err := a.store.Load(time.Now())
	if err != nil {
		a.logger.Warn("ignoring session cache", "path", a.store.Path(), "error", err)
		cached = nil
	}
	return lifecycle.NewManager(lifecycle.Options{
		Client:  a.client,
		Saver:   a.store,
		Timeout: a.cfg.Platform.CallTimeout(),
		Logger:  a.logger.WithPrefix("lifecycle"),
	}, cached)
}

func openLogFile(projectDir string) (*os.File, error) {
	dir := filepath.Join(projectDir, config.Dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", dir, err)
	}
	path := filepath.Join(dir, config.LogFile)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	return f, nil
}

func newLogger(w io.Writer, rawLevel, component string) (*log.Logger, error) {
	levelName := strings.TrimSpace(strings.ToLower(rawLevel))
	if levelName == "" {
		levelName = "info"
	}
	level, err := log.ParseLevel(levelName)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", rawLevel, err)
	}
	logger := log.NewWithOptions(w, log.Options{
		Level:           level,
		Formatter:       log.TextFormatter,
		ReportTimestamp: true,
	})
	return logger.With("component", component), nil
}
