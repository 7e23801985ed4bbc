package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	Dir        = ".boxctl"
	ConfigFile = "config.yaml"
	StateFile  = "state.json"
	LogFile    = "boxctl.log"
)

// DefaultTimeout bounds every lifecycle call when the config leaves it unset.
const DefaultTimeout = 15 * time.Second

type Config struct {
	Version    string      `yaml:"version"`
	Platform   Platform    `yaml:"platform"`
	Challenges []Challenge `yaml:"challenges"`
	Logging    Logging     `yaml:"logging"`
}

type Platform struct {
	URL     string        `yaml:"url"`
	Session string        `yaml:"session,omitempty"`
	CSRF    string        `yaml:"csrf,omitempty"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

type Challenge struct {
	ID   int    `yaml:"id"`
	Name string `yaml:"name"`
}

type Logging struct {
	Level string `yaml:"level,omitempty"`
}

// CallTimeout returns the configured per-call deadline, or DefaultTimeout.
func (p Platform) CallTimeout() time.Duration {
	if p.Timeout <= 0 {
		return DefaultTimeout
	}
	return p.Timeout
}

// Challenge looks up a configured challenge by id.
func (c *Config) Challenge(id int) (Challenge, bool) {
	for _, ch := range c.Challenges {
		if ch.ID == id {
			return ch, true
		}
	}
	return Challenge{}, false
}

// Validate checks that the platform URL is usable and challenge ids are unique.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Platform.URL) == "" {
		return errors.New("platform.url is required")
	}
	u, err := url.Parse(c.Platform.URL)
	if err != nil {
		return fmt.Errorf("platform.url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("platform.url must be http or https, got %q", u.Scheme)
	}
	seen := make(map[int]bool, len(c.Challenges))
	for _, ch := range c.Challenges {
		if ch.ID <= 0 {
			return fmt.Errorf("challenge %q has invalid id %d", ch.Name, ch.ID)
		}
		if seen[ch.ID] {
			return fmt.Errorf("challenge id %d listed twice", ch.ID)
		}
		seen[ch.ID] = true
	}
	return nil
}

// Load reads config from .boxctl/config.yaml relative to projectDir and
// applies environment overrides.
func Load(projectDir string) (*Config, error) {
	path := filepath.Join(projectDir, Dir, ConfigFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.ApplyEnv()
	return &cfg, nil
}

// Save writes config to .boxctl/config.yaml relative to projectDir.
func Save(projectDir string, cfg *Config) error {
	dir := filepath.Join(projectDir, Dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	path := filepath.Join(dir, ConfigFile)
	// The file may hold a session cookie.
	return os.WriteFile(path, data, 0o600)
}

// ConfigPath returns the path to the config directory.
func ConfigPath(projectDir string) string {
	return filepath.Join(projectDir, Dir)
}

// Exists returns true if .boxctl/config.yaml exists.
func Exists(projectDir string) bool {
	path := filepath.Join(projectDir, Dir, ConfigFile)
	_, err := os.Stat(path)
	return err == nil
}
