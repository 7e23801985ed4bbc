package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSaveAndLoad(t *testing.T) {
	t.Setenv(EnvURL, "")
	t.Setenv(EnvTimeout, "")
	dir := t.TempDir()

	cfg := &Config{
		Version: "1",
		Platform: Platform{
			URL:     "https://ctf.example.com",
			Session: "cookie",
			CSRF:    "nonce",
			Timeout: 5 * time.Second,
		},
		Challenges: []Challenge{{ID: 3, Name: "pwn-me"}},
	}

	if err := Save(dir, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if loaded.Platform.URL != "https://ctf.example.com" {
		t.Errorf("URL = %q, want %q", loaded.Platform.URL, "https://ctf.example.com")
	}
	if loaded.Platform.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v, want 5s", loaded.Platform.Timeout)
	}
	if len(loaded.Challenges) != 1 || loaded.Challenges[0].ID != 3 {
		t.Errorf("Challenges = %v, want [{3 pwn-me}]", loaded.Challenges)
	}

	info, err := os.Stat(filepath.Join(dir, Dir, ConfigFile))
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("config perm = %o, want 600", perm)
	}
}

func TestExists(t *testing.T) {
	dir := t.TempDir()
	if Exists(dir) {
		t.Error("Exists should be false before init")
	}

	cfg := &Config{Version: "1", Platform: Platform{URL: "http://localhost:8000"}}
	if err := Save(dir, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if !Exists(dir) {
		t.Error("Exists should be true after save")
	}
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	cfg := &Config{Version: "1", Platform: Platform{URL: "http://file", CSRF: "from-file"}}
	if err := Save(dir, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	t.Setenv(EnvURL, "http://env")
	t.Setenv(EnvCSRF, "")
	t.Setenv(EnvTimeout, "250ms")

	loaded, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Platform.URL != "http://env" {
		t.Errorf("URL = %q, want env value", loaded.Platform.URL)
	}
	if loaded.Platform.CSRF != "from-file" {
		t.Errorf("CSRF = %q, want file value when env is empty", loaded.Platform.CSRF)
	}
	if loaded.Platform.CallTimeout() != 250*time.Millisecond {
		t.Errorf("CallTimeout = %v, want 250ms", loaded.Platform.CallTimeout())
	}
}

func TestCallTimeoutDefault(t *testing.T) {
	if got := (Platform{}).CallTimeout(); got != DefaultTimeout {
		t.Errorf("CallTimeout = %v, want %v", got, DefaultTimeout)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"ok", Config{Platform: Platform{URL: "https://ctf"}, Challenges: []Challenge{{ID: 1}, {ID: 2}}}, false},
		{"missing url", Config{}, true},
		{"bad scheme", Config{Platform: Platform{URL: "ftp://ctf"}}, true},
		{"zero id", Config{Platform: Platform{URL: "http://ctf"}, Challenges: []Challenge{{ID: 0, Name: "x"}}}, true},
		{"duplicate id", Config{Platform: Platform{URL: "http://ctf"}, Challenges: []Challenge{{ID: 4}, {ID: 4}}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestChallengeLookup(t *testing.T) {
	cfg := &Config{Challenges: []Challenge{{ID: 7, Name: "web"}}}
	if ch, ok := cfg.Challenge(7); !ok || ch.Name != "web" {
		t.Errorf("Challenge(7) = %v, %v", ch, ok)
	}
	if _, ok := cfg.Challenge(8); ok {
		t.Error("Challenge(8) should not be found")
	}
}
