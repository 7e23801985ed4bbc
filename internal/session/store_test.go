package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/zpdzap/boxctl/internal/classify"
)

func TestStoreSaveLoad(t *testing.T) {
	dir := t.TempDir()
	st := NewStore(filepath.Join(dir, ".boxctl", "state.json"))

	s := New(3, "pwn")
	s.Activate(classify.Endpoint{Host: "ctf.example.com", Port: 31337}, epoch.Add(time.Hour), epoch)
	if err := st.Save(s.Snapshot()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	other := New(1, "web")
	if err := st.Save(other.Snapshot()); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := st.Load(epoch)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	got, ok := loaded[3]
	if !ok {
		t.Fatal("session 3 not found in loaded state")
	}
	if got.State != StateActive {
		t.Errorf("State = %q, want active", got.State)
	}
	if got.Endpoint == nil || got.Endpoint.Port != 31337 {
		t.Errorf("Endpoint = %v", got.Endpoint)
	}
	if !got.ExpiresAt.Equal(epoch.Add(time.Hour)) {
		t.Errorf("ExpiresAt = %v", got.ExpiresAt)
	}

	list, err := st.List(epoch)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 || list[0].ChallengeID != 1 || list[1].ChallengeID != 3 {
		t.Errorf("List = %+v", list)
	}
}

func TestStoreLoadMissing(t *testing.T) {
	st := NewStore(filepath.Join(t.TempDir(), "state.json"))
	sessions, err := st.Load(epoch)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(sessions) != 0 {
		t.Errorf("expected empty state, got %d sessions", len(sessions))
	}
}

func TestStoreLoadCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewStore(path).Load(epoch); err == nil {
		t.Error("Load should fail on corrupt state")
	}
}

func TestStoreNormalizesOnLoad(t *testing.T) {
	ep := &classify.Endpoint{Host: "h", Port: 1}
	tests := []struct {
		name      string
		in        Session
		wantState State
		wantEP    bool
	}{
		{"expired active", Session{State: StateActive, Endpoint: ep, ExpiresAt: epoch.Add(-time.Second)}, StateNotRequested, false},
		{"live active", Session{State: StateActive, Endpoint: ep, ExpiresAt: epoch.Add(time.Minute)}, StateActive, true},
		{"requesting", Session{State: StateRequesting}, StateNotRequested, false},
		{"mutating", Session{State: StateMutating, Endpoint: ep, ExpiresAt: epoch.Add(time.Minute)}, StateActive, true},
		{"stopped reopens", Session{State: StateStopped}, StateNotRequested, false},
		{"errored with endpoint", Session{State: StateErrored, Endpoint: ep, ExpiresAt: epoch.Add(time.Minute)}, StateActive, true},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := NewStore(filepath.Join(t.TempDir(), "state.json"))
			tt.in.ChallengeID = i + 1
			if err := st.Save(tt.in); err != nil {
				t.Fatalf("Save: %v", err)
			}
			loaded, err := st.Load(epoch)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			got := loaded[i+1]
			if got.State != tt.wantState {
				t.Errorf("State = %q, want %q", got.State, tt.wantState)
			}
			if (got.Endpoint != nil) != tt.wantEP {
				t.Errorf("Endpoint = %v, want present=%v", got.Endpoint, tt.wantEP)
			}
			if err := got.Check(); err != nil {
				t.Error(err)
			}
		})
	}
}
