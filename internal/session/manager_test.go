package session

import (
	"os"
	"path/filepath"
	"testing"
)

func TestStage_NilBlobMeansNotProvided(t *testing.T) {
	t.Parallel()

	m := NewManager(t.TempDir())
	s := m.Create()

	path, err := s.Stage(nil, "band.gnu", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != "" {
		t.Fatalf("nil blob should yield empty path, got %q", path)
	}
}

func TestStage_WritesAndOverwrites(t *testing.T) {
	t.Parallel()

	m := NewManager(t.TempDir())
	s := m.Create()

	p1, err := s.Stage([]byte("first"), "bands.gnu", "pdos_data")
	if err != nil {
		t.Fatalf("stage: %v", err)
	}
	p2, err := s.Stage([]byte("second"), "bands.gnu", "pdos_data")
	if err != nil {
		t.Fatalf("stage overwrite: %v", err)
	}
	if p1 != p2 {
		t.Fatalf("same name/subdir should map to same path: %q vs %q", p1, p2)
	}

	data, err := os.ReadFile(p2)
	if err != nil {
		t.Fatalf("read staged file: %v", err)
	}
	if string(data) != "second" {
		t.Fatalf("overwrite semantics broken, got %q", data)
	}
}

func TestStage_AutoCreatesSubdir(t *testing.T) {
	t.Parallel()

	m := NewManager(t.TempDir())
	s := m.Create()

	path, err := s.Stage([]byte("x"), "a.pdos", "fresh_subdir")
	if err != nil {
		t.Fatalf("stage into fresh subdir: %v", err)
	}
	if filepath.Base(filepath.Dir(path)) != "fresh_subdir" {
		t.Fatalf("file not placed into subdir: %q", path)
	}
}

func TestSessions_IsolatedRoots(t *testing.T) {
	t.Parallel()

	m := NewManager(t.TempDir())
	a := m.Create()
	b := m.Create()

	if a.Root() == b.Root() {
		t.Fatalf("two sessions share a root: %q", a.Root())
	}

	pa, err := a.Stage([]byte("a"), "f.dat", "")
	if err != nil {
		t.Fatalf("stage: %v", err)
	}
	if b.Contains(pa) {
		t.Fatalf("session b claims ownership of session a's file")
	}
	if !a.Contains(pa) {
		t.Fatalf("session a should contain its own file")
	}
}

func TestContains_RejectsEscapes(t *testing.T) {
	t.Parallel()

	m := NewManager(t.TempDir())
	s := m.Create()

	if s.Contains("/etc/passwd") {
		t.Fatalf("absolute outside path accepted")
	}
	if s.Contains(filepath.Join(s.Root(), "..", "other", "f.dat")) {
		t.Fatalf("dot-dot escape accepted")
	}
	if !s.Contains(filepath.Join(s.Root(), "sub", "f.dat")) {
		t.Fatalf("legitimate inner path rejected")
	}
}

func TestDelete_RemovesWorkspace(t *testing.T) {
	t.Parallel()

	m := NewManager(t.TempDir())
	s := m.Create()

	path, err := s.Stage([]byte("x"), "f.dat", "")
	if err != nil {
		t.Fatalf("stage: %v", err)
	}

	if err := m.Delete(s.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("workspace should be gone after delete")
	}
	if _, ok := m.Get(s.ID); ok {
		t.Fatalf("session still resolvable after delete")
	}
	if err := m.Delete(s.ID); err != ErrSessionNotFound {
		t.Fatalf("double delete should report not found, got %v", err)
	}
}
