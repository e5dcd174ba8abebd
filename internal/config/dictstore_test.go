package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestStore(t *testing.T) {
	t.Run("missing file yields an empty store", func(t *testing.T) {
		s, err := OpenStore(filepath.Join(t.TempDir(), "words.txt"))
		if err != nil {
			t.Fatalf("OpenStore: %v", err)
		}
		defer s.Close()
		if len(s.Words()) != 0 {
			t.Errorf("Words = %v", s.Words())
		}
	})

	t.Run("lookups are case-insensitive", func(t *testing.T) {
		s, err := OpenStore("")
		if err != nil {
			t.Fatalf("OpenStore: %v", err)
		}
		defer s.Close()
		if err := s.Add("Kubernetes"); err != nil {
			t.Fatalf("Add: %v", err)
		}
		if !s.Contains("kubernetes") || !s.Contains("KUBERNETES") {
			t.Error("case-insensitive lookup failed")
		}
		if s.Contains("docker") {
			t.Error("unexpected word")
		}
	})

	t.Run("adds persist across reopen", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "dict", "words.txt")

		s, err := OpenStore(path)
		if err != nil {
			t.Fatalf("OpenStore: %v", err)
		}
		for _, w := range []string{"zorgle", "Flibbet", "  spaced  ", ""} {
			if err := s.Add(w); err != nil {
				t.Fatalf("Add(%q): %v", w, err)
			}
		}
		s.Close()

		reopened, err := OpenStore(path)
		if err != nil {
			t.Fatalf("reopen: %v", err)
		}
		defer reopened.Close()
		want := []string{"flibbet", "spaced", "zorgle"}
		if got := reopened.Words(); !reflect.DeepEqual(got, want) {
			t.Errorf("Words = %v, want %v", got, want)
		}
	})

	t.Run("file parsing skips blanks and comments", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "words.txt")
		content := "# personal words\n\nalpha\n  Beta  \n\n# more\ngamma\n"
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("writing file: %v", err)
		}

		s, err := OpenStore(path)
		if err != nil {
			t.Fatalf("OpenStore: %v", err)
		}
		defer s.Close()
		want := []string{"alpha", "beta", "gamma"}
		if got := s.Words(); !reflect.DeepEqual(got, want) {
			t.Errorf("Words = %v, want %v", got, want)
		}
	})

	t.Run("add after close fails", func(t *testing.T) {
		s, err := OpenStore("")
		if err != nil {
			t.Fatalf("OpenStore: %v", err)
		}
		s.Close()
		if err := s.Add("late"); err != ErrStoreClosed {
			t.Errorf("Add after close = %v, want ErrStoreClosed", err)
		}
	})

	t.Run("watch reloads after external edits", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "words.txt")
		if err := os.WriteFile(path, []byte("original\n"), 0o644); err != nil {
			t.Fatalf("writing file: %v", err)
		}

		s, err := OpenStore(path)
		if err != nil {
			t.Fatalf("OpenStore: %v", err)
		}
		defer s.Close()

		reloaded := make(chan struct{}, 1)
		if err := s.Watch(func() {
			select {
			case reloaded <- struct{}{}:
			default:
			}
		}); err != nil {
			t.Fatalf("Watch: %v", err)
		}

		// Replace the file the way editors do: write a temp file and
		// rename it over the original.
		tmp := path + ".tmp"
		if err := os.WriteFile(tmp, []byte("replaced\n"), 0o644); err != nil {
			t.Fatalf("writing temp: %v", err)
		}
		if err := os.Rename(tmp, path); err != nil {
			t.Fatalf("rename: %v", err)
		}

		select {
		case <-reloaded:
		case <-time.After(5 * time.Second):
			t.Fatal("reload callback never fired")
		}
		if !s.Contains("replaced") || s.Contains("original") {
			t.Errorf("Words after reload = %v", s.Words())
		}
	})
}
