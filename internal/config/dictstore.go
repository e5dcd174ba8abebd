package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ErrStoreClosed is returned by operations on a closed store.
var ErrStoreClosed = errors.New("config: dictionary store closed")

// reloadDebounce coalesces bursts of fsnotify events from editors that
// write files in several syscalls.
const reloadDebounce = 200 * time.Millisecond

// Store is the personal dictionary: a word list file, one word per line,
// held in memory and kept in sync with external edits. It satisfies the
// rule package's dictionary lookup interface.
type Store struct {
	mu     sync.RWMutex
	path   string
	words  map[string]struct{}
	closed bool

	watcher  *fsnotify.Watcher
	onReload func()
	closeCh  chan struct{}
	wg       sync.WaitGroup
}

// OpenStore loads the word list at path. A missing file yields an empty
// store; the file is created on the first Add. An empty path yields an
// in-memory store with no persistence.
func OpenStore(path string) (*Store, error) {
	s := &Store{
		path:    path,
		words:   make(map[string]struct{}),
		closeCh: make(chan struct{}),
	}
	if path == "" {
		return s, nil
	}
	if err := s.reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Contains reports whether the word is in the store. Matching is
// case-insensitive.
func (s *Store) Contains(word string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.words[strings.ToLower(word)]
	return ok
}

// Words returns the stored words, sorted.
func (s *Store) Words() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.words))
	for w := range s.words {
		out = append(out, w)
	}
	sort.Strings(out)
	return out
}

// Add stores a word and appends it to the file.
func (s *Store) Add(word string) error {
	word = strings.ToLower(strings.TrimSpace(word))
	if word == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	if _, ok := s.words[word]; ok {
		return nil
	}
	s.words[word] = struct{}{}

	if s.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating dictionary dir: %w", err)
	}
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening dictionary file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(word + "\n"); err != nil {
		return fmt.Errorf("appending to dictionary file: %w", err)
	}
	return nil
}

// Watch starts monitoring the word list file for external edits. onReload
// runs after the store has re-read the file; callers use it to invalidate
// cached analysis results.
func (s *Store) Watch(onReload func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	if s.path == "" || s.watcher != nil {
		return nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	// Watch the directory, not the file: editors replace files by rename
	// and the watch would die with the old inode.
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		w.Close()
		return err
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return err
	}

	s.watcher = w
	s.onReload = onReload
	s.wg.Add(1)
	go s.watchLoop(w)
	return nil
}

// Close stops the watcher. The in-memory word set stays usable for
// lookups already in flight.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	w := s.watcher
	s.mu.Unlock()

	close(s.closeCh)
	var err error
	if w != nil {
		err = w.Close()
	}
	s.wg.Wait()
	return err
}

func (s *Store) watchLoop(w *fsnotify.Watcher) {
	defer s.wg.Done()

	var pending *time.Timer
	reload := make(chan struct{}, 1)
	for {
		select {
		case <-s.closeCh:
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(s.path) {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if pending != nil {
				pending.Stop()
			}
			pending = time.AfterFunc(reloadDebounce, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})
		case <-reload:
			if err := s.reload(); err != nil {
				continue
			}
			s.mu.RLock()
			cb := s.onReload
			s.mu.RUnlock()
			if cb != nil {
				cb()
			}
		case _, ok := <-w.Errors:
			if !ok {
				return
			}
		}
	}
}

// reload replaces the word set from the file. A missing file clears the
// set.
func (s *Store) reload() error {
	words := make(map[string]struct{})

	f, err := os.Open(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("reading dictionary file: %w", err)
		}
	} else {
		sc := bufio.NewScanner(f)
		for sc.Scan() {
			w := strings.ToLower(strings.TrimSpace(sc.Text()))
			if w == "" || strings.HasPrefix(w, "#") {
				continue
			}
			words[w] = struct{}{}
		}
		scanErr := sc.Err()
		f.Close()
		if scanErr != nil {
			return fmt.Errorf("scanning dictionary file: %w", scanErr)
		}
	}

	s.mu.Lock()
	s.words = words
	s.mu.Unlock()
	return nil
}
