// Package watch notifies collaborators about file-system changes outside
// the set of buffers the LSP client has open: template files edited by
// another process, a config file rewritten on disk, a settings module
// swapped out from underneath the project root (spec.md "Surrounding
// collaborators... file-system watching"). It is a thin, debounced
// wrapper over fsnotify, grounded on the recursive-directory watch loop
// in other_examples' Caddy xtemplate module.
package watch

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Op classifies what happened to a path, collapsed from fsnotify's finer
// bitmask into the handful of things a collaborator actually branches on.
type Op int

const (
	Write Op = iota
	Create
	Remove
	Rename
)

func (o Op) String() string {
	switch o {
	case Write:
		return "write"
	case Create:
		return "create"
	case Remove:
		return "remove"
	case Rename:
		return "rename"
	default:
		return "unknown"
	}
}

// Event reports a coalesced change to one path.
type Event struct {
	Path string
	Op   Op
}

func fromFsnotifyOp(op fsnotify.Op) Op {
	switch {
	case op&fsnotify.Create != 0:
		return Create
	case op&fsnotify.Remove != 0:
		return Remove
	case op&fsnotify.Rename != 0:
		return Rename
	default:
		return Write
	}
}

// rank orders ops so that when several land on the same path within one
// debounce window, the most significant one wins (Remove beats Write,
// since a consumer that re-reads after a Write on a gone file just fails).
func (o Op) rank() int {
	switch o {
	case Remove:
		return 3
	case Rename:
		return 2
	case Create:
		return 1
	default:
		return 0
	}
}

// Watcher watches one or more directory trees and emits debounced Events.
// fsnotify only watches the directories explicitly added to it, not their
// future children, so Watcher adds newly created subdirectories as they
// appear.
type Watcher struct {
	fsw      *fsnotify.Watcher
	debounce time.Duration

	events chan Event
	errors chan error
	done   chan struct{}
	once   sync.Once

	mu      sync.Mutex
	pending map[string]Op
	timer   *time.Timer
}

// New starts a Watcher with the given debounce window. Use AddRoot to
// begin watching a directory tree.
func New(debounce time.Duration) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: creating fsnotify watcher: %w", err)
	}
	w := &Watcher{
		fsw:      fsw,
		debounce: debounce,
		events:   make(chan Event),
		errors:   make(chan error),
		done:     make(chan struct{}),
		pending:  make(map[string]Op),
	}
	go w.run()
	return w, nil
}

// AddRoot recursively adds root and every directory beneath it to the
// watch set. Individual files are not added directly; fsnotify reports
// their changes through their containing directory.
func (w *Watcher) AddRoot(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if skipDir(d.Name()) && path != root {
				return filepath.SkipDir
			}
			if err := w.fsw.Add(path); err != nil {
				return fmt.Errorf("watch: adding %s: %w", path, err)
			}
		}
		return nil
	})
}

func skipDir(name string) bool {
	switch name {
	case ".git", "node_modules", "__pycache__", ".venv", "venv":
		return true
	default:
		return false
	}
}

// Events returns the channel of debounced, coalesced file-system events.
func (w *Watcher) Events() <-chan Event { return w.events }

// Errors returns the channel of watcher errors (fsnotify failures, or
// failures adding a newly created subdirectory).
func (w *Watcher) Errors() <-chan error { return w.errors }

// Close stops the watcher and releases its fsnotify handle.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		err = w.fsw.Close()
	})
	return err
}

func (w *Watcher) run() {
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleRaw(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			select {
			case w.errors <- err:
			case <-w.done:
				return
			}
		case <-w.done:
			return
		}
	}
}

func (w *Watcher) handleRaw(ev fsnotify.Event) {
	op := fromFsnotifyOp(ev.Op)

	if op == Create {
		if info, err := fsInfo(ev.Name); err == nil && info.IsDir() {
			_ = w.AddRoot(ev.Name)
		}
	}

	w.mu.Lock()
	if existing, ok := w.pending[ev.Name]; !ok || op.rank() > existing.rank() {
		w.pending[ev.Name] = op
	}
	if w.timer == nil {
		w.timer = time.AfterFunc(w.debounce, w.flush)
	} else {
		w.timer.Reset(w.debounce)
	}
	w.mu.Unlock()
}

func fsInfo(path string) (os.FileInfo, error) {
	return os.Stat(path)
}

func (w *Watcher) flush() {
	w.mu.Lock()
	pending := w.pending
	w.pending = make(map[string]Op)
	w.timer = nil
	w.mu.Unlock()

	for path, op := range pending {
		select {
		case w.events <- Event{Path: path, Op: op}:
		case <-w.done:
			return
		}
	}
}
