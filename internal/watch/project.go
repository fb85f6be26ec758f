package watch

import (
	"os"
	"strings"

	"github.com/djls-go/djls/internal/source"
)

// TemplateExtensions are the file suffixes SyncStore re-reads from disk on
// a file-system event. Everything else (compiled assets, .pyc files, the
// corpus cache) is ignored.
var TemplateExtensions = []string{".html", ".htm", ".txt", ".xml"}

func hasTemplateExtension(path string) bool {
	for _, ext := range TemplateExtensions {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}

// SyncStore applies one watcher Event to store, picking up edits made by
// another process (a formatter, a `git checkout`, a second editor window)
// to a file the store already knows about. It never opens a path the
// store hasn't seen yet: that remains the LSP client's job via
// textDocument/didOpen.
func SyncStore(store *source.Store, ev Event) error {
	if !hasTemplateExtension(ev.Path) {
		return nil
	}
	file, ok := store.Get(ev.Path)
	if !ok {
		return nil
	}

	switch ev.Op {
	case Remove, Rename:
		store.Close(ev.Path)
		return nil
	default:
		data, err := os.ReadFile(ev.Path)
		if err != nil {
			// The file may have been removed between the event firing and
			// this read; treat that the same as an explicit Remove.
			if os.IsNotExist(err) {
				store.Close(ev.Path)
				return nil
			}
			return err
		}
		if string(data) != file.Text() {
			file.SetText(string(data))
			store.Touch()
		}
		return nil
	}
}

// Run drains w's Events channel, applying each to store, until w.Done
// fires or the channel closes. Callers typically run this in its own
// goroutine alongside a Watcher created with New.
func Run(w *Watcher, store *source.Store, onError func(error)) {
	for ev := range w.Events() {
		if err := SyncStore(store, ev); err != nil && onError != nil {
			onError(err)
		}
	}
}
