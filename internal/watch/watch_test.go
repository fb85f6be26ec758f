package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/djls-go/djls/internal/source"
)

func waitForEvent(t *testing.T, w *Watcher, path string) Event {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev := <-w.Events():
			if ev.Path == path || filepath.Clean(ev.Path) == filepath.Clean(path) {
				return ev
			}
		case err := <-w.Errors():
			t.Fatalf("watcher error: %v", err)
		case <-deadline:
			t.Fatalf("timed out waiting for event on %s", path)
		}
	}
}

func TestWatcherReportsWriteAfterDebounce(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "page.html")
	require.NoError(t, os.WriteFile(path, []byte("{% block a %}{% endblock %}"), 0o644))

	w, err := New(20 * time.Millisecond)
	require.NoError(t, err)
	defer w.Close()
	require.NoError(t, w.AddRoot(dir))

	require.NoError(t, os.WriteFile(path, []byte("changed"), 0o644))

	ev := waitForEvent(t, w, path)
	assert.Equal(t, path, ev.Path)
}

func TestWatcherCoalescesRapidWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "page.html")
	require.NoError(t, os.WriteFile(path, []byte("a"), 0o644))

	w, err := New(50 * time.Millisecond)
	require.NoError(t, err)
	defer w.Close()
	require.NoError(t, w.AddRoot(dir))

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte("b"), 0o644))
		time.Sleep(5 * time.Millisecond)
	}

	ev := waitForEvent(t, w, path)
	assert.Equal(t, path, ev.Path)

	select {
	case second := <-w.Events():
		t.Fatalf("expected writes to coalesce into one event, got a second: %+v", second)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestWatcherTracksNewSubdirectories(t *testing.T) {
	dir := t.TempDir()
	w, err := New(20 * time.Millisecond)
	require.NoError(t, err)
	defer w.Close()
	require.NoError(t, w.AddRoot(dir))

	sub := filepath.Join(dir, "templates")
	require.NoError(t, os.Mkdir(sub, 0o755))
	waitForEvent(t, w, sub)

	nested := filepath.Join(sub, "child.html")
	require.NoError(t, os.WriteFile(nested, []byte("x"), 0o644))
	waitForEvent(t, w, nested)
}

func TestSyncStoreIgnoresUnknownPaths(t *testing.T) {
	store := source.NewStore()
	err := SyncStore(store, Event{Path: "/tmp/untouched.html", Op: Write})
	assert.NoError(t, err)
	_, ok := store.Get("/tmp/untouched.html")
	assert.False(t, ok)
}

func TestSyncStoreIgnoresNonTemplateExtensions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.py")
	store := source.NewStore()
	store.Open(path, "old")

	require.NoError(t, os.WriteFile(path, []byte("new"), 0o644))
	require.NoError(t, SyncStore(store, Event{Path: path, Op: Write}))

	f, _ := store.Get(path)
	assert.Equal(t, "old", f.Text())
}

func TestSyncStoreRefreshesKnownFileOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "page.html")
	store := source.NewStore()
	store.Open(path, "{% block a %}old{% endblock %}")

	require.NoError(t, os.WriteFile(path, []byte("{% block a %}new{% endblock %}"), 0o644))

	before := store.GlobalRevision()
	require.NoError(t, SyncStore(store, Event{Path: path, Op: Write}))

	f, ok := store.Get(path)
	require.True(t, ok)
	assert.Equal(t, "{% block a %}new{% endblock %}", f.Text())
	assert.Greater(t, store.GlobalRevision(), before)
}

func TestSyncStoreClosesFileOnRemove(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "page.html")
	store := source.NewStore()
	store.Open(path, "{% block a %}{% endblock %}")

	require.NoError(t, SyncStore(store, Event{Path: path, Op: Remove}))

	_, ok := store.Get(path)
	assert.False(t, ok)
}

func TestSyncStoreClosesFileWhenDeletedBeforeRead(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "page.html")
	store := source.NewStore()
	store.Open(path, "{% block a %}{% endblock %}")

	require.NoError(t, SyncStore(store, Event{Path: path, Op: Write}))

	_, ok := store.Get(path)
	assert.False(t, ok)
}
