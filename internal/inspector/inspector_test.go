package inspector

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/djls-go/djls/internal/validate"
)

func TestTableResolvesBuiltinTag(t *testing.T) {
	tl := &TemplateLibraries{
		Builtins:  []string{"django.template.defaulttags"},
		Libraries: map[string]string{"__builtin__": "django.template.defaulttags"},
		Symbols: []Symbol{
			{Kind: "tag", Name: "if", LoadName: "__builtin__", LibraryModule: "django.template.defaulttags"},
		},
	}
	table := BuildTable(tl, nil)
	res := table.ResolveTag("if")
	assert.Equal(t, validate.Builtin, res.Kind)
}

func TestTableResolvesLibraryTag(t *testing.T) {
	tl := &TemplateLibraries{
		Libraries: map[string]string{"mylib": "myapp.templatetags.mylib"},
		Symbols: []Symbol{
			{Kind: "tag", Name: "mytag", LoadName: "mylib", LibraryModule: "myapp.templatetags.mylib"},
		},
	}
	table := BuildTable(tl, nil)
	res := table.ResolveTag("mytag")
	require.Equal(t, validate.InLibraries, res.Kind)
	assert.Equal(t, []string{"mylib"}, res.Libraries)
}

func TestTableResolvesUnknownTagAsNotFound(t *testing.T) {
	table := BuildTable(&TemplateLibraries{}, nil)
	assert.Equal(t, validate.NotFound, table.ResolveTag("nope").Kind)
}

func TestTableResolvesDiscoveredNotInstalled(t *testing.T) {
	tl := &TemplateLibraries{
		Libraries: map[string]string{"mylib": "myapp.templatetags.mylib"},
		Symbols: []Symbol{
			{Kind: "filter", Name: "myfilter", LoadName: "mylib", LibraryModule: "myapp.templatetags.mylib"},
		},
	}
	pi := &ProjectInfo{InstalledApps: []string{"django.contrib.admin"}}
	table := BuildTable(tl, pi)
	res := table.ResolveFilter("myfilter")
	assert.Equal(t, validate.DiscoveredNotInstalled, res.Kind)
}

func TestTableResolvesLibraryPseudoLookup(t *testing.T) {
	tl := &TemplateLibraries{
		Libraries: map[string]string{"mylib": "myapp.templatetags.mylib"},
	}
	table := BuildTable(tl, nil)
	res := table.ResolveTag("__library__:mylib")
	assert.Equal(t, validate.InLibraries, res.Kind)

	res = table.ResolveTag("__library__:nosuchlib")
	assert.Equal(t, validate.NotFound, res.Kind)
}

func TestCacheRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cache := NewCache(dir, "0.1.0")
	env := Environment{ProjectRoot: "/proj", PythonPath: "/usr/bin/python3"}

	_, ok := cache.Get(env)
	assert.False(t, ok)

	resp := Response{OK: true, Data: []byte(`{"symbols":[]}`)}
	require.NoError(t, cache.Put(env, resp))

	got, ok := cache.Get(env)
	require.True(t, ok)
	assert.Equal(t, resp.OK, got.OK)
	assert.JSONEq(t, string(resp.Data), string(got.Data))
}

func TestCacheInvalidatedByVersionMismatch(t *testing.T) {
	dir := t.TempDir()
	env := Environment{ProjectRoot: "/proj", PythonPath: "/usr/bin/python3"}

	require.NoError(t, NewCache(dir, "0.1.0").Put(env, Response{OK: true}))

	_, ok := NewCache(dir, "0.2.0").Get(env)
	assert.False(t, ok)
}

func TestCacheFingerprintIsStableAndDistinguishesEnvs(t *testing.T) {
	a := Environment{ProjectRoot: "/proj", PythonPath: "/usr/bin/python3"}
	b := Environment{ProjectRoot: "/other", PythonPath: "/usr/bin/python3"}
	assert.Equal(t, cacheFingerprint(a), cacheFingerprint(a))
	assert.NotEqual(t, cacheFingerprint(a), cacheFingerprint(b))
	assert.Len(t, cacheFingerprint(a), 16)
}

func TestCachePathLayout(t *testing.T) {
	dir := t.TempDir()
	cache := NewCache(dir, "0.1.0")
	env := Environment{ProjectRoot: "/proj"}
	want := filepath.Join(dir, "inspector", cacheFingerprint(env), "inspector.json")
	assert.Equal(t, want, cache.path(env))
}
