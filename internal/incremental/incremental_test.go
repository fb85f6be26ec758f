package incremental

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/djls-go/djls/internal/source"
	"github.com/djls-go/djls/internal/tagspec"
	"github.com/djls-go/djls/internal/validate"
)

func newEngine(t *testing.T, text string) (*Engine, *source.Store, string) {
	t.Helper()
	store := source.NewStore()
	store.Open("t.html", text)
	eng := NewEngine(store, tagspec.Builtins())
	return eng, store, "t.html"
}

func TestEngineDiagnosticsEmptyForWellFormedTemplate(t *testing.T) {
	eng, _, path := newEngine(t, `{% if a %}hi{% endif %}`)
	diags, err := eng.Diagnostics(path)
	require.NoError(t, err)
	assert.Empty(t, diags)
}

func TestEngineReportsUnclosedTag(t *testing.T) {
	eng, _, path := newEngine(t, `{% if a %}hi`)
	diags, err := eng.Diagnostics(path)
	require.NoError(t, err)
	require.NotEmpty(t, diags)
	assert.Equal(t, "T130", diags[0].Code)
}

func TestEngineChecksElifExpressionBits(t *testing.T) {
	eng, _, path := newEngine(t, `{% if a %}x{% elif a and %}y{% endif %}`)
	diags, err := eng.Diagnostics(path)
	require.NoError(t, err)
	var found bool
	for _, d := range diags {
		if d.Code == "S114" {
			found = true
		}
	}
	assert.True(t, found, "expected an S114 diagnostic from the elif branch, got %+v", diags)
}

func TestEngineMemoizesUntilRevisionChanges(t *testing.T) {
	eng, store, path := newEngine(t, `{% if a %}hi{% endif %}`)

	nodesA, err := eng.Nodes(path)
	require.NoError(t, err)
	nodesB, err := eng.Nodes(path)
	require.NoError(t, err)
	assert.Equal(t, nodesA, nodesB)

	f, ok := store.Get(path)
	require.True(t, ok)
	f.SetText(`{% if b %}bye{% endif %}`)

	nodesC, err := eng.Nodes(path)
	require.NoError(t, err)
	assert.NotEqual(t, nodesA, nodesC)
}

func TestEngineUnknownPathReturnsError(t *testing.T) {
	eng, _, _ := newEngine(t, `hi`)
	_, err := eng.Diagnostics("missing.html")
	assert.Error(t, err)
}

func TestEngineConcurrentDiagnosticsCollapseViaSingleflight(t *testing.T) {
	eng, _, path := newEngine(t, `{% load mylib %}{% unknowntag %}`)
	eng.SetSymbolTable(&validate.StaticSymbolTable{Tags: map[string]validate.Resolution{}})

	var wg sync.WaitGroup
	results := make([][]string, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			diags, err := eng.Diagnostics(path)
			assert.NoError(t, err)
			for _, d := range diags {
				results[i] = append(results[i], d.Code)
			}
		}(i)
	}
	wg.Wait()

	for i := 1; i < len(results); i++ {
		assert.Equal(t, results[0], results[i])
	}
}
