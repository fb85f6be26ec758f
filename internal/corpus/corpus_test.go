package corpus

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVersionStable(t *testing.T) {
	v, ok := parseVersion("5.2.11")
	require.True(t, ok)
	assert.Equal(t, []int{5, 2, 11}, v)
}

func TestParseVersionRejectsPrerelease(t *testing.T) {
	_, ok := parseVersion("5.2a1")
	assert.False(t, ok)
}

func TestVersionMatchesMinorPrefix(t *testing.T) {
	assert.True(t, versionMatches([]int{5, 2}, []int{5, 2, 11}))
	assert.False(t, versionMatches([]int{5, 2}, []int{5, 1, 2}))
	assert.False(t, versionMatches([]int{5, 2}, []int{5, 20}))
}

func TestVersionMatchesExact(t *testing.T) {
	assert.True(t, versionMatches([]int{5, 2, 11}, []int{5, 2, 11}))
	assert.False(t, versionMatches([]int{5, 2, 11}, []int{5, 2, 10}))
}

func TestCompareVersionsPicksLatest(t *testing.T) {
	assert.True(t, compareVersions([]int{5, 2, 11}, []int{5, 2, 9}) > 0)
	assert.True(t, compareVersions([]int{5, 2}, []int{5, 2, 1}) < 0)
}

func TestParseManifest(t *testing.T) {
	doc := `
[[packages]]
name = "django"
version = "5.2"

[[repos]]
name = "django-cms"
url = "https://github.com/django-cms/django-cms"
git_ref = "main"
`
	m, err := ParseManifest([]byte(doc))
	require.NoError(t, err)
	require.Len(t, m.Packages, 1)
	assert.Equal(t, "django", m.Packages[0].Name)
	assert.Equal(t, "5.2", m.Packages[0].Version)
	require.Len(t, m.Repos, 1)
	assert.Equal(t, "django-cms", m.Repos[0].Name)
	assert.Equal(t, "main", m.Repos[0].GitRef)
}

func TestIsSyncedReflectsMarkerPresence(t *testing.T) {
	dir := t.TempDir()
	assert.False(t, isSynced(dir))
	require.NoError(t, writeMarker(dir, packageMarker{Name: "django", Version: "5.2.11"}))
	assert.True(t, isSynced(dir))
}

func TestFindSyncedMatchHonorsVersionSpec(t *testing.T) {
	dir := t.TempDir()
	versionDir := filepath.Join(dir, "django", "5.2.11")
	require.NoError(t, os.MkdirAll(versionDir, 0o755))
	require.NoError(t, writeMarker(versionDir, packageMarker{Name: "django", Version: "5.2.11"}))

	spec, _ := parseVersion("5.2")
	assert.True(t, findSyncedMatch(dir, "django", spec))

	otherSpec, _ := parseVersion("4.2")
	assert.False(t, findSyncedMatch(dir, "django", otherSpec))
}

func buildTestTarball(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, content := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name: name, Mode: 0o644, Size: int64(len(content)),
		}))
		_, err := tw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

func TestExtractTarballWritesFiles(t *testing.T) {
	dir := t.TempDir()
	data := buildTestTarball(t, map[string]string{
		"pkg-1.0/setup.py":        "print('hi')\n",
		"pkg-1.0/pkg/__init__.py": "",
	})
	require.NoError(t, extractDownloaded(data, dir))

	got, err := os.ReadFile(filepath.Join(dir, "pkg-1.0", "setup.py"))
	require.NoError(t, err)
	assert.Equal(t, "print('hi')\n", string(got))
}

func TestExtractTarballRejectsPathTraversal(t *testing.T) {
	dir := t.TempDir()
	data := buildTestTarball(t, map[string]string{"../../etc/passwd": "evil"})
	err := extractDownloaded(data, dir)
	assert.Error(t, err)
}
