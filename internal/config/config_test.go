package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/djls-go/djls/internal/diag"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoadMissingEverythingReturnsDefault(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.False(t, cfg.Debug)
	assert.Empty(t, cfg.Source)
}

func TestLoadPrefersDjlsTomlOverOthers(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "djls.toml", "debug = true\n")
	writeFile(t, dir, ".djls.toml", "debug = false\n")
	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.True(t, cfg.Debug)
	assert.Equal(t, filepath.Join(dir, "djls.toml"), cfg.Source)
}

func TestLoadFallsBackToDotDjlsToml(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".djls.toml", "venv_path = \"/opt/venv\"\n")
	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "/opt/venv", cfg.VenvPath)
}

func TestLoadReadsPyprojectToolTable(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "pyproject.toml", "[tool.djls]\ndjango_settings_module = \"myproj.settings\"\n")
	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "myproj.settings", cfg.DjangoSettingsModule)
}

func TestLoadReadsPythonpathArray(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "djls.toml", "pythonpath = [\"a\", \"b\"]\n")
	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, cfg.PythonPath)
}

func TestLoadReadsSeverityOverrides(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "djls.toml", "[diagnostics.severity]\nS108 = \"warning\"\nS1 = \"off\"\n")
	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, diag.Warning, cfg.DiagnosticsSeverity["S108"])
	assert.Equal(t, diag.Off, cfg.DiagnosticsSeverity["S1"])
}

func TestResolveSeverityExactCodeWinsOverPrefix(t *testing.T) {
	cfg := Default()
	cfg.DiagnosticsSeverity["S1"] = diag.Off
	cfg.DiagnosticsSeverity["S108"] = diag.Warning
	assert.Equal(t, diag.Warning, cfg.ResolveSeverity("S108", diag.Error))
}

func TestResolveSeverityLongerPrefixWins(t *testing.T) {
	cfg := Default()
	cfg.DiagnosticsSeverity["S1"] = diag.Off
	cfg.DiagnosticsSeverity["S10"] = diag.Info
	assert.Equal(t, diag.Info, cfg.ResolveSeverity("S108", diag.Error))
}

func TestResolveSeverityNoMatchFallsBack(t *testing.T) {
	cfg := Default()
	cfg.DiagnosticsSeverity["T1"] = diag.Off
	assert.Equal(t, diag.Error, cfg.ResolveSeverity("S108", diag.Error))
}
