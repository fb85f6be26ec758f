// Package config loads djls's TOML configuration: project-level
// djls.toml/.djls.toml, [tool.djls] inside pyproject.toml, and the
// per-user fallback in the OS config directory (spec.md §6
// "Configuration"). It also resolves per-code diagnostic severity
// overrides using the longest-matching-prefix rule.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pelletier/go-toml"

	"github.com/djls-go/djls/internal/diag"
)

// Config is the fully-resolved set of options the rest of djls consults.
// Zero values are the documented defaults.
type Config struct {
	Debug                bool
	DiagnosticsSeverity  map[string]diag.Severity
	VenvPath             string
	DjangoSettingsModule string
	PythonPath           []string

	// Source records which file (if any) the config was loaded from, for
	// diagnostics and the CLI's `--debug` startup banner.
	Source string
}

// Default returns the zero-configuration baseline: no severity overrides,
// no venv, debug off.
func Default() *Config {
	return &Config{DiagnosticsSeverity: map[string]diag.Severity{}}
}

// Load searches projectDir (highest priority first: djls.toml,
// .djls.toml, pyproject.toml's [tool.djls] table) and, failing all three,
// the user config directory, returning the first one found. A missing
// file at every candidate location is not an error: Load returns
// Default() (spec.md §7 "Configuration error: fall back to defaults
// where safe").
func Load(projectDir string) (*Config, error) {
	for _, c := range candidates(projectDir) {
		data, err := os.ReadFile(c.path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("config: reading %s: %w", c.path, err)
		}
		tree, err := toml.LoadBytes(data)
		if err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", c.path, err)
		}
		if c.subtable != "" {
			sub, ok := tree.Get(c.subtable).(*toml.Tree)
			if !ok {
				continue // pyproject.toml present but has no [tool.djls] table
			}
			tree = sub
		}
		cfg := decode(tree)
		cfg.Source = c.path
		return cfg, nil
	}
	return Default(), nil
}

// LoadFile parses the TOML file at path directly, bypassing project
// discovery. Used by the CLI's --config flag, which names an exact file
// rather than a directory to search.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	tree, err := toml.LoadBytes(data)
	if err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	cfg := decode(tree)
	cfg.Source = path
	return cfg, nil
}

type candidate struct {
	path     string
	subtable string
}

func candidates(projectDir string) []candidate {
	var out []candidate
	if projectDir != "" {
		out = append(out,
			candidate{path: filepath.Join(projectDir, "djls.toml")},
			candidate{path: filepath.Join(projectDir, ".djls.toml")},
			candidate{path: filepath.Join(projectDir, "pyproject.toml"), subtable: "tool.djls"},
		)
	}
	if dir, err := os.UserConfigDir(); err == nil {
		out = append(out, candidate{path: filepath.Join(dir, "djls", "config.toml")})
	}
	return out
}

func decode(tree *toml.Tree) *Config {
	cfg := Default()

	if v, ok := tree.Get("debug").(bool); ok {
		cfg.Debug = v
	}
	if v, ok := tree.Get("venv_path").(string); ok {
		cfg.VenvPath = v
	}
	if v, ok := tree.Get("django_settings_module").(string); ok {
		cfg.DjangoSettingsModule = v
	}
	if arr, ok := tree.Get("pythonpath").([]interface{}); ok {
		for _, item := range arr {
			cfg.PythonPath = append(cfg.PythonPath, fmt.Sprint(item))
		}
	}
	if sevTree, ok := tree.Get("diagnostics").(*toml.Tree); ok {
		if sev, ok := sevTree.Get("severity").(*toml.Tree); ok {
			for _, key := range sev.Keys() {
				if s, ok := sev.Get(key).(string); ok {
					if parsed, ok := parseSeverity(s); ok {
						cfg.DiagnosticsSeverity[key] = parsed
					}
				}
			}
		}
	}
	return cfg
}

func parseSeverity(s string) (diag.Severity, bool) {
	switch strings.ToLower(s) {
	case "off":
		return diag.Off, true
	case "error":
		return diag.Error, true
	case "warning":
		return diag.Warning, true
	case "info":
		return diag.Info, true
	case "hint":
		return diag.Hint, true
	default:
		return diag.Off, false
	}
}

// ResolveSeverity applies the longest-matching-prefix rule from spec.md
// §6: an exact code match wins outright; otherwise the longest registered
// prefix of code wins; with no match, fall back wins unchanged.
func (c *Config) ResolveSeverity(code string, fallback diag.Severity) diag.Severity {
	if c == nil || len(c.DiagnosticsSeverity) == 0 {
		return fallback
	}
	if s, ok := c.DiagnosticsSeverity[code]; ok {
		return s
	}

	var prefixes []string
	for key := range c.DiagnosticsSeverity {
		if strings.HasPrefix(code, key) {
			prefixes = append(prefixes, key)
		}
	}
	if len(prefixes) == 0 {
		return fallback
	}
	sort.Slice(prefixes, func(i, j int) bool { return len(prefixes[i]) > len(prefixes[j]) })
	return c.DiagnosticsSeverity[prefixes[0]]
}
