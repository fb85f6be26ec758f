package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/djls-go/djls/internal/config"
	"github.com/djls-go/djls/internal/diag"
	"github.com/djls-go/djls/internal/incremental"
	"github.com/djls-go/djls/internal/source"
	"github.com/djls-go/djls/internal/tagspec"
	"github.com/djls-go/djls/internal/watch"
)

var flagFormat string

var checkCmd = &cobra.Command{
	Use:   "check [PATH...]",
	Short: "Check Django templates and report diagnostics",
	Long:  "Walk the given files and directories for Django templates, run the analysis pipeline over each, and print any diagnostics. Exits non-zero if any diagnostic resolves to error severity.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			args = []string{"."}
		}
		return runCheck(cmd, args)
	},
}

func init() {
	checkCmd.Flags().StringVar(&flagFormat, "format", "styled", "diagnostic output format: plain|styled")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, roots []string) error {
	cfg, err := loadConfig(roots[0])
	if err != nil {
		return fmt.Errorf("djls check: %w", err)
	}

	paths, err := discoverTemplates(roots)
	if err != nil {
		return fmt.Errorf("djls check: %w", err)
	}
	if len(paths) == 0 {
		cmd.Println("djls check: no template files found")
		return nil
	}

	store := source.NewStore()
	engine := incremental.NewEngine(store, tagspec.Builtins())

	mode := diag.Styled
	if flagNoColor || strings.EqualFold(flagFormat, "plain") {
		mode = diag.Plain
	}
	renderer := diag.NewRenderer(mode)

	hadError := false
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("djls check: reading %s: %w", path, err)
		}
		file := store.Open(path, string(data))

		diagnostics, err := engine.Diagnostics(path)
		if err != nil {
			return fmt.Errorf("djls check: analyzing %s: %w", path, err)
		}

		for _, d := range diagnostics {
			d.Severity = cfg.ResolveSeverity(d.Code, d.Severity)
			if d.Severity == diag.Off {
				continue
			}
			if d.Severity == diag.Error {
				hadError = true
			}
			cmd.Print(renderer.Render(path, d, file.Text(), file.Index()))
		}
	}

	if hadError {
		return errCheckFailed
	}
	return nil
}

var errCheckFailed = fmt.Errorf("djls check: one or more templates have error-level diagnostics")

// discoverTemplates walks roots, collecting every file with a recognized
// Django template extension. A root that is itself a file is taken as-is
// regardless of extension, so a single explicit path always gets checked.
func discoverTemplates(roots []string) ([]string, error) {
	var out []string
	for _, root := range roots {
		info, err := os.Stat(root)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			out = append(out, root)
			continue
		}
		err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				switch d.Name() {
				case ".git", "node_modules", "__pycache__", ".venv", "venv":
					return filepath.SkipDir
				}
				return nil
			}
			if hasTemplateExtension(path) {
				out = append(out, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func hasTemplateExtension(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, want := range watch.TemplateExtensions {
		if ext == want {
			return true
		}
	}
	return false
}

// loadConfig resolves the effective config for a check/serve invocation:
// --config names an exact file and bypasses project discovery; otherwise
// config.Load walks projectDir's usual candidate locations. The --debug
// flag always overrides whatever the file says.
func loadConfig(projectDir string) (*config.Config, error) {
	var cfg *config.Config
	if flagConfig != "" {
		loaded, err := config.LoadFile(flagConfig)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		dir := projectDir
		if info, err := os.Stat(projectDir); err == nil && !info.IsDir() {
			dir = filepath.Dir(projectDir)
		}
		loaded, err := config.Load(dir)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if flagDebug {
		cfg.Debug = true
	}
	return cfg, nil
}
