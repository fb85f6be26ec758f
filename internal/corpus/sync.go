package corpus

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	completeMarker  = ".complete.json"
	httpTimeout     = 300 * time.Second
	pypiJSONURLBase = "https://pypi.org/pypi"
)

type packageMarker struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	SHA256  string `json:"sha256"`
	URL     string `json:"url"`
}

type repoMarker struct {
	Name   string `json:"name"`
	URL    string `json:"url"`
	GitRef string `json:"git_ref"`
}

// Syncer downloads and extracts a Manifest's packages and repos into a
// corpus root directory, skipping entries that already carry a
// completion marker.
type Syncer struct {
	Client *http.Client
	Root   string
}

// NewSyncer builds a Syncer with the spec-mandated 300s client timeout.
func NewSyncer(root string) *Syncer {
	return &Syncer{Client: &http.Client{Timeout: httpTimeout}, Root: root}
}

// SyncAll syncs every package and repo in m concurrently, continuing past
// individual failures and returning a combined error naming every entry
// that failed (spec.md §7 "Network error during corpus sync").
func (s *Syncer) SyncAll(ctx context.Context, m *Manifest) error {
	packagesDir := filepath.Join(s.Root, "packages")
	reposDir := filepath.Join(s.Root, "repos")
	if err := os.MkdirAll(packagesDir, 0o755); err != nil {
		return fmt.Errorf("corpus: creating %s: %w", packagesDir, err)
	}
	if err := os.MkdirAll(reposDir, 0o755); err != nil {
		return fmt.Errorf("corpus: creating %s: %w", reposDir, err)
	}

	g, ctx := errgroup.WithContext(ctx)
	failures := make(chan string, len(m.Packages)+len(m.Repos))

	for _, pkg := range m.Packages {
		pkg := pkg
		g.Go(func() error {
			if err := s.syncPackage(ctx, pkg, packagesDir); err != nil {
				failures <- fmt.Sprintf("%s-%s: %v", pkg.Name, pkg.Version, err)
			}
			return nil
		})
	}
	for _, repo := range m.Repos {
		repo := repo
		g.Go(func() error {
			if err := s.syncRepo(ctx, repo, reposDir); err != nil {
				failures <- fmt.Sprintf("%s@%s: %v", repo.Name, repo.GitRef, err)
			}
			return nil
		})
	}

	_ = g.Wait()
	close(failures)

	var names []string
	for f := range failures {
		names = append(names, f)
	}
	if len(names) > 0 {
		return fmt.Errorf("corpus: failed to sync %d entries: %s", len(names), strings.Join(names, "; "))
	}
	return nil
}

func isSynced(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, completeMarker))
	return err == nil
}

func writeMarker(dir string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("corpus: encoding marker: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, completeMarker), append(data, '\n'), 0o644)
}

type resolvedPackage struct {
	Version        string
	URL            string
	ExpectedSHA256 string
}

// resolvePyPIPackage queries PyPI's JSON API and resolves versionSpec (an
// exact version or a minor-version prefix) to a concrete sdist.
func (s *Syncer) resolvePyPIPackage(ctx context.Context, name, versionSpec string) (*resolvedPackage, error) {
	specParts, ok := parseVersion(versionSpec)
	if !ok {
		return nil, fmt.Errorf("invalid version spec %q", versionSpec)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/%s/json", pypiJSONURLBase, name), nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching PyPI metadata for %s: %w", name, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("PyPI returned %d for %s", resp.StatusCode, name)
	}

	var payload struct {
		Releases map[string][]struct {
			PackageType string `json:"packagetype"`
			Filename    string `json:"filename"`
			URL         string `json:"url"`
			Digests     struct {
				SHA256 string `json:"sha256"`
			} `json:"digests"`
		} `json:"releases"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<20)).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding PyPI metadata for %s: %w", name, err)
	}

	var bestVersion string
	var bestParts []int
	for v := range payload.Releases {
		parts, ok := parseVersion(v)
		if !ok || !versionMatches(specParts, parts) {
			continue
		}
		if bestParts == nil || compareVersions(parts, bestParts) > 0 {
			bestVersion, bestParts = v, parts
		}
	}
	if bestVersion == "" {
		return nil, fmt.Errorf("no release matching %s for %s", versionSpec, name)
	}

	for _, f := range payload.Releases[bestVersion] {
		if f.PackageType == "sdist" && strings.HasSuffix(f.Filename, ".tar.gz") {
			if f.Digests.SHA256 == "" {
				return nil, fmt.Errorf("no sha256 for %s-%s", name, bestVersion)
			}
			return &resolvedPackage{Version: bestVersion, URL: f.URL, ExpectedSHA256: f.Digests.SHA256}, nil
		}
	}
	return nil, fmt.Errorf("no sdist found for %s-%s", name, bestVersion)
}

func (s *Syncer) syncPackage(ctx context.Context, pkg Package, packagesDir string) error {
	specParts, ok := parseVersion(pkg.Version)
	if !ok {
		return fmt.Errorf("invalid version spec %q", pkg.Version)
	}
	if findSyncedMatch(packagesDir, pkg.Name, specParts) {
		return nil
	}

	resolved, err := s.resolvePyPIPackage(ctx, pkg.Name, pkg.Version)
	if err != nil {
		return err
	}
	outDir := filepath.Join(packagesDir, pkg.Name, resolved.Version)
	if isSynced(outDir) {
		return nil
	}

	data, actualSHA256, err := s.downloadTarball(ctx, resolved.URL)
	if err != nil {
		return err
	}
	if !strings.EqualFold(actualSHA256, resolved.ExpectedSHA256) {
		return fmt.Errorf("sha256 mismatch for %s: expected %s, got %s", resolved.URL, resolved.ExpectedSHA256, actualSHA256)
	}

	if err := extractDownloaded(data, outDir); err != nil {
		return err
	}

	return writeMarker(outDir, packageMarker{Name: pkg.Name, Version: resolved.Version, SHA256: actualSHA256, URL: resolved.URL})
}

func (s *Syncer) syncRepo(ctx context.Context, repo Repo, reposDir string) error {
	outDir := filepath.Join(reposDir, repo.Name, repo.GitRef)
	if isSynced(outDir) {
		return nil
	}

	url := strings.TrimSuffix(repo.URL, ".git") + "/archive/" + repo.GitRef + ".tar.gz"
	data, _, err := s.downloadTarball(ctx, url)
	if err != nil {
		return err
	}
	if err := extractDownloaded(data, outDir); err != nil {
		return err
	}

	return writeMarker(outDir, repoMarker{Name: repo.Name, URL: repo.URL, GitRef: repo.GitRef})
}

// downloadTarball streams a tarball into memory through a SHA-256
// hasher, refusing anything over maxTarballBytes (spec.md §5
// "Timeouts"; the 300s ceiling comes from Syncer's http.Client).
func (s *Syncer) downloadTarball(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("HTTP %d fetching %s", resp.StatusCode, url)
	}

	limited := io.LimitReader(resp.Body, maxTarballBytes+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, "", fmt.Errorf("reading %s: %w", url, err)
	}
	if len(data) > maxTarballBytes {
		return nil, "", fmt.Errorf("tarball from %s exceeds %d bytes", url, maxTarballBytes)
	}

	h := sha256.Sum256(data)
	return data, fmt.Sprintf("%x", h), nil
}

func extractDownloaded(data []byte, outDir string) error {
	return extractTarball(bytes.NewReader(data), outDir)
}

// parseVersion splits "5.2.11" into [5, 2, 11], rejecting pre-release
// suffixes like "5.2a1" (spec.md: "resolves to the latest stable patch").
func parseVersion(s string) ([]int, bool) {
	parts := strings.Split(s, ".")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, false
		}
		out = append(out, n)
	}
	return out, true
}

// versionMatches reports whether candidate starts with spec's segments.
func versionMatches(spec, candidate []int) bool {
	if len(candidate) < len(spec) {
		return false
	}
	for i := range spec {
		if candidate[i] != spec[i] {
			return false
		}
	}
	return true
}

func compareVersions(a, b []int) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] - b[i]
		}
	}
	return len(a) - len(b)
}

func findSyncedMatch(packagesDir, name string, spec []int) bool {
	entries, err := os.ReadDir(filepath.Join(packagesDir, name))
	if err != nil {
		return false
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		parts, ok := parseVersion(e.Name())
		if !ok || !versionMatches(spec, parts) {
			continue
		}
		if isSynced(filepath.Join(packagesDir, name, e.Name())) {
			return true
		}
	}
	return false
}
