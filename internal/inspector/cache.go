package inspector

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// cacheFingerprint hashes the pieces of project state that can change
// what the inspector would report, per spec.md §6 "Inspector cache": the
// first 16 hex digits of SHA-256(root \0 interpreter \0 settings_module
// \0 pythonpath-parts). SHA-256 is used (rather than the HighwayHash
// primitive internal/incremental uses) because spec.md names this exact
// digest for the on-disk cache key; it is a content-addressing identity,
// not a hot-path fingerprint, so crypto/sha256 from the standard library
// is the correct tool and no third-party alternative in the example pack
// targets cryptographic hashing.
func cacheFingerprint(env Environment) string {
	h := sha256.New()
	parts := []string{env.ProjectRoot, env.PythonPath, env.DjangoSettingsModule, strings.Join(env.ExtraPythonPath, ":")}
	h.Write([]byte(strings.Join(parts, "\x00")))
	sum := h.Sum(nil)
	return fmt.Sprintf("%x", sum)[:16]
}

// envelope is the on-disk cache file's shape: the djls version that wrote
// it (so a version bump invalidates stale entries) plus the raw response.
type envelope struct {
	DjlsVersion string   `json:"djls_version"`
	Response    Response `json:"response"`
}

// Cache reads and writes the inspector response cache rooted at
// cacheDir/inspector/<prefix16>/inspector.json.
type Cache struct {
	cacheDir    string
	djlsVersion string
}

// NewCache constructs a Cache rooted at cacheDir (typically
// os.UserCacheDir()+"/djls"), stamping entries with djlsVersion.
func NewCache(cacheDir, djlsVersion string) *Cache {
	return &Cache{cacheDir: cacheDir, djlsVersion: djlsVersion}
}

func (c *Cache) path(env Environment) string {
	return filepath.Join(c.cacheDir, "inspector", cacheFingerprint(env), "inspector.json")
}

// Get returns the cached response for env, or ok=false if there is no
// entry or it was written by a different djls version.
func (c *Cache) Get(env Environment) (Response, bool) {
	data, err := os.ReadFile(c.path(env))
	if err != nil {
		return Response{}, false
	}
	var e envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return Response{}, false
	}
	if e.DjlsVersion != c.djlsVersion {
		return Response{}, false
	}
	return e.Response, true
}

// Put persists resp under env's fingerprint, creating parent directories
// as needed.
func (c *Cache) Put(env Environment, resp Response) error {
	path := c.path(env)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("inspector cache: creating %s: %w", filepath.Dir(path), err)
	}
	data, err := json.Marshal(envelope{DjlsVersion: c.djlsVersion, Response: resp})
	if err != nil {
		return fmt.Errorf("inspector cache: encoding entry: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("inspector cache: writing %s: %w", path, err)
	}
	return nil
}
