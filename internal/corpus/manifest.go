// Package corpus syncs the reference package/repo corpus the extractor's
// test suite runs against: a TOML manifest of PyPI packages and git repos,
// downloaded as tarballs, verified, extracted, and marked complete so
// reruns are idempotent (spec.md §6 "Corpus markers";
// original_source/crates/djls-corpus/src/sync.rs).
package corpus

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// Package is one PyPI package manifest entry. Version may be an exact
// release ("5.2.11") or a minor-version prefix ("5.2"), resolved to the
// latest matching stable release at sync time.
type Package struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// Repo is one git repository manifest entry, synced as a tarball of the
// given ref rather than cloned.
type Repo struct {
	Name   string `toml:"name"`
	URL    string `toml:"url"`
	GitRef string `toml:"git_ref"`
}

// Manifest is the full corpus.toml contents. Its array-of-tables shape
// decodes directly into struct slices with BurntSushi/toml, unlike the
// config package's ad-hoc severity map which needs pelletier/go-toml's
// dynamic Tree walk instead.
type Manifest struct {
	Packages []Package `toml:"packages"`
	Repos    []Repo    `toml:"repos"`
}

// ParseManifest decodes a corpus.toml document like:
//
//	[[packages]]
//	name = "django"
//	version = "5.2"
//
//	[[repos]]
//	name = "django-cms"
//	url = "https://github.com/django-cms/django-cms"
//	git_ref = "main"
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("corpus: parsing manifest: %w", err)
	}
	return &m, nil
}
