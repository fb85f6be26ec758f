package inspector

import (
	"encoding/json"
	"sort"

	"github.com/djls-go/djls/internal/validate"
)

// Table implements validate.SymbolTable over one template_libraries (and
// optionally project_info) response. It classifies a tag/filter name the
// same way spec.md §4.6 requires: a name the response marks "builtin" is
// clean outright, a name found in exactly the libraries the response
// knows about is InLibraries (subject to {% load %} at the use site), and
// anything else is NotFound — unless project_info says the owning app
// was discovered on disk but isn't in INSTALLED_APPS, which downgrades
// it to DiscoveredNotInstalled (S109/S119).
type Table struct {
	tags    map[string][]string // name -> load names that provide it
	filters map[string][]string
	loaders map[string]string // load name -> library module
	builtin map[string]struct{}

	discoveredNotInstalled map[string]struct{} // library module names
}

// BuildTable constructs a Table from a decoded template_libraries
// response and an optional project_info response (nil if unavailable).
func BuildTable(tl *TemplateLibraries, pi *ProjectInfo) *Table {
	t := &Table{
		tags:    map[string][]string{},
		filters: map[string][]string{},
		loaders: map[string]string{},
		builtin: map[string]struct{}{},
	}
	if tl == nil {
		return t
	}
	for _, mod := range tl.Builtins {
		t.builtin[mod] = struct{}{}
	}
	for loadName, mod := range tl.Libraries {
		t.loaders[loadName] = mod
	}
	for _, sym := range tl.Symbols {
		target := t.tags
		if sym.Kind == "filter" {
			target = t.filters
		}
		target[sym.Name] = append(target[sym.Name], sym.LoadName)
	}

	if pi != nil {
		installed := make(map[string]struct{}, len(pi.InstalledApps))
		for _, app := range pi.InstalledApps {
			installed[app] = struct{}{}
		}
		t.discoveredNotInstalled = map[string]struct{}{}
		for _, mod := range tl.Libraries {
			if _, ok := installed[mod]; !ok {
				t.discoveredNotInstalled[mod] = struct{}{}
			}
		}
	}

	for name, libs := range t.tags {
		t.tags[name] = dedupSorted(libs)
	}
	for name, libs := range t.filters {
		t.filters[name] = dedupSorted(libs)
	}
	return t
}

// DecodeTemplateLibraries parses a template_libraries Response's Data.
func DecodeTemplateLibraries(resp Response) (*TemplateLibraries, error) {
	var tl TemplateLibraries
	if err := json.Unmarshal(resp.Data, &tl); err != nil {
		return nil, err
	}
	return &tl, nil
}

// DecodeProjectInfo parses a project_info Response's Data.
func DecodeProjectInfo(resp Response) (*ProjectInfo, error) {
	var pi ProjectInfo
	if err := json.Unmarshal(resp.Data, &pi); err != nil {
		return nil, err
	}
	return &pi, nil
}

func dedupSorted(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// ResolveTag implements validate.SymbolTable. A name prefixed with
// "__library__:" is a pseudo-lookup internal/validate uses to check a
// {% load %} statement's library name itself rather than a tag/filter.
func (t *Table) ResolveTag(name string) validate.Resolution {
	if lib, ok := stripLibraryPrefix(name); ok {
		return t.resolveLibrary(lib)
	}
	return t.resolve(name, t.tags)
}

// ResolveFilter implements validate.SymbolTable.
func (t *Table) ResolveFilter(name string) validate.Resolution {
	return t.resolve(name, t.filters)
}

func stripLibraryPrefix(name string) (string, bool) {
	const prefix = "__library__:"
	if len(name) > len(prefix) && name[:len(prefix)] == prefix {
		return name[len(prefix):], true
	}
	return "", false
}

func (t *Table) resolveLibrary(loadName string) validate.Resolution {
	mod, ok := t.loaders[loadName]
	if !ok {
		return validate.Resolution{Kind: validate.NotFound}
	}
	if _, ok := t.builtin[mod]; ok {
		return validate.Resolution{Kind: validate.Builtin}
	}
	if _, ok := t.discoveredNotInstalled[mod]; ok {
		return validate.Resolution{Kind: validate.DiscoveredNotInstalled}
	}
	return validate.Resolution{Kind: validate.InLibraries, Libraries: []string{loadName}}
}

func (t *Table) resolve(name string, index map[string][]string) validate.Resolution {
	libs, ok := index[name]
	if !ok || len(libs) == 0 {
		return validate.Resolution{Kind: validate.NotFound}
	}
	for _, loadName := range libs {
		if mod, ok := t.loaders[loadName]; ok {
			if _, ok := t.builtin[mod]; ok {
				return validate.Resolution{Kind: validate.Builtin}
			}
		}
	}
	allDiscoveredNotInstalled := len(t.discoveredNotInstalled) > 0
	for _, loadName := range libs {
		mod := t.loaders[loadName]
		if _, ok := t.discoveredNotInstalled[mod]; !ok {
			allDiscoveredNotInstalled = false
			break
		}
	}
	if allDiscoveredNotInstalled {
		return validate.Resolution{Kind: validate.DiscoveredNotInstalled}
	}
	return validate.Resolution{Kind: validate.InLibraries, Libraries: libs}
}
