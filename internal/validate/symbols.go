package validate

// ResolutionKind classifies where (if anywhere) a tag or filter name was
// found, driving which scoping diagnostic (if any) the validator emits.
type ResolutionKind int

const (
	// NotFound: the name is not a Django builtin and appears in no
	// library the inspector knows about.
	NotFound ResolutionKind = iota
	// Builtin: always available, no {% load %} required.
	Builtin
	// InLibraries: available from one or more installed, loadable
	// libraries. Libraries lists their load names.
	InLibraries
	// DiscoveredNotInstalled: found only in an app that's on disk but
	// not in INSTALLED_APPS / not importable.
	DiscoveredNotInstalled
)

// Resolution is the inspector-derived answer to "where does this symbol
// come from" that spec.md §4.6 steps 1-2 consult.
type Resolution struct {
	Kind      ResolutionKind
	Libraries []string // load names providing the symbol, for InLibraries
}

// SymbolTable is the validator's view of the inspector's template_libraries
// response (spec.md §6). It is treated purely as an interface here — the
// real implementation lives in internal/inspector and talks to the Python
// subprocess; tests and the registry-only fallback use a static table.
type SymbolTable interface {
	ResolveTag(name string) Resolution
	ResolveFilter(name string) Resolution
}

// StaticSymbolTable is a SymbolTable built directly from in-memory maps,
// used in tests. The inspector-unavailable fallback is not this type but
// a nil SymbolTable (spec.md §7: "scoping diagnostics ... are suppressed").
type StaticSymbolTable struct {
	Tags    map[string]Resolution
	Filters map[string]Resolution
}

func (s *StaticSymbolTable) ResolveTag(name string) Resolution {
	if r, ok := s.Tags[name]; ok {
		return r
	}
	return Resolution{Kind: NotFound}
}

func (s *StaticSymbolTable) ResolveFilter(name string) Resolution {
	if r, ok := s.Filters[name]; ok {
		return r
	}
	return Resolution{Kind: NotFound}
}
