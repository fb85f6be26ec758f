package lspserver

import (
	"fmt"
	"net/url"
	"strings"
)

// pathFromURI converts a file:// URI from the client into a filesystem
// path usable as a source.Store key. Non-file schemes are rejected: djls
// only ever opens on-disk templates.
func pathFromURI(uri string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("lspserver: parsing uri %q: %w", uri, err)
	}
	if u.Scheme != "file" {
		return "", fmt.Errorf("lspserver: unsupported uri scheme %q", u.Scheme)
	}
	path := u.Path
	if path == "" {
		path = u.Opaque
	}
	return path, nil
}

// uriFromPath is pathFromURI's inverse, used when publishing diagnostics
// for a store path back to the client.
func uriFromPath(path string) string {
	if strings.HasPrefix(path, "file://") {
		return path
	}
	u := url.URL{Scheme: "file", Path: path}
	return u.String()
}
