package corpus

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// maxTarballBytes bounds both the downloaded tarball and its expanded
// contents (spec.md §5 "Timeouts", 200MB cap).
const maxTarballBytes = 200 * 1024 * 1024

// extractTarball decompresses and unpacks a gzipped tar stream under
// destDir, refusing path-traversal entries and capping total expanded
// size at maxTarballBytes.
func extractTarball(r io.Reader, destDir string) error {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return fmt.Errorf("corpus: opening gzip stream: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(io.LimitReader(gz, maxTarballBytes+1))

	var totalBytes int64
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("corpus: reading tar entry: %w", err)
		}

		target, err := safeJoin(destDir, hdr.Name)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("corpus: creating %s: %w", target, err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("corpus: creating %s: %w", filepath.Dir(target), err)
			}
			n, err := extractFile(tr, target)
			if err != nil {
				return err
			}
			totalBytes += n
			if totalBytes > maxTarballBytes {
				return fmt.Errorf("corpus: extracted contents exceed %d bytes", maxTarballBytes)
			}
		default:
			// Symlinks, hardlinks, devices: corpus tarballs (PyPI sdists,
			// GitHub archive/*.tar.gz) never need these, so skip rather
			// than risk following something unexpected.
		}
	}
}

func extractFile(tr *tar.Reader, target string) (int64, error) {
	f, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, fmt.Errorf("corpus: creating %s: %w", target, err)
	}
	defer f.Close()
	n, err := io.Copy(f, tr)
	if err != nil {
		return n, fmt.Errorf("corpus: writing %s: %w", target, err)
	}
	return n, nil
}

// safeJoin joins destDir and name, rejecting any entry whose resolved
// path would escape destDir (a zip-slip / tar-slip guard).
func safeJoin(destDir, name string) (string, error) {
	cleaned := filepath.Clean(filepath.Join(destDir, name))
	if cleaned != destDir && !strings.HasPrefix(cleaned, destDir+string(filepath.Separator)) {
		return "", fmt.Errorf("corpus: tar entry %q escapes destination", name)
	}
	return cleaned, nil
}
