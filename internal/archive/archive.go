// Package archive implements the archive-parser collaborator: turning
// a downloaded archive into a directory tree. Gem and tarball-shaped
// registry artifacts are gzipped tars, so this extracts with
// archive/tar over klauspost/compress/gzip, a drop-in, faster
// replacement for the standard library's compress/gzip reader.
package archive

import (
	"archive/tar"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/kraklabs/scint/internal/errs"
)

var errEscapesDest = errors.New("archive entry escapes destination directory")

// Extractor turns an archive file into a directory tree.
type Extractor interface {
	Extract(archivePath, destDir string) error
}

// TarGz extracts a gzip-compressed tar archive, the shape registry
// artifacts take.
type TarGz struct{}

func (TarGz) Extract(archivePath, destDir string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return errs.New(errs.KindInstall, "archive.Extract", archivePath, err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return errs.New(errs.KindInstall, "archive.Extract", archivePath, err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return errs.New(errs.KindInstall, "archive.Extract", archivePath, err)
		}

		target, err := sanitizeEntryPath(destDir, hdr.Name)
		if err != nil {
			return errs.New(errs.KindInstall, "archive.Extract", hdr.Name, err)
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			os.Remove(target)
			if err := os.Symlink(hdr.Linkname, target); err != nil {
				return err
			}
		default:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(hdr.Mode&0o777))
			if err != nil {
				return err
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return err
			}
			out.Close()
		}
	}
	return nil
}

// sanitizeEntryPath rejects archive entries that would escape destDir,
// the same defense fsutil.MaterializeFromManifest applies to manifest
// entries.
func sanitizeEntryPath(destDir, name string) (string, error) {
	clean := filepath.Clean(name)
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) || filepath.IsAbs(clean) {
		return "", errEscapesDest
	}
	return filepath.Join(destDir, clean), nil
}
