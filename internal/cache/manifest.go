package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/kraklabs/scint/internal/digestutil"
	"github.com/kraklabs/scint/internal/fsutil"
)

// ManifestVersion is the only schema version scint reads or writes.
// Anything else is treated as unreadable.
const ManifestVersion = 1

// FileEntryType mirrors fsutil.EntryType but is the JSON-facing name
// used in a manifest's "files" array.
type FileEntryType string

const (
	FileTypeFile    FileEntryType = "file"
	FileTypeSymlink FileEntryType = "symlink"
	FileTypeDir     FileEntryType = "dir"
)

// FileEntry is one entry of a manifest's "files" array. Struct field
// declaration order below is exactly the ASCII-sorted key order
// ("mode" < "path" < "sha256" < "size" < "type"); Go's encoding/json
// marshals struct fields in declaration order, so no separate
// canonicalization pass is needed for this shape.
type FileEntry struct {
	Mode   uint32        `json:"mode"`
	Path   string        `json:"path"`
	SHA256 string        `json:"sha256,omitempty"`
	Size   int64         `json:"size"`
	Type   FileEntryType `json:"type"`
}

// Source is the JSON-facing rendering of a SourceDescriptor. Struct
// field declaration order below is exactly the ASCII-sorted key order
// across every source kind combined ("absolute_path" < "branch" <
// "ref" < "revision" < "submodules" < "tag" < "type" < "uri"), so a
// single struct serves every kind without a canonicalization pass.
type Source struct {
	// path
	AbsolutePath string `json:"absolute_path,omitempty"`

	// git
	Branch     string `json:"branch,omitempty"`
	Ref        string `json:"ref,omitempty"`
	Revision   string `json:"revision,omitempty"`
	Submodules bool   `json:"submodules,omitempty"`
	Tag        string `json:"tag,omitempty"`

	Type string `json:"type"`

	// registry, git
	URI string `json:"uri,omitempty"`
}

func sourceFromDescriptor(s SourceDescriptor) Source {
	out := Source{Type: s.Kind.String()}
	switch s.Kind {
	case SourceRegistry:
		out.URI = s.URI
	case SourceGit:
		out.URI = s.URI
		out.Revision = s.Revision
		out.Ref = s.Ref
		out.Branch = s.Branch
		out.Tag = s.Tag
		out.Submodules = s.Submodules
	case SourcePath:
		out.AbsolutePath = s.AbsolutePath
	}
	return out
}

// Build records whether native extensions were compiled for this
// artifact.
type Build struct {
	Extensions bool `json:"extensions"`
}

// Manifest is the per-cached-artifact JSON summary: ABI, source
// descriptor, and a sorted file list with sizes and content hashes.
// Top-level field order is ASCII-sorted ("abi" < "build" < "files" <
// "full_name" < "source" < "version").
type Manifest struct {
	ABI      string      `json:"abi"`
	Build    Build       `json:"build"`
	Files    []FileEntry `json:"files"`
	FullName string      `json:"full_name"`
	Source   Source      `json:"source"`
	Version  int         `json:"version"`
}

// BuildParams are the inputs to Build: everything needed to walk a tree
// and produce its manifest.
type BuildParams struct {
	Spec       PackageId
	GemDir     string
	ABIKey     ABIKey
	Source     SourceDescriptor
	Extensions bool
}

// Build walks p.GemDir and produces its Manifest: stats every entry
// (never following symlinks), streams a SHA-256 for regular files,
// hashes the symlink target string for symlinks, and records mode
// masked to 0o777. The resulting Files slice is sorted by path, so two
// builds of the same tree always produce byte-identical manifests.
func Build(p BuildParams) (*Manifest, error) {
	var entries []FileEntry

	err := filepath.Walk(p.GemDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if path == p.GemDir {
			return nil
		}

		rel, err := filepath.Rel(p.GemDir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		switch {
		case info.Mode()&os.ModeSymlink != 0:
			target, err := os.Readlink(path)
			if err != nil {
				return err
			}
			entries = append(entries, FileEntry{
				Mode:   uint32(info.Mode().Perm()),
				Path:   rel,
				SHA256: digestutil.Bytes([]byte(target)),
				Size:   int64(len(target)),
				Type:   FileTypeSymlink,
			})
		case info.IsDir():
			entries = append(entries, FileEntry{
				Mode: uint32(info.Mode().Perm()),
				Path: rel,
				Size: 0,
				Type: FileTypeDir,
			})
		default:
			sum, err := sha256File(path)
			if err != nil {
				return err
			}
			entries = append(entries, FileEntry{
				Mode:   uint32(info.Mode().Perm()),
				Path:   rel,
				SHA256: sum,
				Size:   info.Size(),
				Type:   FileTypeFile,
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("cache: build manifest for %s: %w", p.Spec.FullName(), err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })

	return &Manifest{
		Version:  ManifestVersion,
		ABI:      string(p.ABIKey),
		FullName: p.Spec.FullName(),
		Source:   sourceFromDescriptor(p.Source),
		Build:    Build{Extensions: p.Extensions},
		Files:    entries,
	}, nil
}

func sha256File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return digestutil.Reader(f)
}

// Write serializes m as canonically key-ordered JSON and writes it
// atomically.
func Write(path string, m *Manifest) error {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return fsutil.AtomicWrite(path, b)
}

// Read returns the manifest at path, or (nil, nil) when the file is
// missing, unparseable, or has a schema Version other than
// ManifestVersion — by design this is not reported as
// an error, since an unreadable manifest just means "not cached".
func Read(path string) (*Manifest, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var m Manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, nil
	}
	if m.Version != ManifestVersion {
		return nil, nil
	}
	return &m, nil
}

// Entries converts m's file list to fsutil.Entry values suitable for
// fsutil.MaterializeFromManifest.
func (m *Manifest) Entries() []fsutil.Entry {
	out := make([]fsutil.Entry, 0, len(m.Files))
	for _, f := range m.Files {
		var t fsutil.EntryType
		switch f.Type {
		case FileTypeSymlink:
			t = fsutil.EntrySymlink
		case FileTypeDir:
			t = fsutil.EntryDir
		default:
			t = fsutil.EntryFile
		}
		out = append(out, fsutil.Entry{Type: t, Path: f.Path, Mode: os.FileMode(f.Mode)})
	}
	return out
}
