package fsutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// EntryType distinguishes the three kinds of manifest file entry:
// regular file, symlink, and directory.
type EntryType int

const (
	EntryFile EntryType = iota
	EntrySymlink
	EntryDir
)

// Entry is the materialization-relevant subset of a manifest file entry:
// enough to recreate one path under a destination tree without needing
// the cache package's JSON-specific Manifest type. cache.Manifest.Entries
// converts the manifest's Files list to []Entry for MaterializeFromManifest.
type Entry struct {
	Type EntryType
	Path string // always a repo-relative, forward-slash path
	Mode os.FileMode
}

// CloneTree recursively materializes src into dst using Clonefile for
// every regular file it finds, tolerating a concurrent peer having
// already created a given child (EEXIST is success).
func CloneTree(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if rel == "." {
			return MkdirP(target)
		}

		switch {
		case info.IsDir():
			return MkdirP(target)
		case info.Mode()&os.ModeSymlink != 0:
			return cloneSymlink(path, target)
		default:
			_, err := Clonefile(path, target)
			return err
		}
	})
}

func cloneSymlink(src, dst string) error {
	linkTarget, err := os.Readlink(src)
	if err != nil {
		return err
	}
	if err := MkdirP(filepath.Dir(dst)); err != nil {
		return err
	}
	if err := os.Symlink(linkTarget, dst); err != nil {
		if os.IsExist(err) {
			return nil
		}
		return err
	}
	return nil
}

// MaterializeFromManifest places entries — taken from a cache manifest's
// file list rather than a directory scan — under dst, reading regular
// file content from the corresponding path under src. Any
// entry whose path is empty, absolute, or escapes dst via ".." is
// rejected outright: this is the one place a manifest (partially
// attacker- or corruption- controlled) is turned into real filesystem
// writes.
func MaterializeFromManifest(src, dst string, entries []Entry) error {
	for _, e := range entries {
		if err := validateRelPath(e.Path); err != nil {
			return fmt.Errorf("fsutil: materialize %q: %w", e.Path, err)
		}

		srcPath := filepath.Join(src, e.Path)
		dstPath := filepath.Join(dst, e.Path)

		switch e.Type {
		case EntryDir:
			if err := MkdirP(dstPath); err != nil {
				return err
			}
		case EntrySymlink:
			if err := cloneSymlink(srcPath, dstPath); err != nil {
				return err
			}
		default:
			if _, err := Clonefile(srcPath, dstPath); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateRelPath(p string) error {
	if p == "" {
		return fmt.Errorf("empty path")
	}
	if filepath.IsAbs(p) {
		return fmt.Errorf("absolute path not allowed")
	}
	clean := filepath.ToSlash(filepath.Clean(p))
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return fmt.Errorf("path escapes destination: %q", p)
	}
	return nil
}
