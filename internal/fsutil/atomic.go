package fsutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"
)

// AtomicMove renames src to dst, falling back to copy-then-remove when
// they live on different devices (EXDEV).
func AtomicMove(src, dst string) error {
	if err := MkdirP(filepath.Dir(dst)); err != nil {
		return err
	}

	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}

	if !isCrossDevice(err) {
		return err
	}

	fi, statErr := os.Stat(src)
	if statErr != nil {
		return statErr
	}

	tmp := fmt.Sprintf("%s.%s.tmp", dst, uuid.NewString())
	if fi.IsDir() {
		if err := CloneTree(src, tmp); err != nil {
			os.RemoveAll(tmp)
			return err
		}
	} else if err := copyBytes(src, tmp); err != nil {
		os.Remove(tmp)
		return err
	}

	if err := os.Rename(tmp, dst); err != nil {
		os.RemoveAll(tmp)
		return err
	}

	return os.RemoveAll(src)
}

// AtomicWrite writes b to a sibling temp file (suffixed with the current
// pid and a unique id, so concurrent writers to the same path never
// collide) and renames it over path, so any concurrent reader observes
// either the old content or the complete new content, never a partial
// write.
func AtomicWrite(path string, b []byte) error {
	dir := filepath.Dir(path)
	if err := MkdirP(dir); err != nil {
		return err
	}

	tmp := filepath.Join(dir, fmt.Sprintf(".%s.%d.%s.tmp", filepath.Base(path), os.Getpid(), uuid.NewString()))

	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(b); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// WithTempdir creates a unique directory under parent named prefix-<id>,
// invokes fn with its path, and guarantees its removal on every exit
// path (success, error, or panic) — the scoped-acquisition pattern spec
// §4.1 calls with_tempdir.
func WithTempdir(parent, prefix string, fn func(dir string) error) (err error) {
	if err := MkdirP(parent); err != nil {
		return err
	}

	dir, err := os.MkdirTemp(parent, prefix+"-*")
	if err != nil {
		return err
	}
	defer func() {
		os.RemoveAll(dir)
	}()

	return fn(dir)
}

func isCrossDevice(err error) bool {
	var linkErr *os.LinkError
	if errors.As(err, &linkErr) {
		return errors.Is(linkErr.Err, syscall.EXDEV)
	}
	return errors.Is(err, syscall.EXDEV)
}
