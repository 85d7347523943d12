package fsutil

import (
	"errors"
	"io"
	"os"
	"path/filepath"
)

// Strategy names the mechanism clonefile actually used, so callers
// (including the bulk materializer's one-time probe) can observe and
// cache what the host filesystem supports.
type Strategy int

const (
	StrategyReflink Strategy = iota
	StrategyHardlink
	StrategyCopy
)

func (s Strategy) String() string {
	switch s {
	case StrategyReflink:
		return "reflink"
	case StrategyHardlink:
		return "hardlink"
	default:
		return "copy"
	}
}

// ErrUnsupported is returned by a platform-specific reflink attempt when
// the underlying syscall isn't available or the filesystem refused it, so
// Clonefile knows to fall back to the next strategy.
var ErrUnsupported = errors.New("fsutil: clone strategy unsupported")

// Clonefile materializes one file at dst with the content of src, using
// the fastest mechanism the host filesystem offers:
//
//  1. CoW clone (APFS clonefile, btrfs/xfs FICLONE reflink)
//  2. hardlink, when src and dst share a device and the FS permits it
//  3. byte copy
//
// A lost creation race against a concurrent peer (dst appearing between
// our stat and our create) is treated as success: the destination exists
// and, for content-addressed cache entries, is correct by construction.
func Clonefile(src, dst string) (Strategy, error) {
	if err := MkdirP(filepath.Dir(dst)); err != nil {
		return 0, err
	}

	if err := reflinkFile(src, dst); err == nil {
		return StrategyReflink, nil
	}
	// Any reflink failure — unsupported syscall, cross-device, or a real
	// FS error — just means falling back to the next strategy.

	if err := os.Link(src, dst); err == nil {
		return StrategyHardlink, nil
	} else if !os.IsExist(err) {
		if err := copyBytes(src, dst); err != nil {
			if os.IsExist(err) {
				return StrategyCopy, nil
			}
			return 0, err
		}
		return StrategyCopy, nil
	}

	return StrategyHardlink, nil
}

func copyBytes(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	fi, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, fi.Mode().Perm())
	if err != nil {
		if os.IsExist(err) {
			return err // benign: a peer already materialized this file.
		}
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		os.Remove(dst)
		return err
	}
	return nil
}
