//go:build linux

package fsutil

import (
	"os"

	"golang.org/x/sys/unix"
)

// reflinkFile attempts a btrfs/xfs reflink clone via the FICLONE ioctl.
func reflinkFile(src, dst string) error {
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
		return err
	}
	defer out.Close()

	if err := unix.IoctlFileClone(int(out.Fd()), int(in.Fd())); err != nil {
		os.Remove(dst)
		return ErrUnsupported
	}

	return nil
}
