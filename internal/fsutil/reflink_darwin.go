//go:build darwin

package fsutil

import "golang.org/x/sys/unix"

// reflinkFile attempts an APFS copy-on-write clone via clonefile(2).
func reflinkFile(src, dst string) error {
	if err := unix.Clonefile(src, dst, 0); err != nil {
		return ErrUnsupported
	}
	return nil
}
