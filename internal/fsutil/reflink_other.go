//go:build !linux && !darwin

package fsutil

// reflinkFile has no implementation on this platform; Clonefile falls
// back to hardlink/copy unconditionally.
func reflinkFile(src, dst string) error {
	return ErrUnsupported
}
