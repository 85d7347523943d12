// Package digestutil is the single place scint computes content
// hashes, wrapping opencontainers/go-digest so every caller (manifest
// file entries, slug fallbacks) gets the same canonical SHA-256
// algorithm instead of each reaching for crypto/sha256 independently.
package digestutil

import (
	"io"

	"github.com/opencontainers/go-digest"
)

// Bytes returns the hex-encoded SHA-256 digest of b.
func Bytes(b []byte) string {
	return digest.FromBytes(b).Hex()
}

// Reader streams r through a SHA-256 digester and returns its
// hex-encoded result, avoiding a full in-memory buffer for large files.
func Reader(r io.Reader) (string, error) {
	d, err := digest.FromReader(r)
	if err != nil {
		return "", err
	}
	return d.Hex(), nil
}
