package cache

import (
	"os"
	"path/filepath"

	"github.com/kraklabs/scint/internal/digestutil"
	"github.com/kraklabs/scint/internal/metrics"
)

// legacyGemspecName is the file whose mere presence makes a pre-manifest
// cache directory look valid under the legacy-tolerance mode. This is
// deliberately scoped via telemetry rather than silently widening
// validity forever.
const legacyGemspecName = "*.gemspec"

// Valid reports whether the cached artifact for id under abi is usable:
// the cached directory and its .spec blob both exist, and the
// manifest parses with the matching full_name and abi. No
// per-file hash re-verification happens here — the manifest is a
// trusted summary written by the promoter (see Verify for the
// from-scratch check).
func Valid(layout *Layout, id PackageId, abi ABIKey) bool {
	ok := valid(layout, id, abi)
	if ok {
		metrics.CacheHits.Inc()
	} else {
		metrics.CacheMisses.Inc()
	}
	return ok
}

func valid(layout *Layout, id PackageId, abi ABIKey) bool {
	dir := layout.Cached(abi, id)
	if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
		return false
	}

	if _, err := os.Stat(layout.CachedSpec(abi, id)); err != nil {
		return false
	}

	m, err := Read(layout.CachedManifest(abi, id))
	if err != nil || m == nil {
		return false
	}

	return m.FullName == id.FullName() && m.ABI == string(abi)
}

// LegacyTolerant is Valid extended with the legacy-cache fallback: a
// directory containing a gemspec file but no manifest is still accepted,
// and the fallback is counted on a metrics counter so operators can see
// how often it fires and decide whether to keep it enabled.
func LegacyTolerant(layout *Layout, id PackageId, abi ABIKey) bool {
	if valid(layout, id, abi) {
		metrics.CacheHits.Inc()
		return true
	}

	dir := layout.Cached(abi, id)
	matches, _ := filepath.Glob(filepath.Join(dir, legacyGemspecName))
	if len(matches) > 0 {
		metrics.LegacyGemspecFallback.Inc()
		return true
	}
	metrics.CacheMisses.Inc()
	return false
}

// VerifyResult reports the outcome of a from-scratch Verify pass.
type VerifyResult struct {
	OK         bool
	Mismatches []string
}

// Verify re-walks the cached tree for id under abi and compares every
// file against the manifest's recorded size and SHA-256, the integrity
// check that is deliberately not run on the validity-predicate hot
// path.
func Verify(layout *Layout, id PackageId, abi ABIKey) (*VerifyResult, error) {
	m, err := Read(layout.CachedManifest(abi, id))
	if err != nil {
		return nil, err
	}
	if m == nil {
		return &VerifyResult{OK: false, Mismatches: []string{"manifest missing or unreadable"}}, nil
	}

	dir := layout.Cached(abi, id)
	result := &VerifyResult{OK: true}

	for _, f := range m.Files {
		full := filepath.Join(dir, f.Path)
		fi, statErr := os.Lstat(full)
		if statErr != nil {
			result.OK = false
			result.Mismatches = append(result.Mismatches, f.Path+": "+statErr.Error())
			continue
		}

		switch f.Type {
		case FileTypeDir:
			if !fi.IsDir() {
				result.OK = false
				result.Mismatches = append(result.Mismatches, f.Path+": expected directory")
			}
		case FileTypeSymlink:
			target, err := os.Readlink(full)
			if err != nil || digestutil.Bytes([]byte(target)) != f.SHA256 {
				result.OK = false
				result.Mismatches = append(result.Mismatches, f.Path+": symlink target mismatch")
			}
		default:
			sum, err := hashFile(full)
			if err != nil || sum != f.SHA256 || fi.Size() != f.Size {
				result.OK = false
				result.Mismatches = append(result.Mismatches, f.Path+": content mismatch")
			}
		}
	}

	return result, nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return digestutil.Reader(f)
}
