package cache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kraklabs/scint/internal/digestutil"
)

func seedCached(t *testing.T, l *Layout, id PackageId, abi ABIKey, fullName, abiInManifest string, withSpec bool) {
	t.Helper()
	dir := l.Cached(abi, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	os.WriteFile(filepath.Join(dir, "a.rb"), []byte("a"), 0o644)

	if withSpec {
		if err := os.WriteFile(l.CachedSpec(abi, id), []byte("spec"), 0o644); err != nil {
			t.Fatalf("write spec: %v", err)
		}
	}

	m := &Manifest{
		Version:  ManifestVersion,
		ABI:      abiInManifest,
		FullName: fullName,
		Source:   Source{Type: "registry", URI: "https://rubygems.org"},
		Files:    []FileEntry{{Mode: 0o644, Path: "a.rb", SHA256: digestutil.Bytes([]byte("a")), Size: 1, Type: FileTypeFile}},
	}
	if err := Write(l.CachedManifest(abi, id), m); err != nil {
		t.Fatalf("Write manifest: %v", err)
	}
}

func TestValidHappyPath(t *testing.T) {
	l := NewLayout(t.TempDir())
	id := PackageId{Name: "rack", Version: "2.2.8"}
	abi := ABIKey("rt-3.3.0")
	seedCached(t, l, id, abi, id.FullName(), string(abi), true)

	if !Valid(l, id, abi) {
		t.Errorf("Valid() = false, want true for a fully seeded cache entry")
	}
}

func TestValidMissingDirectory(t *testing.T) {
	l := NewLayout(t.TempDir())
	id := PackageId{Name: "rack", Version: "2.2.8"}
	abi := ABIKey("rt-3.3.0")

	if Valid(l, id, abi) {
		t.Errorf("Valid() = true, want false for an absent cache directory")
	}
}

func TestValidMissingSpec(t *testing.T) {
	l := NewLayout(t.TempDir())
	id := PackageId{Name: "rack", Version: "2.2.8"}
	abi := ABIKey("rt-3.3.0")
	seedCached(t, l, id, abi, id.FullName(), string(abi), false)

	if Valid(l, id, abi) {
		t.Errorf("Valid() = true, want false when the .spec blob is absent")
	}
}

func TestValidABIMismatchIsFalse(t *testing.T) {
	// A manifest whose abi differs from the requested ABI must yield
	// false even though the cached directory and .spec both exist.
	l := NewLayout(t.TempDir())
	id := PackageId{Name: "rack", Version: "2.2.8"}
	abi := ABIKey("rt-3.3.0")
	seedCached(t, l, id, abi, id.FullName(), "rt-3.2.0-different", true)

	if Valid(l, id, abi) {
		t.Errorf("Valid() = true, want false on ABI mismatch")
	}
}

func TestValidFullNameMismatchIsFalse(t *testing.T) {
	l := NewLayout(t.TempDir())
	id := PackageId{Name: "rack", Version: "2.2.8"}
	abi := ABIKey("rt-3.3.0")
	seedCached(t, l, id, abi, "rack-2.2.9", string(abi), true)

	if Valid(l, id, abi) {
		t.Errorf("Valid() = true, want false on full_name mismatch")
	}
}

func TestLegacyTolerantFallsBackToGemspec(t *testing.T) {
	l := NewLayout(t.TempDir())
	id := PackageId{Name: "rack", Version: "2.2.8"}
	abi := ABIKey("rt-3.3.0")

	dir := l.Cached(abi, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	os.WriteFile(filepath.Join(dir, "rack.gemspec"), []byte("Gem::Specification.new"), 0o644)

	if !LegacyTolerant(l, id, abi) {
		t.Errorf("LegacyTolerant() = false, want true for a directory containing only a gemspec")
	}
}

func TestLegacyTolerantStillFalseWithoutManifestOrGemspec(t *testing.T) {
	l := NewLayout(t.TempDir())
	id := PackageId{Name: "rack", Version: "2.2.8"}
	abi := ABIKey("rt-3.3.0")

	dir := l.Cached(abi, id)
	os.MkdirAll(dir, 0o755)
	os.WriteFile(filepath.Join(dir, "a.rb"), []byte("a"), 0o644)

	if LegacyTolerant(l, id, abi) {
		t.Errorf("LegacyTolerant() = true, want false with neither manifest nor gemspec present")
	}
}

func TestVerifyDetectsContentMismatch(t *testing.T) {
	l := NewLayout(t.TempDir())
	id := PackageId{Name: "rack", Version: "2.2.8"}
	abi := ABIKey("rt-3.3.0")
	seedCached(t, l, id, abi, id.FullName(), string(abi), true)

	// Corrupt the cached file after the manifest was written against it.
	if err := os.WriteFile(filepath.Join(l.Cached(abi, id), "a.rb"), []byte("corrupted"), 0o644); err != nil {
		t.Fatalf("corrupt file: %v", err)
	}

	result, err := Verify(l, id, abi)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if result.OK {
		t.Errorf("Verify().OK = true, want false after corrupting a cached file")
	}
	if len(result.Mismatches) == 0 {
		t.Errorf("expected at least one mismatch to be reported")
	}
}

func TestVerifyCleanTreePasses(t *testing.T) {
	l := NewLayout(t.TempDir())
	id := PackageId{Name: "rack", Version: "2.2.8"}
	abi := ABIKey("rt-3.3.0")
	seedCached(t, l, id, abi, id.FullName(), string(abi), true)

	result, err := Verify(l, id, abi)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !result.OK {
		t.Errorf("Verify().OK = false, want true for an untouched tree; mismatches: %v", result.Mismatches)
	}
}

func TestVerifyMissingManifest(t *testing.T) {
	l := NewLayout(t.TempDir())
	id := PackageId{Name: "rack", Version: "2.2.8"}
	abi := ABIKey("rt-3.3.0")

	result, err := Verify(l, id, abi)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if result.OK {
		t.Errorf("Verify().OK = true, want false with no manifest on disk")
	}
}
