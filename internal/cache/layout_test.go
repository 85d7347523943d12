package cache

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestLayoutPathsDescendFromRoot(t *testing.T) {
	root := "/var/cache/scint"
	l := NewLayout(root)
	id := PackageId{Name: "rack", Version: "2.2.8"}
	abi := ABIKey("rt-3.3.0-arm64-darwin24")
	src := SourceDescriptor{Kind: SourceGit, URI: "https://github.com/foo/bar"}

	paths := []string{
		l.InboundGem(id),
		l.InboundGit(src),
		l.Assembling(abi, id),
		l.Cached(abi, id),
		l.CachedSpec(abi, id),
		l.CachedManifest(abi, id),
		l.Index(src),
		l.PromotionLock("rack-2.2.8"),
		l.Staging(),
		l.InstallEnv(),
	}

	for _, p := range paths {
		rel, err := filepath.Rel(root, p)
		if err != nil {
			t.Fatalf("filepath.Rel: %v", err)
		}
		if strings.HasPrefix(rel, "..") {
			t.Errorf("path %q escapes root %q", p, root)
		}
	}
}

func TestLayoutCachedShape(t *testing.T) {
	l := NewLayout("/root")
	id := PackageId{Name: "rack", Version: "2.2.8"}
	abi := ABIKey("rt-3.3.0")

	want := "/root/cached/rt-3.3.0/rack-2.2.8"
	if got := l.Cached(abi, id); got != want {
		t.Errorf("Cached() = %q, want %q", got, want)
	}
	if got := l.CachedManifest(abi, id); got != want+".manifest" {
		t.Errorf("CachedManifest() = %q, want %q", got, want+".manifest")
	}
}

func TestEnsureDirMemoizes(t *testing.T) {
	dir := t.TempDir()
	l := NewLayout(dir)
	target := filepath.Join(dir, "a", "b")

	if err := l.EnsureDir(target); err != nil {
		t.Fatalf("EnsureDir: %v", err)
	}
	if err := l.EnsureDir(target); err != nil {
		t.Fatalf("second EnsureDir: %v", err)
	}
}
