package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMkdirPIdempotent(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "a", "b", "c")

	require.NoError(t, MkdirP(target))
	require.NoError(t, MkdirP(target), "second MkdirP")

	fi, err := os.Stat(target)
	require.NoError(t, err)
	assert.True(t, fi.IsDir(), "target not created as directory")
}

func TestClonefileByteCopyFallback(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	dst := filepath.Join(dir, "nested", "dst.txt")

	require.NoError(t, os.WriteFile(src, []byte("hello"), 0o644))

	strategy, err := Clonefile(src, dst)
	require.NoError(t, err)
	t.Logf("used strategy: %s", strategy)

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))
}

func TestCloneTreeRecursive(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")

	if err := os.MkdirAll(filepath.Join(src, "lib"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(src, "lib", "a.rb"), []byte("puts 1"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(src, "README"), []byte("hi"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := CloneTree(src, dst); err != nil {
		t.Fatalf("CloneTree: %v", err)
	}

	for _, p := range []string{"lib/a.rb", "README"} {
		if _, err := os.Stat(filepath.Join(dst, p)); err != nil {
			t.Errorf("expected %s to exist in dst: %v", p, err)
		}
	}
}

func TestCloneTreeToleratesConcurrentPeer(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")

	if err := os.MkdirAll(src, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(src, "file"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	// Simulate a peer that already materialized the file with identical content.
	if err := os.MkdirAll(dst, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dst, "file"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := CloneTree(src, dst); err != nil {
		t.Fatalf("CloneTree with pre-existing file: %v", err)
	}
}

func TestMaterializeFromManifestRejectsEscapingPaths(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	os.MkdirAll(src, 0o755)

	entries := []Entry{{Type: EntryFile, Path: "../etc/passwd"}}
	if err := MaterializeFromManifest(src, dst, entries); err == nil {
		t.Fatalf("expected error for path escaping destination")
	}

	entries = []Entry{{Type: EntryFile, Path: "/etc/passwd"}}
	if err := MaterializeFromManifest(src, dst, entries); err == nil {
		t.Fatalf("expected error for absolute path")
	}

	entries = []Entry{{Type: EntryFile, Path: ""}}
	if err := MaterializeFromManifest(src, dst, entries); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

func TestMaterializeFromManifestHappyPath(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	os.MkdirAll(filepath.Join(src, "lib"), 0o755)
	os.WriteFile(filepath.Join(src, "lib", "a.rb"), []byte("1"), 0o644)

	entries := []Entry{
		{Type: EntryDir, Path: "lib"},
		{Type: EntryFile, Path: "lib/a.rb"},
	}

	if err := MaterializeFromManifest(src, dst, entries); err != nil {
		t.Fatalf("MaterializeFromManifest: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dst, "lib", "a.rb")); err != nil {
		t.Fatalf("expected materialized file: %v", err)
	}
}

func TestAtomicWriteVisibleAllOrNothing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.json")

	require.NoError(t, AtomicWrite(path, []byte(`{"a":1}`)))
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(got))

	// Overwrite and confirm no partial/truncated intermediate state leaks
	// via the final path (we can't observe mid-flight, but we can assert
	// the post-condition: exactly the new content, never mixed).
	require.NoError(t, AtomicWrite(path, []byte(`{"a":2}`)))
	got, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"a":2}`, string(got))

	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		assert.Equal(t, "manifest.json", e.Name(), "leftover temp file")
	}
}

func TestAtomicMoveSameDevice(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "nested", "dst")
	os.MkdirAll(src, 0o755)
	os.WriteFile(filepath.Join(src, "f"), []byte("x"), 0o644)

	if err := AtomicMove(src, dst); err != nil {
		t.Fatalf("AtomicMove: %v", err)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Errorf("source should no longer exist")
	}
	if _, err := os.Stat(filepath.Join(dst, "f")); err != nil {
		t.Errorf("expected moved content: %v", err)
	}
}

func TestWithTempdirRemovesOnAllPaths(t *testing.T) {
	parent := t.TempDir()
	var captured string

	err := WithTempdir(parent, "staging", func(dir string) error {
		captured = dir
		if _, statErr := os.Stat(dir); statErr != nil {
			t.Fatalf("tempdir should exist inside fn: %v", statErr)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithTempdir: %v", err)
	}
	if _, err := os.Stat(captured); !os.IsNotExist(err) {
		t.Errorf("tempdir should be removed after WithTempdir returns")
	}

	// error path
	boom := filepath.Join(parent, "unused")
	_ = boom
	err = WithTempdir(parent, "staging", func(dir string) error {
		captured = dir
		return os.ErrInvalid
	})
	if err == nil {
		t.Fatalf("expected error to propagate")
	}
	if _, err := os.Stat(captured); !os.IsNotExist(err) {
		t.Errorf("tempdir should be removed even when fn errors")
	}
}

func TestCloneManyTreesSkipsExisting(t *testing.T) {
	dir := t.TempDir()
	dstParent := filepath.Join(dir, "dst")
	os.MkdirAll(dstParent, 0o755)

	var sources []TreeSource
	for i := 0; i < 3; i++ {
		src := filepath.Join(dir, "src", string(rune('a'+i)))
		os.MkdirAll(src, 0o755)
		os.WriteFile(filepath.Join(src, "f"), []byte("x"), 0o644)
		sources = append(sources, TreeSource{SrcDir: src, Name: string(rune('a' + i))})
	}

	// Pre-materialize one target to simulate a peer's flush.
	os.MkdirAll(filepath.Join(dstParent, "b"), 0o755)

	if err := CloneManyTrees(sources, dstParent, 2); err != nil {
		t.Fatalf("CloneManyTrees: %v", err)
	}

	for _, name := range []string{"a", "b", "c"} {
		if _, err := os.Stat(filepath.Join(dstParent, name)); err != nil {
			t.Errorf("expected %s materialized: %v", name, err)
		}
	}
}
