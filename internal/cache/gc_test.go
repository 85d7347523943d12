package cache

import (
	"os"
	"path/filepath"
	"testing"
)

func seedCachedDir(t *testing.T, layout *Layout, abi ABIKey, id PackageId) {
	t.Helper()
	dir := layout.Cached(abi, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.WriteFile(layout.CachedSpec(abi, id), []byte("{}"), 0o644); err != nil {
		t.Fatalf("WriteFile spec: %v", err)
	}
}

func TestSweepRemovesUnreferencedEntries(t *testing.T) {
	layout := NewLayout(t.TempDir())
	abi := ABIKey("rt-1")

	live := PackageId{Name: "kept", Version: "1.0"}
	dead := PackageId{Name: "gone", Version: "2.0"}
	seedCachedDir(t, layout, abi, live)
	seedCachedDir(t, layout, abi, dead)

	result, err := Sweep(layout, abi, map[string]struct{}{live.FullName(): {}}, false)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if len(result.Swept) != 1 || result.Swept[0] != dead.FullName() {
		t.Errorf("Swept = %v, want [%s]", result.Swept, dead.FullName())
	}
	if len(result.Kept) != 1 || result.Kept[0] != live.FullName() {
		t.Errorf("Kept = %v, want [%s]", result.Kept, live.FullName())
	}

	if _, err := os.Stat(layout.Cached(abi, dead)); !os.IsNotExist(err) {
		t.Errorf("expected dead entry's cached dir to be removed")
	}
	if _, err := os.Stat(layout.Cached(abi, live)); err != nil {
		t.Errorf("expected live entry's cached dir to survive: %v", err)
	}
}

func TestSweepDryRunLeavesFilesystemUntouched(t *testing.T) {
	layout := NewLayout(t.TempDir())
	abi := ABIKey("rt-1")
	dead := PackageId{Name: "gone", Version: "2.0"}
	seedCachedDir(t, layout, abi, dead)

	result, err := Sweep(layout, abi, map[string]struct{}{}, true)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if len(result.Swept) != 1 {
		t.Fatalf("Swept = %v", result.Swept)
	}
	if _, err := os.Stat(layout.Cached(abi, dead)); err != nil {
		t.Errorf("dry run should not remove anything: %v", err)
	}
}

func TestSweepMissingABIDirIsNotAnError(t *testing.T) {
	layout := NewLayout(t.TempDir())
	if _, err := Sweep(layout, ABIKey("never-seen"), nil, false); err != nil {
		t.Fatalf("Sweep on missing abi dir: %v", err)
	}
}
