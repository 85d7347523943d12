package materialize

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/kraklabs/scint/internal/cache"
)

func writeTree(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		full := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatalf("MkdirAll: %v", err)
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}
}

func TestMaterializerBulkWalkFlushesOnChunkSize(t *testing.T) {
	srcA := t.TempDir()
	writeTree(t, srcA, map[string]string{"lib/a.rb": "a"})
	srcB := t.TempDir()
	writeTree(t, srcB, map[string]string{"lib/b.rb": "b"})

	dstParent := t.TempDir()

	m, err := New(dstParent, srcA, 2)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := m.Enqueue(Source{Dir: srcA, TargetName: "a"}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dstParent, "a")); err == nil {
		t.Fatalf("expected no flush yet after one enqueue with chunk size 2")
	}

	if err := m.Enqueue(Source{Dir: srcB, TargetName: "b"}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dstParent, "a", "lib", "a.rb")); err != nil {
		t.Errorf("expected a materialized after reaching chunk size: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dstParent, "b", "lib", "b.rb")); err != nil {
		t.Errorf("expected b materialized after reaching chunk size: %v", err)
	}
}

func TestMaterializerFileListDrivenUsesManifest(t *testing.T) {
	srcDir := t.TempDir()
	writeTree(t, srcDir, map[string]string{"lib/rack.rb": "module Rack; end\n"})

	id := cache.PackageId{Name: "rack", Version: "2.2.8"}
	m2, err := cache.Build(cache.BuildParams{Spec: id, GemDir: srcDir, ABIKey: "rt-test"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	manifestPath := filepath.Join(t.TempDir(), "rack.manifest")
	if err := cache.Write(manifestPath, m2); err != nil {
		t.Fatalf("Write: %v", err)
	}

	dstParent := t.TempDir()
	m, err := New(dstParent, srcDir, 1)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := m.Enqueue(Source{Dir: srcDir, Manifest: manifestPath, TargetName: "rack-2.2.8"}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dstParent, "rack-2.2.8", "lib", "rack.rb")); err != nil {
		t.Errorf("expected manifest-driven materialization: %v", err)
	}
}

func TestWaitForBlocksUntilFlushed(t *testing.T) {
	srcA := t.TempDir()
	writeTree(t, srcA, map[string]string{"f": "1"})

	dstParent := t.TempDir()
	m, err := New(dstParent, srcA, 10)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	waited := false
	go func() {
		defer wg.Done()
		m.WaitFor("a")
		waited = true
	}()

	time.Sleep(20 * time.Millisecond)
	if waited {
		t.Fatalf("expected WaitFor to still be blocked before flush")
	}

	if err := m.Enqueue(Source{Dir: srcA, TargetName: "a"}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := m.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	wg.Wait()
	if !waited {
		t.Fatalf("expected WaitFor to return after flush")
	}
}

func TestMaterializerSkipsAlreadyExistingTarget(t *testing.T) {
	srcA := t.TempDir()
	writeTree(t, srcA, map[string]string{"f": "1"})

	dstParent := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dstParent, "a"), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	m, err := New(dstParent, srcA, 1)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := m.Enqueue(Source{Dir: srcA, TargetName: "a"}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dstParent, "a", "f")); !os.IsNotExist(err) {
		t.Errorf("expected pre-existing target to be left untouched, err=%v", err)
	}
}
