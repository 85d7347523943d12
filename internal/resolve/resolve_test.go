package resolve

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kraklabs/scint/internal/cache"
)

func TestLockResolverParsesLines(t *testing.T) {
	dir := t.TempDir()
	lockPath := filepath.Join(dir, "scint.lock")
	content := `# comment
rack 2.2.8 source=registry:https://rubygems.org group=default deps=rack-proto

nokogiri 1.15.0 platform=arm64-darwin size=1024 checksum=abc123
mygem 0.1.0 source=path:/srv/mygem
`
	if err := os.WriteFile(lockPath, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	specs, err := (LockResolver{}).Resolve("", lockPath)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(specs) != 3 {
		t.Fatalf("len(specs) = %d, want 3", len(specs))
	}

	if specs[0].Name != "rack" || specs[0].Version != "2.2.8" {
		t.Errorf("specs[0] = %+v", specs[0])
	}
	if specs[0].Source.Kind != cache.SourceRegistry || specs[0].Source.URI != "https://rubygems.org" {
		t.Errorf("specs[0].Source = %+v", specs[0].Source)
	}
	if len(specs[0].Groups) != 1 || specs[0].Groups[0] != "default" {
		t.Errorf("specs[0].Groups = %v", specs[0].Groups)
	}
	if len(specs[0].Dependencies) != 1 || specs[0].Dependencies[0] != "rack-proto" {
		t.Errorf("specs[0].Dependencies = %v", specs[0].Dependencies)
	}

	if specs[1].Platform != "arm64-darwin" || specs[1].Size != 1024 || specs[1].Checksum != "abc123" {
		t.Errorf("specs[1] = %+v", specs[1])
	}

	if specs[2].Source.Kind != cache.SourcePath || specs[2].Source.AbsolutePath != "/srv/mygem" {
		t.Errorf("specs[2].Source = %+v", specs[2].Source)
	}
}

func TestLockResolverRejectsMalformedLine(t *testing.T) {
	dir := t.TempDir()
	lockPath := filepath.Join(dir, "scint.lock")
	os.WriteFile(lockPath, []byte("rack\n"), 0o644)

	if _, err := (LockResolver{}).Resolve("", lockPath); err == nil {
		t.Fatalf("expected an error for a line missing a version")
	}
}

func TestLockResolverMissingFile(t *testing.T) {
	if _, err := (LockResolver{}).Resolve("", "/nonexistent/scint.lock"); err == nil {
		t.Fatalf("expected an error for a missing lockfile")
	}
}
