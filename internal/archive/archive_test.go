package archive

import (
	"archive/tar"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
)

func writeTestArchive(t *testing.T, path string, files map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer f.Close()

	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)

	for name, content := range files {
		hdr := &tar.Header{Name: name, Mode: 0o644, Size: int64(len(content))}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("WriteHeader: %v", err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}

	if err := tw.Close(); err != nil {
		t.Fatalf("tar Close: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("gzip Close: %v", err)
	}
}

func TestTarGzExtractsFiles(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "rack-2.2.8.tar.gz")
	writeTestArchive(t, archivePath, map[string]string{
		"lib/rack.rb":    "module Rack; end",
		"lib/rack/a.rb":  "class A; end",
		"rack.gemspec":   "Gem::Specification.new",
	})

	dest := filepath.Join(dir, "out")
	if err := (TarGz{}).Extract(archivePath, dest); err != nil {
		t.Fatalf("Extract: %v", err)
	}

	for _, p := range []string{"lib/rack.rb", "lib/rack/a.rb", "rack.gemspec"} {
		if _, err := os.Stat(filepath.Join(dest, p)); err != nil {
			t.Errorf("expected extracted file %s: %v", p, err)
		}
	}
}

func TestTarGzRejectsPathEscape(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "evil.tar.gz")
	writeTestArchive(t, archivePath, map[string]string{
		"../../etc/passwd": "pwned",
	})

	dest := filepath.Join(dir, "out")
	if err := (TarGz{}).Extract(archivePath, dest); err == nil {
		t.Fatalf("expected Extract to reject a path-escaping entry")
	}
}
