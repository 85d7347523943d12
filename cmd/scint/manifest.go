package main

import (
	"bufio"
	"os"
	"strings"

	"github.com/kraklabs/scint/internal/errs"
)

const manifestPath = "scint.manifest"

// readManifestLines returns the manifest's lines verbatim, or an empty
// slice if the file doesn't exist yet (a fresh project has no manifest
// until its first `scint add`).
func readManifestLines() ([]string, error) {
	f, err := os.Open(manifestPath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.New(errs.KindManifest, "manifest.read", manifestPath, err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, errs.New(errs.KindManifest, "manifest.read", manifestPath, err)
	}
	return lines, nil
}

func writeManifestLines(lines []string) error {
	var sb strings.Builder
	for _, l := range lines {
		sb.WriteString(l)
		sb.WriteString("\n")
	}
	if err := os.WriteFile(manifestPath, []byte(sb.String()), 0o644); err != nil {
		return errs.New(errs.KindManifest, "manifest.write", manifestPath, err)
	}
	return nil
}

// manifestEntryName extracts the dependency name from a declarative
// manifest record, the same whitespace-delimited DSL internal/resolve
// parses lockfile lines with.
func manifestEntryName(line string) string {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return ""
	}
	fields := strings.Fields(trimmed)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func formatManifestLine(name, version string, groups []string) string {
	line := name
	if version != "" {
		line += " " + version
	}
	if len(groups) > 0 {
		line += " group=" + strings.Join(groups, ",")
	}
	return line
}
