// Package runtimesetup implements the runtime-setup collaborator: it
// reads the serialized lock blob produced at install time and adjusts
// the load path for an interpreter child process. The blob format
// here is the same canonical JSON discipline internal/cache/manifest.go
// uses, reusing fsutil.AtomicWrite for the same all-or-nothing write
// guarantee every on-disk artifact gets.
package runtimesetup

import (
	"encoding/json"
	"os"
	"sort"

	"github.com/kraklabs/scint/internal/errs"
	"github.com/kraklabs/scint/internal/fsutil"
)

// Entry is one installed package's load-path contribution.
type Entry struct {
	FullName string `json:"full_name"`
	LoadPath string `json:"load_path"`
}

// Env is the serialized environment blob written to
// Layout.InstallEnv() at the end of a successful install.
type Env struct {
	Entries []Entry `json:"entries"`
}

// Write serializes env with entries sorted by full name (mirroring
// the manifest's sorted-files discipline) and writes it atomically.
func Write(path string, env Env) error {
	sort.Slice(env.Entries, func(i, j int) bool { return env.Entries[i].FullName < env.Entries[j].FullName })
	b, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return errs.New(errs.KindInstall, "runtimesetup.Write", path, err)
	}
	return fsutil.AtomicWrite(path, b)
}

// Read loads the install-env blob, returning a zero Env when the file
// doesn't exist yet (e.g. first-ever install).
func Read(path string) (Env, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Env{}, nil
		}
		return Env{}, errs.New(errs.KindInstall, "runtimesetup.Read", path, err)
	}
	var env Env
	if err := json.Unmarshal(b, &env); err != nil {
		return Env{}, errs.New(errs.KindInstall, "runtimesetup.Read", path, err)
	}
	return env, nil
}

// LoadPaths returns every entry's LoadPath, in the serialized order
// (full-name sorted), the form a child interpreter process consumes
// directly as its load path list.
func (e Env) LoadPaths() []string {
	out := make([]string, len(e.Entries))
	for i, entry := range e.Entries {
		out[i] = entry.LoadPath
	}
	return out
}
