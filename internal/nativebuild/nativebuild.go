// Package nativebuild defines the native-extension builder
// collaborator. The actual compiler invocation is out of scope here,
// so this package only carries the interface and a no-op Builder that
// lets the rest of the pipeline (planner, preparer, scheduler `build`
// jobs) be exercised end to end without a real toolchain in the loop.
package nativebuild

import "github.com/kraklabs/scint/internal/cache"

// Builder compiles native extensions for a prepared package tree.
type Builder interface {
	// NeedsBuild reports whether spec's gem directory has extensions
	// that require compilation.
	NeedsBuild(id cache.PackageId, gemDir string) bool

	// Build compiles extensions into bundlePath under abi, using up to
	// compileSlots parallel compile units, appending progress text to
	// outputTail. Returns whether the build succeeded.
	Build(id cache.PackageId, gemDir, bundlePath string, abi cache.ABIKey, compileSlots int, outputTail *[]string) bool
}

// NoBuilder reports no extensions ever need building, the correct
// behavior for any package whose gem directory carries no
// extconf.rb-equivalent build descriptor. It's the default Builder
// until a real toolchain integration (buildkit/containerd) is wired
// in.
type NoBuilder struct{}

func (NoBuilder) NeedsBuild(id cache.PackageId, gemDir string) bool { return false }

func (NoBuilder) Build(id cache.PackageId, gemDir, bundlePath string, abi cache.ABIKey, compileSlots int, outputTail *[]string) bool {
	return true
}
