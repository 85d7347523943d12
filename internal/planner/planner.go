// Package planner implements the install decision tree: given a
// resolved spec and the current state of the destination and cache,
// pick exactly one action per package.
package planner

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/kraklabs/scint/internal/cache"
	"github.com/kraklabs/scint/internal/resolve"
)

// Action is the single action a Plan entry carries.
type Action int

const (
	ActionSkip Action = iota
	ActionLink
	ActionBuild
	ActionDownload
	ActionBuiltin
)

func (a Action) String() string {
	switch a {
	case ActionSkip:
		return "skip"
	case ActionLink:
		return "link"
	case ActionBuild:
		return "build"
	case ActionDownload:
		return "download"
	default:
		return "builtin"
	}
}

// Entry is one plan entry.
type Entry struct {
	Spec       resolve.ResolvedSpec
	Action     Action
	CachedPath string
	TargetPath string
}

// DestLayout is pure path algebra over the install destination,
// mirroring how cache.Layout models the cache root.
type DestLayout struct {
	Root string
}

func (d DestLayout) GemDir(id cache.PackageId) string {
	return filepath.Join(d.Root, id.FullName())
}

// Metadata is the small per-package blob recording that install
// completed for id.
func (d DestLayout) Metadata(id cache.PackageId) string {
	return filepath.Join(d.Root, ".scint", id.FullName()+".meta")
}

// LinkedExtensions is where a native extension build is linked into
// the destination for id, when one is needed.
func (d DestLayout) LinkedExtensions(id cache.PackageId) string {
	return filepath.Join(d.Root, ".scint", "ext", id.FullName())
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Decide applies the install decision tree to a single resolved spec.
func Decide(spec resolve.ResolvedSpec, dest DestLayout, layout *cache.Layout, abi cache.ABIKey) Entry {
	id := spec.PackageId()
	entry := Entry{Spec: spec, TargetPath: dest.GemDir(id)}

	if spec.Builtin {
		entry.Action = ActionBuiltin
		return entry
	}

	if exists(dest.GemDir(id)) && exists(dest.Metadata(id)) {
		if spec.Extensions && !exists(dest.LinkedExtensions(id)) {
			if exists(layout.Extensions(abi, id)) {
				entry.Action = ActionLink
				entry.CachedPath = layout.Extensions(abi, id)
				return entry
			}
			entry.Action = ActionBuild
			return entry
		}
		entry.Action = ActionSkip
		return entry
	}

	if spec.Source.Kind == cache.SourcePath {
		if spec.Extensions {
			entry.Action = ActionBuild
		} else {
			entry.Action = ActionLink
			entry.CachedPath = spec.Source.AbsolutePath
		}
		return entry
	}

	if cache.Valid(layout, id, abi) {
		if spec.Extensions && !exists(layout.Extensions(abi, id)) {
			entry.Action = ActionBuild
		} else {
			entry.Action = ActionLink
		}
		entry.CachedPath = layout.Cached(abi, id)
		return entry
	}

	entry.Action = ActionDownload
	return entry
}

// Plan decides an action for every spec, emitting built-in specs
// first and sorting download entries by descending estimated size so
// the largest fetches start saturating the pipeline first.
func Plan(specs []resolve.ResolvedSpec, dest DestLayout, layout *cache.Layout, abi cache.ABIKey) []Entry {
	var builtins, rest, downloads []Entry

	for _, spec := range specs {
		entry := Decide(spec, dest, layout, abi)
		switch entry.Action {
		case ActionBuiltin:
			builtins = append(builtins, entry)
		case ActionDownload:
			downloads = append(downloads, entry)
		default:
			rest = append(rest, entry)
		}
	}

	sort.SliceStable(downloads, func(i, j int) bool {
		return downloads[i].Spec.Size > downloads[j].Spec.Size
	})

	out := make([]Entry, 0, len(builtins)+len(rest)+len(downloads))
	out = append(out, builtins...)
	out = append(out, rest...)
	out = append(out, downloads...)
	return out
}

// FilterGroups drops specs whose every group is excluded, the
// `--with`/`--without` install filter supplement wired against
// ResolvedSpec.Groups. With an empty with list, every group not
// explicitly excluded is kept; a non-empty with list keeps only specs
// carrying at least one listed group. No groups on a spec means it's
// always kept (ungrouped dependencies are never filterable).
func FilterGroups(specs []resolve.ResolvedSpec, with, without []string) []resolve.ResolvedSpec {
	withSet := toSet(with)
	withoutSet := toSet(without)

	out := make([]resolve.ResolvedSpec, 0, len(specs))
	for _, spec := range specs {
		if len(spec.Groups) == 0 {
			out = append(out, spec)
			continue
		}
		if allExcluded(spec.Groups, withoutSet) {
			continue
		}
		if len(withSet) > 0 && !anyIncluded(spec.Groups, withSet) {
			continue
		}
		out = append(out, spec)
	}
	return out
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, i := range items {
		set[i] = struct{}{}
	}
	return set
}

func allExcluded(groups []string, without map[string]struct{}) bool {
	if len(without) == 0 {
		return false
	}
	for _, g := range groups {
		if _, excluded := without[g]; !excluded {
			return false
		}
	}
	return true
}

func anyIncluded(groups []string, with map[string]struct{}) bool {
	for _, g := range groups {
		if _, included := with[g]; included {
			return true
		}
	}
	return false
}

// PlanFromLock is the lockfile-driven re-resolution skip (modeled on
// Bundler's Definition#no_resolve_needed?): when the lock hash is
// unchanged and every resolved spec's cached artifact is already
// valid, the resolver collaborator never needs to run at all; the
// returned plan still goes through Decide, so entries can be builtin,
// skip, link or build (when an extension build is missing). Returns (nil,
// false) when the shortcut doesn't apply and the caller should run
// Plan normally.
func PlanFromLock(previousLockHash, currentLockHash string, specs []resolve.ResolvedSpec, dest DestLayout, layout *cache.Layout, abi cache.ABIKey) ([]Entry, bool) {
	if previousLockHash == "" || previousLockHash != currentLockHash {
		return nil, false
	}

	for _, spec := range specs {
		if spec.Builtin || spec.Source.Kind == cache.SourcePath {
			continue
		}
		if !cache.Valid(layout, spec.PackageId(), abi) {
			return nil, false
		}
	}

	return Plan(specs, dest, layout, abi), true
}
