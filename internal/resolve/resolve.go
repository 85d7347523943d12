// Package resolve implements the resolver collaborator: dependency
// manifests are declarative records (name, version constraint, source,
// group), parsed by a small DSL parser instead of evaluating
// host-language code, and lockfiles pin exact (name, version, source)
// triples the way Bundler's lockfile does. No dependency-graph
// backtracking algorithm is implemented here; this package only
// defines the ResolvedSpec contract and a lock-driven resolver that
// trusts a pre-computed lockfile, which is sufficient to drive the
// rest of the pipeline end to end.
package resolve

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/kraklabs/scint/internal/cache"
	"github.com/kraklabs/scint/internal/errs"
)

// ResolvedSpec is the minimum the core consumes from a resolver,
// extended with Groups for per-group install filtering.
type ResolvedSpec struct {
	Name         string
	Version      string
	Platform     string
	Source       cache.SourceDescriptor
	Dependencies []string
	Size         int64
	Checksum     string
	Groups       []string
	Builtin      bool
	Extensions   bool
	Executables  []string
}

func (r ResolvedSpec) PackageId() cache.PackageId {
	return cache.PackageId{Name: r.Name, Version: r.Version, Platform: r.Platform}
}

// Resolver produces the resolved set for a manifest+lock pair.
type Resolver interface {
	Resolve(manifestPath, lockPath string) ([]ResolvedSpec, error)
}

// LockResolver reads a line-oriented lockfile: each non-blank,
// non-comment line is
//
//	name version [platform=p] [source=registry:<uri>|git:<uri>|path:<dir>] [group=a,b]
//
// This is a small declarative DSL in place of evaluating a manifest as
// host-language code.
type LockResolver struct{}

func (LockResolver) Resolve(manifestPath, lockPath string) ([]ResolvedSpec, error) {
	f, err := os.Open(lockPath)
	if err != nil {
		return nil, errs.New(errs.KindLockfile, "resolve.LockResolver", lockPath, err)
	}
	defer f.Close()

	var specs []ResolvedSpec
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		spec, err := parseLockLine(line)
		if err != nil {
			return nil, errs.New(errs.KindLockfile, "resolve.LockResolver", fmt.Sprintf("%s:%d", lockPath, lineNo), err)
		}
		specs = append(specs, spec)
	}
	if err := scanner.Err(); err != nil {
		return nil, errs.New(errs.KindLockfile, "resolve.LockResolver", lockPath, err)
	}

	return specs, nil
}

func parseLockLine(line string) (ResolvedSpec, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return ResolvedSpec{}, fmt.Errorf("expected at least name and version, got %q", line)
	}

	spec := ResolvedSpec{Name: fields[0], Version: fields[1], Source: cache.SourceDescriptor{Kind: cache.SourceRegistry}}

	for _, kv := range fields[2:] {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			return ResolvedSpec{}, fmt.Errorf("malformed attribute %q", kv)
		}
		switch k {
		case "platform":
			spec.Platform = v
		case "group":
			spec.Groups = strings.Split(v, ",")
		case "size":
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return ResolvedSpec{}, fmt.Errorf("bad size %q: %w", v, err)
			}
			spec.Size = n
		case "checksum":
			spec.Checksum = v
		case "extensions":
			spec.Extensions = v == "true"
		case "builtin":
			spec.Builtin = v == "true"
		case "source":
			src, err := parseSource(v)
			if err != nil {
				return ResolvedSpec{}, err
			}
			spec.Source = src
		case "deps":
			if v != "" {
				spec.Dependencies = strings.Split(v, ",")
			}
		case "bin":
			if v != "" {
				spec.Executables = strings.Split(v, ",")
			}
		default:
			return ResolvedSpec{}, fmt.Errorf("unknown attribute %q", k)
		}
	}

	return spec, nil
}

func parseSource(v string) (cache.SourceDescriptor, error) {
	kind, rest, ok := strings.Cut(v, ":")
	if !ok {
		return cache.SourceDescriptor{}, fmt.Errorf("malformed source %q", v)
	}
	switch kind {
	case "registry":
		return cache.SourceDescriptor{Kind: cache.SourceRegistry, URI: rest}, nil
	case "git":
		return cache.SourceDescriptor{Kind: cache.SourceGit, URI: rest}, nil
	case "path":
		return cache.SourceDescriptor{Kind: cache.SourcePath, AbsolutePath: rest}, nil
	default:
		return cache.SourceDescriptor{}, fmt.Errorf("unknown source kind %q", kind)
	}
}
