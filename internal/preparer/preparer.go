// Package preparer implements the fetch→assemble→promote pipeline:
// given a resolved package whose cached artifact is not already
// valid, it drives that package from wherever its source lives into
// the shared cache.
package preparer

import (
	"context"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"

	"github.com/kraklabs/scint/internal/archive"
	"github.com/kraklabs/scint/internal/cache"
	"github.com/kraklabs/scint/internal/errs"
	"github.com/kraklabs/scint/internal/fetch"
	"github.com/kraklabs/scint/internal/fsutil"
	"github.com/kraklabs/scint/internal/promote"
	"github.com/kraklabs/scint/internal/sctx"
)

// Params are the inputs to Prepare: everything needed to drive one
// package from source to a promoted cache entry.
type Params struct {
	ID         cache.PackageId
	Source     cache.SourceDescriptor
	ABI        cache.ABIKey
	Layout     *cache.Layout
	Promoter   *promote.Promoter
	Extractor  archive.Extractor
	Extensions bool
}

// Prepare runs the three preparer stages for one package back to back.
// Callers that want extract scheduled as its own job (see
// cmd/scint's installer) should call Fetch and Extract separately
// instead; Prepare remains for callers, such as tests, that just want
// the whole pipeline run inline.
func Prepare(ctx context.Context, p Params) error {
	inbound, err := Fetch(ctx, p)
	if err != nil {
		return err
	}
	return Extract(ctx, p, inbound)
}

// Fetch runs the fetch stage only, returning the inbound path Extract
// needs to assemble and promote the package. It is the scheduler's
// download job.
func Fetch(ctx context.Context, p Params) (string, error) {
	log := sctx.GetLogger(ctx).WithField("package", p.ID.FullName())

	fetcher, err := fetch.New(p.Source.Kind)
	if err != nil {
		return "", err
	}

	inbound, err := fetcher.Fetch(ctx, p.ID, p.Source, p.Layout)
	if err != nil {
		return "", err
	}
	log.Debug("fetch stage complete")
	return inbound, nil
}

// Extract runs the assemble and promote stages against content Fetch
// already placed at inbound. It is the scheduler's extract job,
// dispatched after its download job's follow-up hands off inbound.
func Extract(ctx context.Context, p Params, inbound string) error {
	log := sctx.GetLogger(ctx).WithField("package", p.ID.FullName())

	assembled, err := assemble(ctx, p, inbound)
	if err != nil {
		return err
	}
	if p.Source.Kind != cache.SourcePath {
		defer os.RemoveAll(assembled)
	}
	log.Debug("assemble stage complete")

	if err := promoteAssembled(p, assembled); err != nil {
		return err
	}
	log.Info("promote stage complete")
	return nil
}

// assemble turns inbound source content into a directory tree ready
// to be promoted, dispatching on source kind.
func assemble(ctx context.Context, p Params, inbound string) (string, error) {
	switch p.Source.Kind {
	case cache.SourceRegistry:
		return assembleRegistry(p, inbound)
	case cache.SourceGit:
		return assembleGit(ctx, p, inbound)
	default:
		// Path sources have nothing to assemble: the working tree at
		// AbsolutePath is used directly as the source CloneTree reads
		// from during promotion.
		return p.Source.AbsolutePath, nil
	}
}

func assembleRegistry(p Params, inbound string) (string, error) {
	abiDir := filepath.Join(p.Layout.Root(), "assembling", string(p.ABI))
	if err := p.Layout.EnsureDir(abiDir); err != nil {
		return "", errs.New(errs.KindInstall, "preparer.assembleRegistry", p.ID.FullName(), err)
	}

	tmp := filepath.Join(abiDir, p.ID.FullName()+"."+pidTag()+".tmp")
	os.RemoveAll(tmp)
	if err := p.Extractor.Extract(inbound, tmp); err != nil {
		os.RemoveAll(tmp)
		return "", errs.New(errs.KindInstall, "preparer.assembleRegistry", p.ID.FullName(), err)
	}

	final := filepath.Join(abiDir, p.ID.FullName())
	if err := fsutil.AtomicMove(tmp, final); err != nil {
		os.RemoveAll(tmp)
		return "", errs.New(errs.KindInstall, "preparer.assembleRegistry", p.ID.FullName(), err)
	}
	return final, nil
}

func assembleGit(ctx context.Context, p Params, repoDir string) (string, error) {
	abiDir := filepath.Join(p.Layout.Root(), "assembling", string(p.ABI))
	if err := p.Layout.EnsureDir(abiDir); err != nil {
		return "", errs.New(errs.KindInstall, "preparer.assembleGit", p.ID.FullName(), err)
	}

	worktree := filepath.Join(abiDir, p.ID.FullName()+"."+pidTag()+".tmp")
	os.RemoveAll(worktree)

	commit, err := resolveCommit(ctx, repoDir, p.Source)
	if err != nil {
		return "", errs.New(errs.KindInstall, "preparer.assembleGit", p.ID.FullName(), err)
	}

	if err := gitRun(ctx, repoDir, "worktree", "add", "--detach", worktree, commit); err != nil {
		os.RemoveAll(worktree)
		return "", errs.New(errs.KindInstall, "preparer.assembleGit", p.ID.FullName(), err)
	}

	if p.Source.Submodules {
		if err := gitRun(ctx, worktree, "submodule", "update", "--init", "--recursive"); err != nil {
			os.RemoveAll(worktree)
			gitRun(ctx, repoDir, "worktree", "remove", "--force", worktree)
			return "", errs.New(errs.KindInstall, "preparer.assembleGit", p.ID.FullName(), err)
		}
	}

	if err := stripGitDirs(worktree); err != nil {
		os.RemoveAll(worktree)
		gitRun(ctx, repoDir, "worktree", "remove", "--force", worktree)
		return "", errs.New(errs.KindInstall, "preparer.assembleGit", p.ID.FullName(), err)
	}

	pkgDir := locatePackageDir(worktree, p.ID.Name)

	final := filepath.Join(abiDir, p.ID.FullName())
	os.RemoveAll(final)
	if err := fsutil.CloneTree(pkgDir, final); err != nil {
		return "", errs.New(errs.KindInstall, "preparer.assembleGit", p.ID.FullName(), err)
	}
	os.RemoveAll(worktree)
	gitRun(ctx, repoDir, "worktree", "remove", "--force", worktree)

	return final, nil
}

// resolveCommit turns a SourceDescriptor's ref/branch/tag/revision
// into a concrete commit id via git rev-parse, preferring an already
// pinned Revision.
func resolveCommit(ctx context.Context, repoDir string, source cache.SourceDescriptor) (string, error) {
	if source.Revision != "" {
		return source.Revision, nil
	}
	ref := source.Ref
	if ref == "" {
		ref = source.Tag
	}
	if ref == "" {
		ref = source.Branch
	}
	if ref == "" {
		ref = "HEAD"
	}
	return gitRevParse(ctx, repoDir, ref)
}

// stripGitDirs removes every ".git" entry under tree for deterministic,
// content-addressable manifests.
func stripGitDirs(tree string) error {
	return filepath.Walk(tree, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() && info.Name() == ".git" {
			if rmErr := os.RemoveAll(path); rmErr != nil {
				return rmErr
			}
			return filepath.SkipDir
		}
		return nil
	})
}

// locatePackageDir finds the subdirectory of a checked-out repository
// that contains the declared package, preferring an exact name match
// and falling back to the repository root.
func locatePackageDir(tree, name string) string {
	entries, err := os.ReadDir(tree)
	if err != nil {
		return tree
	}
	for _, e := range entries {
		if e.IsDir() && e.Name() == name {
			return filepath.Join(tree, e.Name())
		}
	}
	return tree
}

// promoteAssembled clones the assembled tree into a staging directory,
// builds its manifest, and promotes it.
func promoteAssembled(p Params, assembled string) error {
	return p.Promoter.WithStagingDir("cached", func(staging string) error {
		if err := fsutil.CloneTree(assembled, staging); err != nil {
			return errs.New(errs.KindInstall, "preparer.promoteAssembled", p.ID.FullName(), err)
		}

		manifest, err := cache.Build(cache.BuildParams{
			Spec:       p.ID,
			GemDir:     staging,
			ABIKey:     p.ABI,
			Source:     p.Source,
			Extensions: p.Extensions,
		})
		if err != nil {
			return errs.New(errs.KindManifest, "preparer.promoteAssembled", p.ID.FullName(), err)
		}

		target := p.Layout.Cached(p.ABI, p.ID)
		outcome, err := p.Promoter.Promote(staging, target, p.ID.FullName()+"."+string(p.ABI))
		if err != nil {
			return err
		}
		if outcome != promote.Promoted {
			return nil
		}

		specPath := p.Layout.CachedSpec(p.ABI, p.ID)
		if err := fsutil.AtomicWrite(specPath, []byte(p.ID.FullName()+"\n")); err != nil {
			return errs.New(errs.KindManifest, "preparer.promoteAssembled", p.ID.FullName(), err)
		}
		if err := cache.Write(p.Layout.CachedManifest(p.ABI, p.ID), manifest); err != nil {
			return errs.New(errs.KindManifest, "preparer.promoteAssembled", p.ID.FullName(), err)
		}
		return nil
	})
}

// pidTag stands in for a pid+tid pair in a staging-area temp name: Go
// goroutines have no OS thread identity, so the process id is
// combined with a short random suffix to keep concurrent assemblers
// of the same package from colliding.
func pidTag() string {
	return strconv.Itoa(os.Getpid()) + "." + uuid.NewString()[:8]
}
