package fetch

import (
	"context"
	"os"
	"os/exec"
	"sync"

	"github.com/kraklabs/scint/internal/cache"
	"github.com/kraklabs/scint/internal/errs"
)

func init() {
	Register(cache.SourceGit, func() SourceFetcher {
		return NewGitFetcher()
	})
}

// GitFetcher clones into inbound/gits/<slug> if missing, otherwise
// fetches. All clone/fetch calls against the same repository are
// serialized by a per-repo in-memory mutex, created lazily and stored
// in a mutex-protected map. Invoking the system `git` binary via
// os/exec is the standard Go idiom for this — no VCS client library
// fits the dependency set this module otherwise draws on (see
// DESIGN.md).
type GitFetcher struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewGitFetcher() *GitFetcher {
	return &GitFetcher{locks: make(map[string]*sync.Mutex)}
}

func (f *GitFetcher) repoLock(key string) *sync.Mutex {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.locks[key]
	if !ok {
		l = &sync.Mutex{}
		f.locks[key] = l
	}
	return l
}

func (f *GitFetcher) Fetch(ctx context.Context, id cache.PackageId, source cache.SourceDescriptor, layout *cache.Layout) (string, error) {
	dest := layout.InboundGit(source)

	lock := f.repoLock(dest)
	lock.Lock()
	defer lock.Unlock()

	if fi, err := os.Stat(dest); err == nil && fi.IsDir() {
		if err := f.run(ctx, dest, "fetch", "--all", "--tags"); err != nil {
			return "", errs.New(errs.KindNetwork, "fetch.GitFetcher", source.URI, err)
		}
		return dest, nil
	}

	if err := layout.EnsureDir(dest); err != nil {
		return "", errs.New(errs.KindCache, "fetch.GitFetcher", source.URI, err)
	}

	args := []string{"clone", "--no-checkout"}
	if source.Submodules {
		args = append(args, "--recurse-submodules")
	}
	args = append(args, source.URI, dest)
	if err := f.run(ctx, "", args...); err != nil {
		os.RemoveAll(dest)
		return "", errs.New(errs.KindNetwork, "fetch.GitFetcher", source.URI, err)
	}

	return dest, nil
}

func (f *GitFetcher) run(ctx context.Context, dir string, args ...string) error {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	return cmd.Run()
}
