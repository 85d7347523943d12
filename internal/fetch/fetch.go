// Package fetch implements the source-dispatched fetch stage of the
// preparer pipeline: a pluggable SourceFetcher per cache.SourceKind,
// registered under that kind at init time and selected at runtime off a
// cache.SourceDescriptor's Kind.
package fetch

import (
	"context"
	"sync"

	"github.com/kraklabs/scint/internal/cache"
	"github.com/kraklabs/scint/internal/errs"
)

// SourceFetcher fetches a package's content into the cache's inbound
// area and returns the local path the assemble stage should read from.
// Already-present inbound content is reused rather than re-fetched.
type SourceFetcher interface {
	Fetch(ctx context.Context, id cache.PackageId, source cache.SourceDescriptor, layout *cache.Layout) (string, error)
}

// Factory constructs a SourceFetcher from shared collaborators; drivers
// register one per cache.SourceKind at init.
type Factory func() SourceFetcher

var (
	mu        sync.Mutex
	factories = make(map[cache.SourceKind]Factory)
)

// Register makes a fetcher factory available for kind. Panics on a
// duplicate registration.
func Register(kind cache.SourceKind, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	if f == nil {
		panic("fetch: nil Factory")
	}
	if _, exists := factories[kind]; exists {
		panic("fetch: factory already registered for " + kind.String())
	}
	factories[kind] = f
}

// New builds the SourceFetcher registered for kind.
func New(kind cache.SourceKind) (SourceFetcher, error) {
	mu.Lock()
	f, ok := factories[kind]
	mu.Unlock()
	if !ok {
		return nil, errs.New(errs.KindInstall, "fetch.New", kind.String(), errUnregistered{kind})
	}
	return f(), nil
}

type errUnregistered struct{ kind cache.SourceKind }

func (e errUnregistered) Error() string { return "fetch: no SourceFetcher registered for " + e.kind.String() }
