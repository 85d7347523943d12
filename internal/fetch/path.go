package fetch

import (
	"context"

	"github.com/kraklabs/scint/internal/cache"
)

func init() {
	Register(cache.SourcePath, func() SourceFetcher {
		return PathFetcher{}
	})
}

// PathFetcher has nothing to fetch: the source is already a local
// directory.
type PathFetcher struct{}

func (PathFetcher) Fetch(ctx context.Context, id cache.PackageId, source cache.SourceDescriptor, layout *cache.Layout) (string, error) {
	return source.AbsolutePath, nil
}
