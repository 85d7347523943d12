package fetch

import (
	"context"
	"os"
	"path/filepath"

	"github.com/kraklabs/scint/internal/cache"
	"github.com/kraklabs/scint/internal/errs"
	"github.com/kraklabs/scint/internal/fsutil"
)

func init() {
	Register(cache.SourceRegistry, func() SourceFetcher {
		return &RegistryFetcher{pool: NewHTTPPool()}
	})
}

// RegistryFetcher downloads a package archive into inbound/gems/ via
// an HTTPPool, reusing an already-present non-empty inbound file. No
// checksum is passed to the pool, so the download is not verified
// against one.
type RegistryFetcher struct {
	pool HTTPPool
}

func NewRegistryFetcher(pool HTTPPool) *RegistryFetcher {
	return &RegistryFetcher{pool: pool}
}

func (f *RegistryFetcher) Fetch(ctx context.Context, id cache.PackageId, source cache.SourceDescriptor, layout *cache.Layout) (string, error) {
	dest := layout.InboundGem(id)

	if fi, err := os.Stat(dest); err == nil && fi.Size() > 0 {
		return dest, nil
	}

	if err := layout.EnsureDir(filepath.Dir(dest)); err != nil {
		return "", errs.New(errs.KindCache, "fetch.RegistryFetcher", dest, err)
	}

	tmp := dest + ".download"
	results := f.pool.DownloadBatch(ctx, []DownloadRequest{{
		URI:  source.URI,
		Dest: tmp,
		Spec: id.FullName(),
	}})
	res := results[0]
	if res.Error != nil {
		os.Remove(tmp)
		return "", errs.New(errs.KindNetwork, "fetch.RegistryFetcher", id.FullName(), res.Error)
	}

	if err := fsutil.AtomicMove(tmp, dest); err != nil {
		if os.IsExist(err) {
			os.Remove(tmp)
			return dest, nil
		}
		return "", errs.New(errs.KindNetwork, "fetch.RegistryFetcher", id.FullName(), err)
	}

	return dest, nil
}
