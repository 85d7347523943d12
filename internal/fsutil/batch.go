package fsutil

import "os"

// DefaultChunkSize is the default batch size for CloneManyTrees,
// chosen to stay well under a typical ARG_MAX for any subprocess-based
// backend.
const DefaultChunkSize = 64

// TreeSource pairs a source directory with the name it should take
// under the destination parent, matching the bulk materializer's
// (source_dir, target_name) pairs.
type TreeSource struct {
	SrcDir string
	Name   string
}

// CloneManyTrees materializes each source under dstParent/Name in
// chunks of chunkSize. Each member of a chunk is cloned on its own with
// CloneTree; no bulk copy primitive is invoked per chunk, and the first
// member that fails ends the call with its error. Sources whose target already
// exists are skipped, so a retried batch after a partial prior failure
// is idempotent.
func CloneManyTrees(sources []TreeSource, dstParent string, chunkSize int) error {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	for start := 0; start < len(sources); start += chunkSize {
		end := start + chunkSize
		if end > len(sources) {
			end = len(sources)
		}

		for _, s := range sources[start:end] {
			target := dstParent + string(os.PathSeparator) + s.Name
			if _, err := os.Stat(target); err == nil {
				continue // already materialized by an earlier run or a racing peer.
			}
			if err := CloneTree(s.SrcDir, target); err != nil {
				return err
			}
		}
	}

	return nil
}
