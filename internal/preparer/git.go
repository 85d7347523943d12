package preparer

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
)

// gitRun invokes the system git binary in dir, the same os/exec idiom
// internal/fetch's GitFetcher uses for clone/fetch.
func gitRun(ctx context.Context, dir string, args ...string) error {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	return cmd.Run()
}

// gitRevParse resolves ref to a commit id within the repository at
// dir.
func gitRevParse(ctx context.Context, dir, ref string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", "rev-parse", ref)
	cmd.Dir = dir
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return "", err
	}
	return strings.TrimSpace(out.String()), nil
}
